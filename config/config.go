// Package config holds the immutable settings snapshot handed to every
// transport I/O loop.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables that override file settings.
const EnvPrefix = "BTAUDIO_"

var (
	// ErrInvalidConfig is returned by Validate.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the engine configuration. Loops receive it by value and never
// observe later changes.
type Config struct {
	// A2DPVolume delegates volume to the remote device: PCM is sent
	// unscaled when set.
	A2DPVolume bool `yaml:"a2dp_volume"`

	// AAC encoder settings
	AACAfterburner bool `yaml:"aac_afterburner"`
	AACVBRMode     int  `yaml:"aac_vbr_mode"` // 1-5, used when the sink allows VBR

	// MSBC advertises wideband speech during HFP codec negotiation.
	MSBC bool `yaml:"msbc"`

	// SCO link settings
	SCOMTU             int `yaml:"sco_mtu"`              // link chunk size when the socket reports none
	SCOPrebufferFrames int `yaml:"sco_prebuffer_frames"` // H2 frames queued before the first write

	// PCM write-side open policy
	PCMOpenRetries    int           `yaml:"pcm_open_retries"`
	PCMOpenRetryDelay time.Duration `yaml:"pcm_open_retry_delay"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		AACAfterburner:     true,
		AACVBRMode:         4,
		MSBC:               true,
		SCOMTU:             24,
		SCOPrebufferFrames: 1,
		PCMOpenRetries:     5,
		PCMOpenRetryDelay:  10 * time.Millisecond,
		LogLevel:           "info",
	}
}

// Load reads a YAML file on top of the defaults. A missing file yields the
// defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithFields(logrus.Fields{
				"function": "Load",
				"path":     path,
			}).Debug("Config file not found, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML on top of the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from BTAUDIO_* variables, e.g.
// BTAUDIO_SCO_MTU=48. Unset variables are ignored.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	bools := map[string]*bool{
		"A2DP_VOLUME":     &c.A2DPVolume,
		"AAC_AFTERBURNER": &c.AACAfterburner,
		"MSBC":            &c.MSBC,
	}
	ints := map[string]*int{
		"AAC_VBR_MODE":         &c.AACVBRMode,
		"SCO_MTU":              &c.SCOMTU,
		"SCO_PREBUFFER_FRAMES": &c.SCOPrebufferFrames,
		"PCM_OPEN_RETRIES":     &c.PCMOpenRetries,
	}

	for name, dst := range bools {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = b
		}
	}
	for name, dst := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
			}
			*dst = n
		}
	}
	if v, ok := lookup(EnvPrefix + "PCM_OPEN_RETRY_DELAY"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sPCM_OPEN_RETRY_DELAY: %w", EnvPrefix, err)
		}
		c.PCMOpenRetryDelay = d
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok {
		c.LogLevel = strings.TrimSpace(v)
	}

	return nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.AACVBRMode < 1 || c.AACVBRMode > 5:
		return fmt.Errorf("%w: aac_vbr_mode %d out of range 1-5", ErrInvalidConfig, c.AACVBRMode)
	case c.SCOMTU <= 0:
		return fmt.Errorf("%w: sco_mtu must be positive", ErrInvalidConfig)
	case c.SCOPrebufferFrames < 0:
		return fmt.Errorf("%w: sco_prebuffer_frames must not be negative", ErrInvalidConfig)
	case c.PCMOpenRetries < 1:
		return fmt.Errorf("%w: pcm_open_retries must be at least 1", ErrInvalidConfig)
	case c.PCMOpenRetryDelay < 0:
		return fmt.Errorf("%w: pcm_open_retry_delay must not be negative", ErrInvalidConfig)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Level returns the parsed log level, Info when unparsable.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
