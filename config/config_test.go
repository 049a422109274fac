package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 24, cfg.SCOMTU)
	assert.Equal(t, 1, cfg.SCOPrebufferFrames)
	assert.Equal(t, 5, cfg.PCMOpenRetries)
	assert.Equal(t, 10*time.Millisecond, cfg.PCMOpenRetryDelay)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
a2dp_volume: true
aac_vbr_mode: 2
sco_mtu: 48
pcm_open_retry_delay: 25ms
log_level: debug
`))
	require.NoError(t, err)

	assert.True(t, cfg.A2DPVolume)
	assert.Equal(t, 2, cfg.AACVBRMode)
	assert.Equal(t, 48, cfg.SCOMTU)
	assert.Equal(t, 25*time.Millisecond, cfg.PCMOpenRetryDelay)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
	// untouched fields keep their defaults
	assert.True(t, cfg.MSBC)
	assert.Equal(t, 5, cfg.PCMOpenRetries)
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("sco_mtu: [1, 2"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	path := filepath.Join(dir, "btaudio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("msbc: false\n"), 0o600))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.MSBC)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		check   func(t *testing.T, c Config)
		wantErr bool
	}{
		{
			name: "overrides",
			env: map[string]string{
				"BTAUDIO_MSBC":                 "false",
				"BTAUDIO_SCO_MTU":              "60",
				"BTAUDIO_PCM_OPEN_RETRY_DELAY": "1ms",
				"BTAUDIO_LOG_LEVEL":            " trace ",
			},
			check: func(t *testing.T, c Config) {
				assert.False(t, c.MSBC)
				assert.Equal(t, 60, c.SCOMTU)
				assert.Equal(t, time.Millisecond, c.PCMOpenRetryDelay)
				assert.Equal(t, "trace", c.LogLevel)
			},
		},
		{
			name:  "nothing set",
			env:   map[string]string{},
			check: func(t *testing.T, c Config) { assert.Equal(t, Default(), c) },
		},
		{
			name:    "bad bool",
			env:     map[string]string{"BTAUDIO_A2DP_VOLUME": "maybe"},
			wantErr: true,
		},
		{
			name:    "bad int",
			env:     map[string]string{"BTAUDIO_SCO_MTU": "lots"},
			wantErr: true,
		},
		{
			name:    "bad duration",
			env:     map[string]string{"BTAUDIO_PCM_OPEN_RETRY_DELAY": "soon"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			err := cfg.applyEnv(func(k string) (string, bool) {
				v, ok := tt.env[k]
				return v, ok
			})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"vbr mode low", func(c *Config) { c.AACVBRMode = 0 }},
		{"vbr mode high", func(c *Config) { c.AACVBRMode = 6 }},
		{"sco mtu", func(c *Config) { c.SCOMTU = 0 }},
		{"prebuffer", func(c *Config) { c.SCOPrebufferFrames = -1 }},
		{"retries", func(c *Config) { c.PCMOpenRetries = 0 }},
		{"delay", func(c *Config) { c.PCMOpenRetryDelay = -time.Second }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
