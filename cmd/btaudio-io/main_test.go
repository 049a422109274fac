package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/transport"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	for _, name := range []string{"a2dp-sink", "a2dp-source", "sco", "hfp"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestLoadPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "btaudio.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sco_mtu: 60\nlog_level: warn\nmsbc: false\n"), 0o600))

	t.Setenv("BTAUDIO_SCO_MTU", "48")
	t.Setenv("BTAUDIO_LOG_LEVEL", "info")

	g := &globalFlags{configPath: path, logLevel: "debug"}
	cfg, log, err := g.load()
	require.NoError(t, err)

	assert.Equal(t, 48, cfg.SCOMTU)
	assert.False(t, cfg.MSBC)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestLoadRejectsBadLevel(t *testing.T) {
	g := &globalFlags{logLevel: "loud"}
	_, _, err := g.load()
	assert.Error(t, err)
}

func TestA2DPFromFD(t *testing.T) {
	tests := []struct {
		name    string
		flags   a2dpFlags
		wantErr bool
	}{
		{
			name:  "sbc",
			flags: a2dpFlags{btFD: -1, codec: "SBC", codecConfig: "21150235"},
		},
		{
			name:    "unknown codec",
			flags:   a2dpFlags{btFD: -1, codec: "ldac", codecConfig: "21150235"},
			wantErr: true,
		},
		{
			name:    "bad hex",
			flags:   a2dpFlags{btFD: -1, codec: "sbc", codecConfig: "zz"},
			wantErr: true,
		},
		{
			name:    "short configuration",
			flags:   a2dpFlags{btFD: -1, codec: "sbc", codecConfig: "21"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := tt.flags.fromFD(transport.ProfileA2DPSink)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer tr.Close()

			assert.Equal(t, codec.SBC, tr.Codec())
			assert.Equal(t, 44100, tr.SampleRate)
			assert.Equal(t, 2, tr.Channels)
			assert.Equal(t, transport.StateActive, tr.State())
		})
	}
}
