package hfp

import (
	"testing"

	"github.com/opd-ai/btaudio/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVoice struct {
	codec codec.ID
	spk   uint8
	mic   uint8
}

func (v *fakeVoice) Codec() codec.ID          { return v.codec }
func (v *fakeVoice) SetCodec(id codec.ID)     { v.codec = id }
func (v *fakeVoice) SpeakerGain() uint8       { return v.spk }
func (v *fakeVoice) SetSpeakerGain(g uint8)   { v.spk = g }
func (v *fakeVoice) MicGain() uint8           { return v.mic }
func (v *fakeVoice) SetMicGain(g uint8)       { v.mic = g }

func handle(t *testing.T, s *Session, line string) []string {
	t.Helper()
	cmd, err := ParseAT(line)
	require.NoError(t, err)
	return s.Handle(cmd)
}

func TestNewSessionResetsCodec(t *testing.T) {
	v := &fakeVoice{codec: codec.MSBC}
	NewSession(v, true)
	assert.Equal(t, codec.CVSD, v.codec)
}

func TestServiceLevelConnection(t *testing.T) {
	tests := []struct {
		name      string
		msbc      bool
		hf        string
		brsf      string
		wantCodec codec.ID
		cmer      []string
	}{
		{
			name:      "wideband negotiated",
			msbc:      true,
			hf:        "AT+BRSF=128",
			brsf:      "+BRSF: 576",
			wantCodec: codec.MSBC,
			cmer:      []string{ResultOK, "+BCS: 2"},
		},
		{
			name:      "wideband disabled locally",
			msbc:      false,
			hf:        "AT+BRSF=128",
			brsf:      "+BRSF: 64",
			wantCodec: codec.CVSD,
			cmer:      []string{ResultOK},
		},
		{
			name:      "remote without codec negotiation",
			msbc:      true,
			hf:        "AT+BRSF=0",
			brsf:      "+BRSF: 64",
			wantCodec: codec.CVSD,
			cmer:      []string{ResultOK},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &fakeVoice{}
			s := NewSession(v, tt.msbc)

			assert.Equal(t, []string{tt.brsf, ResultOK}, handle(t, s, tt.hf))
			if s.HFFeatures()&HFFeatureCodec != 0 {
				assert.Equal(t, []string{ResultOK}, handle(t, s, "AT+BAC=1,2"))
			}
			assert.Equal(t, []string{cindRanges, ResultOK}, handle(t, s, "AT+CIND=?"))
			assert.Equal(t, []string{cindValues, ResultOK}, handle(t, s, "AT+CIND?"))
			assert.Equal(t, tt.cmer, handle(t, s, "AT+CMER=3,0,0,1"))
			assert.Equal(t, []string{chldRanges, ResultOK}, handle(t, s, "AT+CHLD=?"))
			assert.Equal(t, tt.wantCodec, v.codec)
		})
	}
}

func TestAcceptedCommands(t *testing.T) {
	s := NewSession(&fakeVoice{}, false)
	for _, line := range []string{
		"AT+CKPD=200", "AT+BTRH?", "AT+NREC=0", "AT+CCWA=1", "AT+BIA=0,0,1", "AT+BCS=2", "AT+CHLD=1",
	} {
		assert.Equal(t, []string{ResultOK}, handle(t, s, line), line)
	}
}

func TestUnsupportedCommand(t *testing.T) {
	s := NewSession(&fakeVoice{}, false)
	assert.Equal(t, []string{ResultError}, handle(t, s, "AT+COPS?"))
	assert.Equal(t, []string{ResultError}, handle(t, s, "AT+BAC?"))
}

func TestGains(t *testing.T) {
	v := &fakeVoice{spk: 8, mic: 8}
	s := NewSession(v, false)
	assert.Empty(t, s.GainUpdates())

	assert.Equal(t, []string{ResultOK}, handle(t, s, "AT+VGS=12"))
	assert.Equal(t, []string{ResultOK}, handle(t, s, "AT+VGM=3"))
	assert.Equal(t, uint8(12), v.spk)
	assert.Equal(t, uint8(3), v.mic)
	// values set by the remote are not echoed back
	assert.Empty(t, s.GainUpdates())

	assert.Equal(t, []string{ResultOK}, handle(t, s, "AT+VGS=99"))
	assert.Equal(t, uint8(12), v.spk)

	v.spk, v.mic = 5, 6
	assert.Equal(t, []string{"+VGM=6", "+VGS=5"}, s.GainUpdates())
	assert.Empty(t, s.GainUpdates())
}

func TestXAPL(t *testing.T) {
	s := NewSession(&fakeVoice{}, false)

	assert.Equal(t, []string{xaplReply, ResultOK}, handle(t, s, "AT+XAPL=05AC-1234-0100,10"))
	assert.Equal(t, Accessory{
		VendorID:  0x05ac,
		ProductID: 0x1234,
		Version:   100,
		Features:  10,
		Battery:   -1,
		Docked:    -1,
	}, s.Accessory())

	assert.Equal(t, []string{ResultError}, handle(t, s, "AT+XAPL=garbage"))
}

func TestAccessoryEvent(t *testing.T) {
	tests := []struct {
		name        string
		value       string
		wantBattery int
		wantDocked  int
	}{
		{name: "battery and dock", value: "2,1,7,2,0", wantBattery: 7, wantDocked: 0},
		{name: "battery only", value: "1,1,3", wantBattery: 3, wantDocked: -1},
		{name: "unknown key skipped", value: "2,5,1,1,9", wantBattery: 9, wantDocked: -1},
		{name: "count larger than pairs", value: "3,1,4", wantBattery: 4, wantDocked: -1},
		{name: "bad count", value: "x,1,4", wantBattery: -1, wantDocked: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(&fakeVoice{}, false)
			assert.Equal(t, []string{ResultOK}, handle(t, s, "AT+IPHONEACCEV="+tt.value))
			assert.Equal(t, tt.wantBattery, s.Accessory().Battery)
			assert.Equal(t, tt.wantDocked, s.Accessory().Docked)
		})
	}
}
