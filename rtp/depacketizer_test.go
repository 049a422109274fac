package rtp

import (
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, h rtp.Header, payload []byte) []byte {
	t.Helper()
	h.Version = 2
	data, err := (&rtp.Packet{Header: h, Payload: payload}).Marshal()
	require.NoError(t, err)
	return data
}

func TestDepacketizerParse(t *testing.T) {
	tests := []struct {
		name    string
		header  rtp.Header
		payload []byte
		wantErr error
	}{
		{
			name:    "valid",
			header:  rtp.Header{PayloadType: 96, SequenceNumber: 1},
			payload: []byte{0x01, 0x9c},
		},
		{
			name:    "contributing sources are skipped",
			header:  rtp.Header{PayloadType: 96, SequenceNumber: 2, CSRC: []uint32{1, 2, 3}},
			payload: []byte{0x02, 0xaa, 0xbb},
		},
		{
			name:    "wrong payload type",
			header:  rtp.Header{PayloadType: 97},
			payload: []byte{0x01},
			wantErr: ErrUnsupportedPayloadType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Depacketizer
			pkt, err := d.Parse(marshal(t, tt.header, tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, pkt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.payload, pkt.Payload)
		})
	}
}

func TestDepacketizerMalformed(t *testing.T) {
	var d Depacketizer
	_, err := d.Parse([]byte{0x80, 0x60, 0x00})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDepacketizerSequenceGap(t *testing.T) {
	var d Depacketizer
	for _, seq := range []uint16{100, 101, 104, 105} {
		_, err := d.Parse(marshal(t, rtp.Header{PayloadType: 96, SequenceNumber: seq}, []byte{1}))
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(2), d.Lost())

	d.Reset()
	_, err := d.Parse(marshal(t, rtp.Header{PayloadType: 96, SequenceNumber: 7}, []byte{1}))
	require.NoError(t, err)
	assert.Zero(t, d.Lost())
}

func TestParseSBCPayload(t *testing.T) {
	frames, data, err := ParseSBCPayload([]byte{0xf5, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 5, frames)
	assert.Equal(t, []byte{1, 2}, data)

	_, _, err = ParseSBCPayload(nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPacketizerDepacketizerRoundTrip(t *testing.T) {
	p := NewPacketizerAt(65530, 0)
	var d Depacketizer
	buf := make([]byte, 128)

	for i := 0; i < 10; i++ {
		pkt, err := p.SBCPacket(buf, 2, []byte{byte(i), byte(i)})
		require.NoError(t, err)
		p.Advance(256)

		parsed, err := d.Parse(pkt)
		require.NoError(t, err)
		assert.Equal(t, uint32(256*i), parsed.Timestamp)
	}
	assert.Zero(t, d.Lost())
}
