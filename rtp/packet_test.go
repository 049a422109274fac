package rtp

import (
	"errors"
	"testing"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSBCPacket(t *testing.T) {
	p := NewPacketizerAt(0xfffe, 1000)
	payload := []byte{0x9c, 0xbd, 0x35, 0x00, 0x11}
	buf := make([]byte, 64)

	pkt, err := p.SBCPacket(buf, 3, payload)
	require.NoError(t, err)
	require.Len(t, pkt, HeaderLen+SBCHeaderLen+len(payload))

	var parsed rtp.Packet
	require.NoError(t, parsed.Unmarshal(pkt))
	assert.Equal(t, uint8(2), parsed.Version)
	assert.Equal(t, uint8(PayloadType), parsed.PayloadType)
	assert.Equal(t, uint16(0xfffe), parsed.SequenceNumber)
	assert.Equal(t, uint32(1000), parsed.Timestamp)
	assert.Zero(t, parsed.SSRC)
	assert.Empty(t, parsed.CSRC)
	assert.False(t, parsed.Marker)

	frames, data, err := ParseSBCPayload(parsed.Payload)
	require.NoError(t, err)
	assert.Equal(t, 3, frames)
	assert.Equal(t, payload, data)

	p.Advance(384)
	pkt, err = p.SBCPacket(buf, 1, payload)
	require.NoError(t, err)
	require.NoError(t, parsed.Unmarshal(pkt))
	assert.Equal(t, uint16(0xffff), parsed.SequenceNumber)
	assert.Equal(t, uint32(1384), parsed.Timestamp)

	p.SBCPacket(buf, 1, payload)
	assert.Equal(t, uint16(1), p.SequenceNumber())
}

func TestSBCPacketErrors(t *testing.T) {
	p := NewPacketizerAt(0, 0)

	_, err := p.SBCPacket(make([]byte, 64), 16, []byte{1})
	assert.ErrorIs(t, err, ErrTooManyFrames)
	_, err = p.SBCPacket(make([]byte, 64), 0, []byte{1})
	assert.ErrorIs(t, err, ErrTooManyFrames)
	_, err = p.SBCPacket(make([]byte, 13), 1, []byte{1})
	assert.ErrorIs(t, err, ErrBufferTooSmall)
	assert.Zero(t, p.SequenceNumber())
}

func TestFragments(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		mtu     int
		packets int
	}{
		{"fits one packet", 100, 200, 1},
		{"exactly one packet", 188, 200, 1},
		{"one byte over", 189, 200, 2},
		{"three fragments", 500, 200, 3},
		{"many fragments", 1000, 60, 21},
		{"empty payload", 0, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := make([]byte, tt.size)
			for i := range payload {
				payload[i] = byte(i)
			}

			p := NewPacketizerAt(10, 5000)
			var packets []rtp.Packet
			var joined []byte
			n, err := p.Fragments(payload, tt.mtu, func(pkt []byte) error {
				assert.LessOrEqual(t, len(pkt), tt.mtu)
				var parsed rtp.Packet
				require.NoError(t, parsed.Unmarshal(pkt))
				parsed.Payload = append([]byte(nil), parsed.Payload...)
				packets = append(packets, parsed)
				joined = append(joined, parsed.Payload...)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.packets, n)
			require.Len(t, packets, tt.packets)

			for i, pkt := range packets {
				assert.Equal(t, i < len(packets)-1, pkt.Marker, "fragment %d", i)
				assert.Equal(t, uint16(10+i), pkt.SequenceNumber)
				assert.Equal(t, uint32(5000), pkt.Timestamp)
			}
			assert.Equal(t, len(payload), len(joined))
			if tt.size > 0 {
				assert.Equal(t, payload, joined)
			}
		})
	}
}

func TestFragmentsErrors(t *testing.T) {
	p := NewPacketizerAt(0, 0)
	_, err := p.Fragments([]byte{1, 2, 3}, HeaderLen, func([]byte) error { return nil })
	assert.ErrorIs(t, err, ErrMTUTooSmall)

	sendErr := errors.New("socket closed")
	n, err := p.Fragments(make([]byte, 100), 50, func([]byte) error { return sendErr })
	assert.ErrorIs(t, err, sendErr)
	assert.Zero(t, n)
}

func TestNewPacketizerRandomStart(t *testing.T) {
	seen := map[uint32]bool{}
	for i := 0; i < 8; i++ {
		seen[NewPacketizer().Timestamp()] = true
	}
	assert.Greater(t, len(seen), 1)
}
