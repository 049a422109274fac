package rtp

import (
	"fmt"

	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// Depacketizer parses the RTP packets of one incoming stream and tracks
// sequence continuity.
type Depacketizer struct {
	lastSeq    uint16
	hasLastSeq bool
	lost       uint64
}

// Lost returns the number of packets detected missing so far.
func (d *Depacketizer) Lost() uint64 {
	return d.lost
}

// Reset forgets the sequence state.
func (d *Depacketizer) Reset() {
	d.hasLastSeq = false
	d.lost = 0
}

// Parse validates an A2DP media packet and locates its payload, skipping
// the contributing source list and any header extension.
//
// Parameters:
//   - data: Raw packet as read from the transport socket
//
// Returns:
//   - *rtp.Packet: Parsed packet; Payload aliases data
//   - error: ErrMalformed or ErrUnsupportedPayloadType
func (d *Depacketizer) Parse(data []byte) (*rtp.Packet, error) {
	packet := &rtp.Packet{}
	if err := packet.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if packet.PayloadType != PayloadType {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPayloadType, packet.PayloadType)
	}

	if d.hasLastSeq {
		expected := d.lastSeq + 1
		if packet.SequenceNumber != expected {
			missing := packet.SequenceNumber - expected
			d.lost += uint64(missing)
			logrus.WithFields(logrus.Fields{
				"function": "Depacketizer.Parse",
				"expected": expected,
				"received": packet.SequenceNumber,
				"missing":  missing,
			}).Debug("Sequence gap detected in RTP stream")
		}
	}
	d.lastSeq = packet.SequenceNumber
	d.hasLastSeq = true

	return packet, nil
}

// ParseSBCPayload splits an SBC media payload into its declared frame
// count and the frame data.
func ParseSBCPayload(payload []byte) (int, []byte, error) {
	if len(payload) < SBCHeaderLen {
		return 0, nil, fmt.Errorf("%w: missing media payload header", ErrMalformed)
	}
	return int(payload[0] & 0x0f), payload[SBCHeaderLen:], nil
}
