package rtp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/opd-ai/btaudio/limits"
	"github.com/pion/rtp"
	"github.com/sirupsen/logrus"
)

// PayloadType is the dynamic payload type used by A2DP media packets.
const PayloadType = 96

// HeaderLen is the size of a header without contributing sources.
const HeaderLen = limits.RTPHeaderLen

// SBCHeaderLen is the size of the SBC media payload header.
const SBCHeaderLen = limits.SBCPayloadHeaderLen

// Packetizer builds the RTP headers of one outgoing stream.
// It is owned by a single I/O loop and is not safe for concurrent use.
type Packetizer struct {
	sequenceNumber uint16
	timestamp      uint32
}

// NewPacketizer creates a packetizer with random initial sequence number
// and timestamp.
func NewPacketizer() *Packetizer {
	var seed [6]byte
	if _, err := rand.Read(seed[:]); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "NewPacketizer",
			"error":    err.Error(),
		}).Warn("Failed to randomize RTP sequence, starting at zero")
	}
	return NewPacketizerAt(binary.BigEndian.Uint16(seed[:2]), binary.BigEndian.Uint32(seed[2:]))
}

// NewPacketizerAt creates a packetizer with the given initial state.
func NewPacketizerAt(sequenceNumber uint16, timestamp uint32) *Packetizer {
	return &Packetizer{
		sequenceNumber: sequenceNumber,
		timestamp:      timestamp,
	}
}

// SequenceNumber returns the sequence number of the next packet.
func (p *Packetizer) SequenceNumber() uint16 {
	return p.sequenceNumber
}

// Timestamp returns the timestamp of the next packet.
func (p *Packetizer) Timestamp() uint32 {
	return p.timestamp
}

// Advance moves the timestamp forward by the number of PCM frames carried
// by the packets just sent.
func (p *Packetizer) Advance(frames uint32) {
	p.timestamp += frames
}

// header writes one RTP header into dst and consumes a sequence number.
func (p *Packetizer) header(dst []byte, marker bool) (int, error) {
	h := rtp.Header{
		Version:        2,
		Marker:         marker,
		PayloadType:    PayloadType,
		SequenceNumber: p.sequenceNumber,
		Timestamp:      p.timestamp,
	}
	n, err := h.MarshalTo(dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrBufferTooSmall, err)
	}
	p.sequenceNumber++
	return n, nil
}

// SBCPacket assembles an SBC media packet in dst.
//
// Parameters:
//   - dst: Destination buffer, at least HeaderLen+SBCHeaderLen+len(payload)
//   - frames: Number of SBC frames in payload (1-15)
//   - payload: Concatenated SBC frames
//
// Returns:
//   - []byte: The packet, a prefix of dst
//   - error: ErrTooManyFrames or ErrBufferTooSmall
func (p *Packetizer) SBCPacket(dst []byte, frames int, payload []byte) ([]byte, error) {
	if frames < 1 || frames > limits.MaxSBCFramesPerPacket {
		return nil, fmt.Errorf("%w: %d", ErrTooManyFrames, frames)
	}
	size := HeaderLen + SBCHeaderLen + len(payload)
	if len(dst) < size {
		return nil, fmt.Errorf("%w: need %d bytes", ErrBufferTooSmall, size)
	}

	n, err := p.header(dst, false)
	if err != nil {
		return nil, err
	}
	dst[n] = uint8(frames) & 0x0f
	copy(dst[n+SBCHeaderLen:], payload)

	return dst[:size], nil
}

// Fragments splits one AAC AudioMuxElement over packets no larger than mtu
// and passes each packet to emit. All fragments share the current
// timestamp; the marker bit is set while more fragments follow.
//
// Returns the number of packets emitted. The packet slice handed to emit
// is only valid during the call.
func (p *Packetizer) Fragments(payload []byte, mtu int, emit func(pkt []byte) error) (int, error) {
	maxFrag := mtu - HeaderLen
	if maxFrag <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrMTUTooSmall, mtu)
	}

	count := (len(payload) + maxFrag - 1) / maxFrag
	if count == 0 {
		count = 1
	}
	if count > 1 {
		logrus.WithFields(logrus.Fields{
			"function":  "Packetizer.Fragments",
			"size":      len(payload),
			"mtu":       mtu,
			"fragments": count,
		}).Debug("Fragmenting AAC payload")
	}

	buf := make([]byte, HeaderLen+min(maxFrag, len(payload)))
	for i := 0; i < count; i++ {
		frag := payload[i*maxFrag : min((i+1)*maxFrag, len(payload))]
		n, err := p.header(buf, i < count-1)
		if err != nil {
			return i, err
		}
		copy(buf[n:], frag)
		if err := emit(buf[:n+len(frag)]); err != nil {
			return i, err
		}
	}

	return count, nil
}
