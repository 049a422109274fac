// Package rtp frames A2DP media payloads into RTP packets and back.
//
// A2DP streams carry one RTP header per L2CAP packet, version 2 with the
// dynamic payload type 96, no contributing sources and no extension. The
// header is followed by a codec specific payload:
//
//   - SBC: a one byte media payload header holding the number of SBC frames
//     in the packet, followed by the frames.
//   - AAC: an LATM AudioMuxElement without any extra header. Elements larger
//     than the link MTU are split over consecutive packets sharing the same
//     timestamp; the marker bit is set on every fragment but the last.
//
// The package uses github.com/pion/rtp for the header wire format.
//
// # Packetization
//
//	p := rtp.NewPacketizer()
//	pkt, err := p.SBCPacket(buf, frames, payload)
//	p.Advance(pcmFrames)
//
// Sequence numbers and timestamps start at random values each time a
// Packetizer is created and advance monotonically afterwards. Timestamps
// count PCM frames at the stream sampling rate.
//
// # Depacketization
//
//	var d rtp.Depacketizer
//	pkt, err := d.Parse(data)
//	if errors.Is(err, rtp.ErrUnsupportedPayloadType) {
//		// log and drop the packet
//	}
//
// Sequence gaps are reported at debug level; A2DP has no retransmission so
// a lost packet is simply skipped.
package rtp
