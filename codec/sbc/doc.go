// Package sbc implements the low-complexity subband codec used by A2DP and,
// in its fixed mSBC variant, by wideband HFP speech.
//
// The encoder and decoder are pure Go. They follow the reference structure
// of the codec: a polyphase cosine-modulated filter bank with 4 or 8
// subbands, scale factors per subband, loudness or SNR bit allocation,
// optional joint stereo coding of the lower subbands, and a CRC-8 over the
// frame header and side information.
//
// Example:
//
//	cfg := sbc.MSBCConfig()
//	enc, err := sbc.NewEncoder(cfg)
//	if err != nil {
//		return err
//	}
//	frame := make([]byte, enc.OutputFrameSize())
//	consumed, written, err := enc.Encode(pcm, frame)
//
// Encoder and Decoder keep filter history and are not safe for concurrent
// use. Each transport loop owns its own instances.
package sbc
