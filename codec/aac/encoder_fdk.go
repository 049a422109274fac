//go:build fdkaac

package aac

/*
#cgo pkg-config: fdk-aac
#include <fdk-aac/aacenc_lib.h>

static int btaudio_aac_encode(HANDLE_AACENCODER h, void *in, int in_len,
		void *out, int out_len, int *consumed, int *written) {
	void *in_bufs[] = { in };
	INT in_ids[] = { IN_AUDIO_DATA };
	INT in_sizes[] = { in_len };
	INT in_el_sizes[] = { 2 };
	AACENC_BufDesc in_desc = {
		.numBufs = 1,
		.bufs = in_bufs,
		.bufferIdentifiers = in_ids,
		.bufSizes = in_sizes,
		.bufElSizes = in_el_sizes,
	};

	void *out_bufs[] = { out };
	INT out_ids[] = { OUT_BITSTREAM_DATA };
	INT out_sizes[] = { out_len };
	INT out_el_sizes[] = { 1 };
	AACENC_BufDesc out_desc = {
		.numBufs = 1,
		.bufs = out_bufs,
		.bufferIdentifiers = out_ids,
		.bufSizes = out_sizes,
		.bufElSizes = out_el_sizes,
	};

	AACENC_InArgs in_args = { .numInSamples = in_len / 2 };
	AACENC_OutArgs out_args = { 0 };

	AACENC_ERROR err = aacEncEncode(h, &in_desc, &out_desc, &in_args, &out_args);
	*consumed = out_args.numInSamples * 2;
	*written = out_args.numOutBytes;
	return err;
}

static int btaudio_aac_info(HANDLE_AACENCODER h, int *frame_length, int *max_out) {
	AACENC_InfoStruct info;
	AACENC_ERROR err = aacEncInfo(h, &info);
	*frame_length = info.frameLength;
	*max_out = info.maxOutBufBytes;
	return err;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/opd-ai/btaudio/codec"
	"github.com/sirupsen/logrus"
)

// Encoder produces LATM (MCP1) framed AAC from interleaved s16le PCM.
type Encoder struct {
	handle   C.HANDLE_AACENCODER
	cfg      Config
	unitSize int
	maxOut   int
}

// NewEncoder opens and configures an FDK AAC encoder.
//
// Parameters:
//   - cfg: Negotiated A2DP configuration
//   - opts: Quality options
//
// Returns:
//   - *Encoder: Ready encoder
//   - error: codec.ErrInit wrapping the failing parameter
func NewEncoder(cfg Config, opts EncoderOptions) (*Encoder, error) {
	e := &Encoder{cfg: cfg}

	if err := C.aacEncOpen(&e.handle, 0, C.UINT(cfg.Channels)); err != C.AACENC_OK {
		return nil, fmt.Errorf("%w: open: %#x", codec.ErrInit, int(err))
	}

	channelMode := C.UINT(C.MODE_1)
	if cfg.Channels == 2 {
		channelMode = C.MODE_2
	}
	afterburner := C.UINT(0)
	if opts.Afterburner {
		afterburner = 1
	}

	params := []struct {
		name  string
		param C.AACENC_PARAM
		value C.UINT
	}{
		{"object type", C.AACENC_AOT, C.UINT(cfg.AudioObjectType())},
		{"bitrate", C.AACENC_BITRATE, C.UINT(cfg.Bitrate)},
		{"sample rate", C.AACENC_SAMPLERATE, C.UINT(cfg.SampleRate)},
		{"channel mode", C.AACENC_CHANNELMODE, channelMode},
		{"transport", C.AACENC_TRANSMUX, C.TT_MP4_LATM_MCP1},
		{"header period", C.AACENC_HEADER_PERIOD, 1},
		{"afterburner", C.AACENC_AFTERBURNER, afterburner},
		{"bitrate mode", C.AACENC_BITRATEMODE, C.UINT(opts.bitrateMode(cfg))},
	}
	for _, p := range params {
		if err := C.aacEncoder_SetParam(e.handle, p.param, p.value); err != C.AACENC_OK {
			e.Close()
			return nil, fmt.Errorf("%w: set %s: %#x", codec.ErrInit, p.name, int(err))
		}
	}

	if err := C.aacEncEncode(e.handle, nil, nil, nil, nil); err != C.AACENC_OK {
		e.Close()
		return nil, fmt.Errorf("%w: initialize: %#x", codec.ErrInit, int(err))
	}

	var frameLength, maxOut C.int
	if err := C.btaudio_aac_info(e.handle, &frameLength, &maxOut); err != C.AACENC_OK {
		e.Close()
		return nil, fmt.Errorf("%w: info: %#x", codec.ErrInit, int(err))
	}
	e.unitSize = int(frameLength) * cfg.Channels * 2
	e.maxOut = int(maxOut)

	logrus.WithFields(logrus.Fields{
		"function":    "NewEncoder",
		"rate":        cfg.SampleRate,
		"channels":    cfg.Channels,
		"bitrate":     cfg.Bitrate,
		"afterburner": opts.Afterburner,
	}).Debug("AAC encoder initialized")

	return e, nil
}

// InputUnitSize returns the PCM bytes of one access unit.
func (e *Encoder) InputUnitSize() int {
	return e.unitSize
}

// OutputFrameSize returns the upper bound of one encoded element.
func (e *Encoder) OutputFrameSize() int {
	return e.maxOut
}

// Encode feeds pcm to the encoder. The encoder may consume input without
// producing output while its look-ahead fills.
func (e *Encoder) Encode(pcm, out []byte) (int, int, error) {
	if len(pcm) < e.unitSize {
		return 0, 0, nil
	}
	if len(out) == 0 {
		return 0, 0, codec.ErrShortBuffer
	}

	var consumed, written C.int
	err := C.btaudio_aac_encode(e.handle,
		unsafe.Pointer(&pcm[0]), C.int(e.unitSize),
		unsafe.Pointer(&out[0]), C.int(len(out)),
		&consumed, &written)
	if err != C.AACENC_OK {
		return 0, 0, fmt.Errorf("%w: %#x", codec.ErrEncode, int(err))
	}

	return int(consumed), int(written), nil
}

// Close releases the encoder.
func (e *Encoder) Close() error {
	if e.handle != nil {
		C.aacEncClose(&e.handle)
		e.handle = nil
	}
	return nil
}
