//go:build !fdkaac

package aac

import (
	"fmt"

	"github.com/opd-ai/btaudio/codec"
)

// Encoder is unavailable in builds without the fdkaac tag.
type Encoder struct{}

// NewEncoder always fails: this binary was built without FDK AAC.
func NewEncoder(cfg Config, opts EncoderOptions) (*Encoder, error) {
	return nil, fmt.Errorf("%w: %w: build with -tags fdkaac", codec.ErrInit, codec.ErrUnavailable)
}

// InputUnitSize returns 0.
func (e *Encoder) InputUnitSize() int { return 0 }

// OutputFrameSize returns 0.
func (e *Encoder) OutputFrameSize() int { return 0 }

// Encode always fails with codec.ErrUnavailable.
func (e *Encoder) Encode(pcm, out []byte) (int, int, error) {
	return 0, 0, codec.ErrUnavailable
}

// Close does nothing.
func (e *Encoder) Close() error { return nil }
