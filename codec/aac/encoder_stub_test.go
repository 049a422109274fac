//go:build !fdkaac

package aac

import (
	"testing"

	"github.com/opd-ai/btaudio/codec"
	"github.com/stretchr/testify/assert"
)

func TestNewEncoderUnavailable(t *testing.T) {
	enc, err := NewEncoder(Config{ObjectType: MPEG4LC, SampleRate: 44100, Channels: 2}, EncoderOptions{})
	assert.Nil(t, enc)
	assert.ErrorIs(t, err, codec.ErrInit)
	assert.ErrorIs(t, err, codec.ErrUnavailable)
}
