package aac

import (
	goaac "github.com/llehouerou/go-aac"
)

// engine is the decoding primitive behind Decoder.
type engine struct {
	init   func(asc []byte) (rate, channels int, err error)
	decode func(au []byte) ([]int16, error)
	close  func()
}

// newGoAAC binds a FAAD2-port decoder instance.
func newGoAAC() *engine {
	dec := goaac.NewDecoder()
	return &engine{
		init: func(asc []byte) (int, int, error) {
			rate, channels, err := dec.SimpleInit2(asc)
			return int(rate), int(channels), err
		},
		decode: func(au []byte) ([]int16, error) {
			samples, err := dec.DecodeInt16(au)
			if err != nil {
				return nil, err
			}
			out := make([]int16, len(samples))
			for i, s := range samples {
				out[i] = int16(s)
			}
			return out, nil
		},
		close: func() {
			dec.Close()
		},
	}
}
