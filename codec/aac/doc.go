// Package aac carries the AAC codec engines of A2DP transports.
//
// A2DP transmits AAC as an MPEG-4 LATM stream: every RTP payload holds an
// AudioMuxElement with the stream configuration present in-band. The sink
// side parses the mux element, initializes a decoder from the embedded
// AudioSpecificConfig and decodes the access units it carries. The decoder
// is the pure Go port of FAAD2 from github.com/llehouerou/go-aac.
//
// The encoder binds the Fraunhofer FDK AAC library through cgo and is only
// built with the fdkaac build tag:
//
//	go build -tags fdkaac ./...
//
// Without the tag NewEncoder fails with codec.ErrUnavailable and A2DP
// source transports using AAC terminate at initialization.
package aac
