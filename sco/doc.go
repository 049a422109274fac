// Package sco implements the H2 framing of wideband speech on SCO links.
//
// Every mSBC frame travels on the link behind a two byte H2 synchronization
// header and is followed by one padding byte:
//
//	+------+------+---------------- ... ----+-----+
//	| 0x01 | SN   | mSBC frame (57 bytes)   | pad |
//	+------+------+---------------- ... ----+-----+
//
// The second header byte carries a two bit rolling sequence number spread
// over the byte as 0x08, 0x38, 0xc8 and 0xf8. SCO delivery is not aligned to
// H2 frames, so the decoder scans incoming bytes one at a time until it finds
// the header followed by the mSBC sync word.
package sco
