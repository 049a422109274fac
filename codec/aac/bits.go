package aac

// bitReader reads MSB-first bit fields and records overruns instead of
// panicking; callers check err once a structure was parsed.
type bitReader struct {
	buf []byte
	pos int
	err error
}

func (r *bitReader) read(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		if r.pos>>3 >= len(r.buf) {
			r.err = ErrTruncatedLATM
			return 0
		}
		v <<= 1
		if r.buf[r.pos>>3]&(0x80>>uint(r.pos&7)) != 0 {
			v |= 1
		}
		r.pos++
	}
	return v
}

func (r *bitReader) skip(n int) {
	r.pos += n
	if r.pos > 8*len(r.buf) {
		r.err = ErrTruncatedLATM
	}
}

// copyBits extracts bits [from, to) into a byte aligned slice.
func (r *bitReader) copyBits(from, to int) []byte {
	out := make([]byte, (to-from+7)/8)
	for i := 0; i < to-from; i++ {
		p := from + i
		if r.buf[p>>3]&(0x80>>uint(p&7)) != 0 {
			out[i>>3] |= 0x80 >> uint(i&7)
		}
	}
	return out
}

// bytes reads n unaligned octets.
func (r *bitReader) bytes(n int) []byte {
	if r.pos+8*n > 8*len(r.buf) {
		r.err = ErrTruncatedLATM
		return nil
	}
	out := r.copyBits(r.pos, r.pos+8*n)
	r.pos += 8 * n
	return out
}
