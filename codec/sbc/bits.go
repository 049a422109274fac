package sbc

// bitWriter packs MSB-first bit fields into a byte slice.
type bitWriter struct {
	buf []byte
	pos int
}

func (w *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if v>>uint(i)&1 != 0 {
			w.buf[w.pos>>3] |= 0x80 >> uint(w.pos&7)
		}
		w.pos++
	}
}

// bitReader unpacks MSB-first bit fields.
type bitReader struct {
	buf []byte
	pos int
}

func (r *bitReader) read(n int) uint32 {
	var v uint32
	for i := 0; i < n; i++ {
		v <<= 1
		if r.buf[r.pos>>3]&(0x80>>uint(r.pos&7)) != 0 {
			v |= 1
		}
		r.pos++
	}
	return v
}
