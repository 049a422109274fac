package sbc

// crcTable is the CRC-8 table of polynomial x^8+x^4+x^3+x^2+1.
var crcTable = func() [256]uint8 {
	var t [256]uint8
	for i := range t {
		c := uint8(i)
		for b := 0; b < 8; b++ {
			if c&0x80 != 0 {
				c = c<<1 ^ 0x1d
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

// crc8 computes the frame check over the first bits of data.
func crc8(data []byte, bits int) uint8 {
	crc := uint8(0x0f)
	n := bits / 8
	for i := 0; i < n; i++ {
		crc = crcTable[crc^data[i]]
	}
	if rem := bits % 8; rem > 0 {
		octet := data[n]
		for i := 0; i < rem; i++ {
			bit := (octet ^ crc) & 0x80
			crc <<= 1
			if bit != 0 {
				crc ^= 0x1d
			}
			octet <<= 1
		}
	}
	return crc
}

// frameCRC computes the check value of a packed frame. It covers header
// octets 1 and 2 followed by sideBits bits starting at octet 4.
func frameCRC(frame []byte, sideBits int) uint8 {
	buf := make([]byte, 2+(sideBits+7)/8)
	buf[0], buf[1] = frame[1], frame[2]
	copy(buf[2:], frame[4:])
	return crc8(buf, 16+sideBits)
}
