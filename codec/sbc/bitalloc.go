package sbc

// frameParams is the per-frame side information shared by the encoder and
// the decoder.
type frameParams struct {
	cfg      Config
	channels int
	sf       [2][8]int
	join     [8]bool
	bits     [2][8]int
}

// allocate computes the number of bits of every subband sample from the
// scale factors.
func (p *frameParams) allocate() {
	switch p.cfg.Mode {
	case Mono, DualChannel:
		for ch := 0; ch < p.channels; ch++ {
			p.allocateChannels([]int{ch})
		}
	default:
		p.allocateChannels([]int{0, 1})
	}
}

// allocateChannels distributes one bitpool among the given channels.
// With two channels the subbands are visited alternating between them.
func (p *frameParams) allocateChannels(chans []int) {
	nsb := p.cfg.Subbands
	bitpool := p.cfg.Bitpool

	var bitneed [2][8]int
	maxBitneed := 0
	for _, ch := range chans {
		for sb := 0; sb < nsb; sb++ {
			bitneed[ch][sb] = p.bitneed(ch, sb)
			if bitneed[ch][sb] > maxBitneed {
				maxBitneed = bitneed[ch][sb]
			}
		}
	}

	bitcount := 0
	slicecount := 0
	bitslice := maxBitneed + 1
	for {
		bitslice--
		bitcount += slicecount
		slicecount = 0
		for _, ch := range chans {
			for sb := 0; sb < nsb; sb++ {
				need := bitneed[ch][sb]
				if need > bitslice+1 && need < bitslice+16 {
					slicecount++
				} else if need == bitslice+1 {
					slicecount += 2
				}
			}
		}
		if bitcount+slicecount >= bitpool {
			break
		}
	}
	if bitcount+slicecount == bitpool {
		bitcount += slicecount
		bitslice--
	}

	for _, ch := range chans {
		for sb := 0; sb < nsb; sb++ {
			if bitneed[ch][sb] < bitslice+2 {
				p.bits[ch][sb] = 0
			} else {
				p.bits[ch][sb] = min(bitneed[ch][sb]-bitslice, 16)
			}
		}
	}

	// visit order: subband major, channel minor
	n := len(chans)
	for i := 0; bitcount < bitpool && i < nsb*n; i++ {
		ch, sb := chans[i%n], i/n
		if p.bits[ch][sb] >= 2 && p.bits[ch][sb] < 16 {
			p.bits[ch][sb]++
			bitcount++
		} else if bitneed[ch][sb] == bitslice+1 && bitpool > bitcount+1 {
			p.bits[ch][sb] = 2
			bitcount += 2
		}
	}
	for i := 0; bitcount < bitpool && i < nsb*n; i++ {
		ch, sb := chans[i%n], i/n
		if p.bits[ch][sb] < 16 {
			p.bits[ch][sb]++
			bitcount++
		}
	}
}

func (p *frameParams) bitneed(ch, sb int) int {
	sf := p.sf[ch][sb]
	if p.cfg.Allocation == SNR {
		return sf
	}
	if sf == 0 {
		return -5
	}
	var loudness int
	if p.cfg.Subbands == 4 {
		loudness = sf - offset4[p.cfg.Frequency][sb]
	} else {
		loudness = sf - offset8[p.cfg.Frequency][sb]
	}
	if loudness > 0 {
		return loudness / 2
	}
	return loudness
}

// sideBits returns the number of join and scale factor bits.
func (p *frameParams) sideBits() int {
	n := 4 * p.cfg.Subbands * p.channels
	if p.cfg.Mode == JointStereo {
		n += p.cfg.Subbands
	}
	return n
}
