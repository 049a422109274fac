package sbc

// analysisState is the input history of one channel of the encoder.
type analysisState struct {
	x [80]float64
}

// run splits m new time-ordered samples into m subband samples.
func (a *analysisState) run(fb *filterBank, in, out []float64) {
	m := fb.m
	x := a.x[:10*m]
	copy(x[m:], x[:9*m])
	for i := 0; i < m; i++ {
		x[i] = in[m-1-i]
	}

	var y [16]float64
	for i := 0; i < 2*m; i++ {
		for j := 0; j < 5; j++ {
			y[i] += fb.window[i+2*m*j] * x[i+2*m*j]
		}
	}

	for k := 0; k < m; k++ {
		var s float64
		for i := 0; i < 2*m; i++ {
			s += fb.analysis[k][i] * y[i]
		}
		out[k] = s
	}
}

// synthesisState is the matrixing history of one channel of the decoder.
type synthesisState struct {
	v [160]float64
}

// run reconstructs m time-ordered samples from m subband samples.
func (s *synthesisState) run(fb *filterBank, in, out []float64) {
	m := fb.m
	v := s.v[:20*m]
	copy(v[2*m:], v[:18*m])
	for k := 0; k < 2*m; k++ {
		var sum float64
		for i := 0; i < m; i++ {
			sum += fb.synthesis[k][i] * in[i]
		}
		v[k] = sum
	}

	gain := float64(m)
	for j := 0; j < m; j++ {
		var o float64
		for i := 0; i < 10; i++ {
			n := i / 2
			var u float64
			if i%2 == 0 {
				u = v[n*4*m+j]
			} else {
				u = v[n*4*m+3*m+j]
			}
			o += u * gain * fb.window[j+m*i]
		}
		out[j] = o
	}
}
