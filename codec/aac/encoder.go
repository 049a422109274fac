package aac

// EncoderOptions tunes the FDK AAC encoder.
type EncoderOptions struct {
	// Afterburner enables the higher quality, higher complexity mode.
	Afterburner bool
	// VBRMode selects variable bitrate quality 1-5; 0 keeps constant
	// bitrate unless the configuration asks for VBR, in which case the
	// highest quality is used.
	VBRMode int
}

func (o EncoderOptions) bitrateMode(cfg Config) int {
	if o.VBRMode > 0 && o.VBRMode <= 5 {
		return o.VBRMode
	}
	if cfg.VBR {
		return 5
	}
	return 0
}
