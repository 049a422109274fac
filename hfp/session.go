package hfp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/opd-ai/btaudio/codec"
	"github.com/sirupsen/logrus"
)

// Supported feature bits exchanged with +BRSF.
const (
	AGFeatureECS   = 1 << 6
	AGFeatureCodec = 1 << 9
	HFFeatureCodec = 1 << 7
)

// AGFeatures is the feature set announced by this gateway without codec
// negotiation.
const AGFeatures = AGFeatureECS

// Fixed result codes.
const (
	ResultOK    = "OK"
	ResultError = "ERROR"

	cindValues = "+CIND: 0,0,1,4,0,4,0"
	cindRanges = `+CIND: ("call",(0,1)),("callsetup",(0-3)),("service",(0-1)),` +
		`("signal",(0-5)),("roam",(0,1)),("battchg",(0-5)),("callheld",(0-2))`
	chldRanges = "+CHLD: (0,1,2,3)"
	xaplReply  = "+XAPL=BTAudio,0"
)

// Voice is the SCO link the session negotiates for.
type Voice interface {
	Codec() codec.ID
	SetCodec(id codec.ID)
	SpeakerGain() uint8
	SetSpeakerGain(g uint8)
	MicGain() uint8
	SetMicGain(g uint8)
}

// Accessory holds what an Apple accessory reported with +XAPL and
// +IPHONEACCEV.
type Accessory struct {
	VendorID  uint16
	ProductID uint16
	Version   uint32
	Features  uint32
	// Battery level 0-9, -1 when unknown.
	Battery int
	// Docked state, -1 when unknown.
	Docked int
}

// Session is the gateway state of one service level connection. It is
// driven from the RFCOMM I/O loop only.
type Session struct {
	voice      Voice
	msbc       bool
	hfFeatures uint32
	accessory  Accessory
	micGain    uint8
	spkGain    uint8
	log        *logrus.Entry
}

// NewSession starts a session on voice, which is reset to CVSD. Wideband
// speech is offered only when msbc is set.
func NewSession(voice Voice, msbc bool) *Session {
	voice.SetCodec(codec.CVSD)
	return &Session{
		voice:     voice,
		msbc:      msbc,
		accessory: Accessory{Battery: -1, Docked: -1},
		micGain:   voice.MicGain(),
		spkGain:   voice.SpeakerGain(),
		log:       logrus.WithField("component", "hfp"),
	}
}

// SetLogger replaces the log entry.
func (s *Session) SetLogger(log *logrus.Entry) {
	if log != nil {
		s.log = log
	}
}

// HFFeatures returns the features announced by the hands-free unit.
func (s *Session) HFFeatures() uint32 {
	return s.hfFeatures
}

// Accessory returns the Apple accessory information.
func (s *Session) Accessory() Accessory {
	return s.accessory
}

// Handle answers one command. The returned result codes are sent in order.
func (s *Session) Handle(cmd Command) []string {
	switch {
	case cmd.Name == "+CKPD" && cmd.Value == "200":
	case cmd.Name == "+VGM" && cmd.Type == CommandSet:
		if g, ok := parseGain(cmd.Value); ok {
			s.micGain = g
			s.voice.SetMicGain(g)
		}
	case cmd.Name == "+VGS" && cmd.Type == CommandSet:
		if g, ok := parseGain(cmd.Value); ok {
			s.spkGain = g
			s.voice.SetSpeakerGain(g)
		}
	case cmd.Name == "+IPHONEACCEV" && cmd.Type == CommandSet:
		s.handleAccessoryEvent(cmd.Value)
	case cmd.Name == "+XAPL" && cmd.Type == CommandSet:
		if !s.handleXAPL(cmd.Value) {
			return []string{ResultError}
		}
		return []string{xaplReply, ResultOK}
	case cmd.Name == "+BRSF" && cmd.Type == CommandSet:
		return []string{s.handleBRSF(cmd.Value), ResultOK}
	case cmd.Name == "+BAC" && cmd.Type == CommandSet:
		s.handleBAC(cmd.Value)
	case cmd.Name == "+CIND" && cmd.Type == CommandGet:
		return []string{cindValues, ResultOK}
	case cmd.Name == "+CIND" && cmd.Type == CommandTest:
		return []string{cindRanges, ResultOK}
	case cmd.Name == "+CMER" && cmd.Type == CommandSet:
		// last step of the service level connection setup
		if id := s.voice.Codec(); id != codec.CVSD {
			return []string{ResultOK, fmt.Sprintf("+BCS: %d", id)}
		}
	case cmd.Name == "+BCS" && cmd.Type == CommandSet:
		s.log.WithFields(logrus.Fields{
			"function": "Session.Handle",
			"codec":    cmd.Value,
		}).Debug("Codec selection confirmed")
	case cmd.Name == "+BTRH" && cmd.Type == CommandGet,
		cmd.Name == "+NREC" && cmd.Type == CommandSet,
		cmd.Name == "+CCWA" && cmd.Type == CommandSet,
		cmd.Name == "+BIA" && cmd.Type == CommandSet,
		cmd.Name == "+CHLD" && cmd.Type == CommandSet:
	case cmd.Name == "+CHLD" && cmd.Type == CommandTest:
		return []string{chldRanges, ResultOK}
	default:
		s.log.WithFields(logrus.Fields{
			"function": "Session.Handle",
			"command":  cmd.Name,
			"type":     cmd.Type,
		}).Warn("Unsupported AT command")
		return []string{ResultError}
	}

	return []string{ResultOK}
}

// GainUpdates returns the unsolicited result codes for gains changed on
// the voice link since the last call or the last +VGM/+VGS received.
func (s *Session) GainUpdates() []string {
	var out []string
	if g := s.voice.MicGain(); g != s.micGain {
		s.micGain = g
		out = append(out, fmt.Sprintf("+VGM=%d", g))
	}
	if g := s.voice.SpeakerGain(); g != s.spkGain {
		s.spkGain = g
		out = append(out, fmt.Sprintf("+VGS=%d", g))
	}
	return out
}

func (s *Session) handleBRSF(value string) string {
	features, err := strconv.ParseUint(strings.TrimSpace(value), 10, 32)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"function": "Session.handleBRSF",
			"value":    value,
		}).Warn("Invalid HF features")
	}
	s.hfFeatures = uint32(features)

	ag := uint32(AGFeatures)
	if s.msbc && s.hfFeatures&HFFeatureCodec != 0 {
		ag |= AGFeatureCodec
	} else {
		// no codec negotiation: +BAC will not follow
		s.voice.SetCodec(codec.CVSD)
	}

	s.log.WithFields(logrus.Fields{
		"function":    "Session.handleBRSF",
		"hf_features": fmt.Sprintf("%#x", s.hfFeatures),
		"ag_features": fmt.Sprintf("%#x", ag),
	}).Debug("Exchanged supported features")

	return fmt.Sprintf("+BRSF: %d", ag)
}

func (s *Session) handleBAC(value string) {
	for _, field := range strings.Split(value, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(field), 10, 8)
		if err != nil {
			continue
		}
		if codec.ID(id) == codec.MSBC && s.msbc {
			s.voice.SetCodec(codec.MSBC)
		}
	}
	s.log.WithFields(logrus.Fields{
		"function": "Session.handleBAC",
		"codecs":   value,
		"selected": codec.HFPName(s.voice.Codec()),
	}).Debug("Received available codecs")
}

func (s *Session) handleXAPL(value string) bool {
	var vendor, product, version, features uint32
	if n, err := fmt.Sscanf(value, "%x-%x-%d,%d", &vendor, &product, &version, &features); err != nil || n != 4 {
		s.log.WithFields(logrus.Fields{
			"function": "Session.handleXAPL",
			"value":    value,
		}).Warn("Invalid XAPL value")
		return false
	}
	s.accessory.VendorID = uint16(vendor)
	s.accessory.ProductID = uint16(product)
	s.accessory.Version = version
	s.accessory.Features = features
	return true
}

func (s *Session) handleAccessoryEvent(value string) {
	fields := strings.Split(value, ",")
	count, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return
	}

	kv := fields[1:]
	for i := 0; i < count && i*2+1 < len(kv); i++ {
		key := strings.TrimSpace(kv[i*2])
		val, err := strconv.Atoi(strings.TrimSpace(kv[i*2+1]))
		if err != nil {
			continue
		}
		switch key {
		case "1":
			s.accessory.Battery = val
		case "2":
			s.accessory.Docked = val
		default:
			s.log.WithFields(logrus.Fields{
				"function": "Session.handleAccessoryEvent",
				"key":      key,
			}).Warn("Unsupported IPHONEACCEV key")
		}
	}
}

func parseGain(value string) (uint8, bool) {
	g, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
	if err != nil || g > 15 {
		return 0, false
	}
	return uint8(g), true
}
