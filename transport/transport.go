package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Profile is the role the local device plays on the link.
type Profile int

const (
	// ProfileA2DPSource streams local PCM to a remote sink.
	ProfileA2DPSource Profile = iota
	// ProfileA2DPSink plays audio streamed by a remote source.
	ProfileA2DPSink
	// ProfileSCO carries bidirectional HFP/HSP voice.
	ProfileSCO
	// ProfileRFCOMM carries the HFP AT command channel.
	ProfileRFCOMM
)

func (p Profile) String() string {
	switch p {
	case ProfileA2DPSource:
		return "A2DP Source"
	case ProfileA2DPSink:
		return "A2DP Sink"
	case ProfileSCO:
		return "SCO"
	case ProfileRFCOMM:
		return "RFCOMM"
	}
	return fmt.Sprintf("Profile(%d)", int(p))
}

// State is the administrative link state.
type State int32

const (
	// StateIdle means the loop must not watch the link.
	StateIdle State = iota
	// StateActive means audio flows on the link.
	StateActive
	// StateAborted means the link was lost.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Volume is the gain setting of one channel.
type Volume struct {
	Level uint8
	Muted bool
}

func packVolume(v Volume) uint32 {
	p := uint32(v.Level)
	if v.Muted {
		p |= 1 << 8
	}
	return p
}

func unpackVolume(p uint32) Volume {
	return Volume{Level: uint8(p), Muted: p&(1<<8) != 0}
}

// Transport is one established audio link.
type Transport struct {
	// ID identifies the transport in logs and in the engine.
	ID uuid.UUID
	// Profile selects the I/O loop.
	Profile Profile
	// Config is the negotiated A2DP codec configuration element.
	Config []byte
	// Channels and SampleRate describe the PCM format of A2DP transports.
	Channels   int
	SampleRate int

	// PCM is the endpoint of A2DP transports.
	PCM *pcm.Endpoint
	// Speaker is the SCO endpoint read from and sent to the remote device.
	Speaker *pcm.Endpoint
	// Mic is the SCO endpoint receiving audio from the remote device.
	Mic *pcm.Endpoint

	// SCO is the voice transport an RFCOMM transport negotiates for.
	SCO *Transport

	// AcquireLink connects the Bluetooth socket on demand. Used by SCO
	// transports whose link only exists while a PCM is open.
	AcquireLink func(t *Transport) error
	// ReleaseLink disconnects a link obtained with AcquireLink.
	ReleaseLink func(t *Transport) error
	// OnRelease is called once when the I/O loop exits.
	OnRelease func(t *Transport)

	Wakeup *Wakeup

	codec       atomic.Uint32
	state       atomic.Int32
	volume      [2]atomic.Uint32
	speakerGain atomic.Uint32
	micGain     atomic.Uint32

	mu       sync.Mutex
	btFD     int
	readMTU  int
	writeMTU int

	releaseOnce sync.Once
}

// New creates an idle transport without a link.
func New(profile Profile, codecID codec.ID) (*Transport, error) {
	wakeup, err := NewWakeup()
	if err != nil {
		return nil, err
	}

	t := &Transport{
		ID:      uuid.New(),
		Profile: profile,
		Wakeup:  wakeup,
		btFD:    -1,
	}
	t.codec.Store(uint32(codecID))
	for i := range t.volume {
		t.volume[i].Store(packVolume(Volume{Level: pcm.MaxVolume}))
	}

	logrus.WithFields(logrus.Fields{
		"function":  "New",
		"transport": t.ID,
		"profile":   profile,
	}).Debug("Created transport")

	return t, nil
}

// Logger returns an entry tagged with the transport identity.
func (t *Transport) Logger(base *logrus.Logger) *logrus.Entry {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return base.WithFields(logrus.Fields{
		"transport": t.ID,
		"profile":   t.Profile,
	})
}

// Codec returns the selected codec.
func (t *Transport) Codec() codec.ID {
	return codec.ID(t.codec.Load())
}

// SetCodec changes the codec and wakes the loop.
func (t *Transport) SetCodec(id codec.ID) {
	t.codec.Store(uint32(id))
	t.signal()
}

// State returns the link state.
func (t *Transport) State() State {
	return State(t.state.Load())
}

// Active reports whether the loop should watch the link.
func (t *Transport) Active() bool {
	return t.State() == StateActive
}

// SetState changes the link state and wakes the loop.
func (t *Transport) SetState(s State) {
	old := State(t.state.Swap(int32(s)))
	if old != s {
		logrus.WithFields(logrus.Fields{
			"function":  "Transport.SetState",
			"transport": t.ID,
			"old":       old,
			"new":       s,
		}).Debug("Transport state changed")
	}
	t.signal()
}

// Volume returns the volume of channel ch (0 or 1).
func (t *Transport) Volume(ch int) Volume {
	return unpackVolume(t.volume[ch&1].Load())
}

// SetVolume changes the volume of channel ch and wakes the loop.
func (t *Transport) SetVolume(ch int, v Volume) {
	t.volume[ch&1].Store(packVolume(v))
	t.signal()
}

// SpeakerGain returns the HFP speaker gain (0-15).
func (t *Transport) SpeakerGain() uint8 {
	return uint8(t.speakerGain.Load())
}

// MicGain returns the HFP microphone gain (0-15).
func (t *Transport) MicGain() uint8 {
	return uint8(t.micGain.Load())
}

// SetSpeakerGain changes the HFP speaker gain and wakes the loop.
func (t *Transport) SetSpeakerGain(g uint8) {
	t.speakerGain.Store(uint32(g))
	t.signal()
}

// SetMicGain changes the HFP microphone gain and wakes the loop.
func (t *Transport) SetMicGain(g uint8) {
	t.micGain.Store(uint32(g))
	t.signal()
}

// SetLink installs the Bluetooth socket and its MTUs. The transport takes
// ownership of fd.
func (t *Transport) SetLink(fd, readMTU, writeMTU int) {
	t.mu.Lock()
	t.btFD, t.readMTU, t.writeMTU = fd, readMTU, writeMTU
	t.mu.Unlock()
}

// Link returns the Bluetooth socket and its MTUs.
func (t *Transport) Link() (fd, readMTU, writeMTU int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.btFD, t.readMTU, t.writeMTU
}

// BTFD returns the Bluetooth socket, or -1.
func (t *Transport) BTFD() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.btFD
}

// SetMTU updates the MTUs of the current link.
func (t *Transport) SetMTU(readMTU, writeMTU int) {
	t.mu.Lock()
	t.readMTU, t.writeMTU = readMTU, writeMTU
	t.mu.Unlock()
}

// CloseLink shuts the Bluetooth socket. Later releases of the transport
// see no link and skip any remote release.
func (t *Transport) CloseLink() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.btFD == -1 {
		return nil
	}
	err := unix.Close(t.btFD)
	t.btFD = -1
	if err != nil {
		return fmt.Errorf("close link: %w", err)
	}
	return nil
}

// Acquire connects the link through AcquireLink if none is present.
func (t *Transport) Acquire() error {
	if t.BTFD() != -1 {
		return nil
	}
	if t.AcquireLink == nil {
		return ErrNoAcquire
	}
	if err := t.AcquireLink(t); err != nil {
		return fmt.Errorf("acquire link: %w", err)
	}
	if t.BTFD() == -1 {
		return ErrNoLink
	}
	return nil
}

// ReleaseLinkNow drops the link through ReleaseLink, or closes it.
func (t *Transport) ReleaseLinkNow() error {
	if t.BTFD() == -1 {
		return nil
	}
	if t.ReleaseLink != nil {
		return t.ReleaseLink(t)
	}
	return t.CloseLink()
}

// Release runs the release callback. Only the first call has an effect.
func (t *Transport) Release() {
	t.releaseOnce.Do(func() {
		logrus.WithFields(logrus.Fields{
			"function":  "Transport.Release",
			"transport": t.ID,
		}).Debug("Releasing transport")
		if t.OnRelease != nil {
			t.OnRelease(t)
		}
	})
}

// Close frees the wakeup, the link and the PCM endpoints.
func (t *Transport) Close() error {
	for _, ep := range []*pcm.Endpoint{t.PCM, t.Speaker, t.Mic} {
		if ep != nil {
			ep.Release()
		}
	}
	t.CloseLink()
	return t.Wakeup.Close()
}

func (t *Transport) signal() {
	if err := t.Wakeup.Signal(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":  "Transport.signal",
			"transport": t.ID,
			"error":     err.Error(),
		}).Debug("Failed to wake I/O loop")
	}
}
