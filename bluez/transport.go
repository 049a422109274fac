package bluez

import (
	"context"
	"fmt"
	"strings"

	dbus "github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/codec/aac"
	"github.com/opd-ai/btaudio/codec/sbc"
	"github.com/opd-ai/btaudio/transport"
)

// Profile UUIDs of the A2DP roles. A transport for the local sink endpoint
// carries the sink UUID.
var (
	A2DPSourceUUID = uuid.MustParse("0000110a-0000-1000-8000-00805f9b34fb")
	A2DPSinkUUID   = uuid.MustParse("0000110b-0000-1000-8000-00805f9b34fb")
)

// profileFromUUID maps a transport UUID to the local role.
func profileFromUUID(s string) (transport.Profile, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrUnknownProfile, s, err)
	}
	switch id {
	case A2DPSourceUUID:
		return transport.ProfileA2DPSource, nil
	case A2DPSinkUUID:
		return transport.ProfileA2DPSink, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownProfile, id)
}

// PCMFormat returns the channel count and sample rate of an A2DP codec
// configuration.
func PCMFormat(id codec.ID, blob []byte) (channels, rate int, err error) {
	switch id {
	case codec.SBC:
		cfg, err := sbc.ParseA2DP(blob)
		if err != nil {
			return 0, 0, err
		}
		return cfg.Channels(), cfg.SampleRate(), nil
	case codec.AAC:
		cfg, err := aac.ParseA2DP(blob)
		if err != nil {
			return 0, 0, err
		}
		return cfg.Channels, cfg.SampleRate, nil
	}
	return 0, 0, fmt.Errorf("%w: %#02x", ErrUnsupportedCodec, uint8(id))
}

// NewA2DPTransport acquires the stream of mt and wraps it.
//
// The codec configuration decides the PCM format. The transport starts
// active, with the AVRCP volume applied to both channels when BlueZ
// reports one.
//
// Parameters:
//   - mt: The BlueZ media transport
//
// Returns:
//   - *transport.Transport: Transport owning the acquired socket
//   - error: ErrUnknownProfile, ErrUnsupportedCodec, a configuration error
//     or the D-Bus failure
func NewA2DPTransport(mt *MediaTransport) (*transport.Transport, error) {
	u, err := mt.UUID()
	if err != nil {
		return nil, err
	}
	profile, err := profileFromUUID(u)
	if err != nil {
		return nil, err
	}

	id, err := mt.Codec()
	if err != nil {
		return nil, err
	}
	blob, err := mt.Configuration()
	if err != nil {
		return nil, err
	}

	channels, rate, err := PCMFormat(codec.ID(id), blob)
	if err != nil {
		return nil, err
	}

	t, err := transport.New(profile, codec.ID(id))
	if err != nil {
		return nil, err
	}
	t.Config = blob
	t.Channels = channels
	t.SampleRate = rate

	link, err := mt.Acquire()
	if err != nil {
		t.Close()
		return nil, err
	}
	t.SetLink(link.FD, link.ReadMTU, link.WriteMTU)

	// the remote already closed the socket when the link is gone
	t.OnRelease = func(tr *transport.Transport) {
		if tr.BTFD() == -1 {
			return
		}
		if err := mt.Release(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":  "NewA2DPTransport",
				"transport": tr.ID,
				"error":     err.Error(),
			}).Warn("Failed to release media transport")
		}
		tr.CloseLink()
	}

	if vol, err := mt.Volume(); err == nil {
		applyVolume(t, vol)
	}
	t.SetState(transport.StateActive)

	logrus.WithFields(logrus.Fields{
		"function":  "NewA2DPTransport",
		"transport": t.ID,
		"path":      mt.Path(),
		"profile":   profile,
		"codec":     codec.A2DPName(codec.ID(id)),
	}).Info("Created transport from BlueZ")

	return t, nil
}

func applyVolume(t *transport.Transport, vol uint16) {
	v := transport.Volume{Level: uint8(min(vol, 127))}
	t.SetVolume(0, v)
	t.SetVolume(1, v)
}

// applyChanges applies the body of a PropertiesChanged signal.
func applyChanges(t *transport.Transport, body []interface{}) {
	if len(body) < 2 {
		return
	}
	if iface, _ := body[0].(string); iface != MediaTransportInterface {
		return
	}
	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if v, ok := changed["State"]; ok {
		if s, ok := v.Value().(string); ok {
			if strings.EqualFold(s, "active") {
				t.SetState(transport.StateActive)
			} else {
				t.SetState(transport.StateIdle)
			}
		}
	}
	if v, ok := changed["Volume"]; ok {
		if vol, ok := v.Value().(uint16); ok {
			applyVolume(t, vol)
		}
	}
}

// Follow mirrors state and volume changes of the BlueZ transport at path
// into t until ctx is done.
func Follow(ctx context.Context, conn *dbus.Conn, path dbus.ObjectPath, t *transport.Transport) error {
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := conn.AddMatchSignal(match...); err != nil {
		return fmt.Errorf("bluez: watch %s: %w", path, err)
	}
	defer conn.RemoveMatchSignal(match...)

	signals := make(chan *dbus.Signal, 16)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if sig.Path != path || sig.Name != propertiesInterface+".PropertiesChanged" {
				continue
			}
			applyChanges(t, sig.Body)
		}
	}
}
