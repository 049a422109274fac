package bluez

import (
	"fmt"

	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
)

const (
	// Service is the bus name of the BlueZ daemon.
	Service = "org.bluez"
	// MediaTransportInterface is the interface of media transport objects.
	MediaTransportInterface = "org.bluez.MediaTransport1"

	propertiesInterface = "org.freedesktop.DBus.Properties"
)

// caller is the part of a D-Bus object proxy used here.
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Link is an acquired Bluetooth socket.
type Link struct {
	FD       int
	ReadMTU  int
	WriteMTU int
}

// MediaTransport is a proxy for one org.bluez.MediaTransport1 object.
type MediaTransport struct {
	obj  caller
	path dbus.ObjectPath
}

// NewMediaTransport creates a proxy for the transport object at path.
func NewMediaTransport(conn *dbus.Conn, path dbus.ObjectPath) *MediaTransport {
	return &MediaTransport{
		obj:  conn.Object(Service, path),
		path: path,
	}
}

// Path returns the object path of the transport.
func (m *MediaTransport) Path() dbus.ObjectPath {
	return m.path
}

// Acquire takes ownership of the Bluetooth socket of the stream.
//
// Returns:
//   - Link: The socket descriptor, owned by the caller, and its MTUs
//   - error: The D-Bus error reported by BlueZ
func (m *MediaTransport) Acquire() (Link, error) {
	return m.acquire("Acquire")
}

// TryAcquire is Acquire for streams the remote device already started.
// It fails instead of asking the device to start streaming.
func (m *MediaTransport) TryAcquire() (Link, error) {
	return m.acquire("TryAcquire")
}

func (m *MediaTransport) acquire(method string) (Link, error) {
	call := m.obj.Call(MediaTransportInterface+"."+method, 0)
	if call.Err != nil {
		return Link{}, fmt.Errorf("bluez: %s %s: %w", method, m.path, call.Err)
	}

	var fd dbus.UnixFD
	var readMTU, writeMTU uint16
	if err := call.Store(&fd, &readMTU, &writeMTU); err != nil {
		return Link{}, fmt.Errorf("bluez: decode %s reply: %w", method, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "MediaTransport.acquire",
		"path":      m.path,
		"fd":        int(fd),
		"read_mtu":  readMTU,
		"write_mtu": writeMTU,
	}).Debug("Acquired media transport")

	return Link{FD: int(fd), ReadMTU: int(readMTU), WriteMTU: int(writeMTU)}, nil
}

// Release gives the stream back to BlueZ.
func (m *MediaTransport) Release() error {
	if err := m.obj.Call(MediaTransportInterface+".Release", 0).Err; err != nil {
		return fmt.Errorf("bluez: Release %s: %w", m.path, err)
	}
	return nil
}

// Configuration returns the negotiated codec configuration element.
func (m *MediaTransport) Configuration() ([]byte, error) {
	v, err := m.property("Configuration")
	if err != nil {
		return nil, err
	}
	blob, ok := v.Value().([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: Configuration is %s", ErrPropertyType, v.Signature())
	}
	return blob, nil
}

// Codec returns the A2DP codec identifier.
func (m *MediaTransport) Codec() (byte, error) {
	v, err := m.property("Codec")
	if err != nil {
		return 0, err
	}
	id, ok := v.Value().(byte)
	if !ok {
		return 0, fmt.Errorf("%w: Codec is %s", ErrPropertyType, v.Signature())
	}
	return id, nil
}

// UUID returns the profile UUID of the transport.
func (m *MediaTransport) UUID() (string, error) {
	return m.stringProperty("UUID")
}

// State returns the stream state: idle, pending or active.
func (m *MediaTransport) State() (string, error) {
	return m.stringProperty("State")
}

// Volume returns the AVRCP absolute volume, 0 to 127.
func (m *MediaTransport) Volume() (uint16, error) {
	v, err := m.property("Volume")
	if err != nil {
		return 0, err
	}
	vol, ok := v.Value().(uint16)
	if !ok {
		return 0, fmt.Errorf("%w: Volume is %s", ErrPropertyType, v.Signature())
	}
	return vol, nil
}

func (m *MediaTransport) stringProperty(name string) (string, error) {
	v, err := m.property(name)
	if err != nil {
		return "", err
	}
	s, ok := v.Value().(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is %s", ErrPropertyType, name, v.Signature())
	}
	return s, nil
}

func (m *MediaTransport) property(name string) (dbus.Variant, error) {
	var v dbus.Variant
	call := m.obj.Call(propertiesInterface+".Get", 0, MediaTransportInterface, name)
	if call.Err != nil {
		return v, fmt.Errorf("bluez: get %s: %w", name, call.Err)
	}
	if err := call.Store(&v); err != nil {
		return v, fmt.Errorf("bluez: decode %s: %w", name, err)
	}
	return v, nil
}
