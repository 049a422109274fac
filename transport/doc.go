// Package transport describes one established Bluetooth audio link as seen
// by its I/O loop.
//
// A Transport is created and owned by the connection management layer. The
// I/O loop borrows it for the lifetime of one loop invocation: it reads the
// socket, MTUs, codec and volume settings, uses the PCM endpoints, and calls
// Release exactly once when it exits.
//
// The only synchronization between a running loop and the rest of the
// system is the Wakeup, an eventfd that makes the loop's blocking wait
// return so it can re-read the transport state. Setters that change state
// the loop acts on signal the wakeup themselves.
//
// Example:
//
//	t, err := transport.New(transport.ProfileA2DPSource, codec.SBC)
//	if err != nil {
//		return err
//	}
//	defer t.Close()
//	t.SetLink(fd, readMTU, writeMTU)
//	t.SetState(transport.StateActive)
package transport
