// Package pcm implements I/O on the local PCM endpoints of a transport.
//
// A PCM endpoint is one direction of local audio exposed as a FIFO. The
// remote consumer may close its side at any time, so every operation here
// treats closure as a normal condition: the endpoint is released and the
// caller is told that nothing was transferred, instead of getting an error
// that would tear down the whole transport.
//
// Reads and writes are atomic with respect to the requested length. A call
// either transfers the whole buffer, reports closure with a zero count, or
// fails with an error. Interrupted system calls are retried internally.
//
// Example:
//
//	ep := pcm.NewEndpoint("/run/btaudio/hci0/spk")
//	if err := ep.OpenRead(); err != nil {
//		return err
//	}
//	// poll ep.FD() for POLLIN, then
//	n, err := ep.Read(buf)
//	if err == nil && n == 0 && ep.Closed() {
//		// consumer went away
//	}
//
// The package also carries the software volume scaling applied to s16le
// samples when the device does not handle volume natively.
package pcm
