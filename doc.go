// Package btaudio moves audio between Bluetooth sockets and local PCM
// streams.
//
// Each established Bluetooth audio link is a transport.Transport. The
// Engine runs one I/O loop per transport in its own goroutine; the loop
// kind follows the transport profile:
//
//   - A2DP sink: RTP packets from the socket are decoded (SBC or AAC) and
//     written to the PCM endpoint
//   - A2DP source: PCM is volume scaled, encoded and sent as RTP packets,
//     paced to the sample rate
//   - SCO: voice in both directions, CVSD passed through or mSBC inside
//     H2 frames
//   - RFCOMM: the hands-free AT command channel negotiating the voice codec
//     and gains of its SCO transport
//
// # Getting Started
//
//	cfg, err := config.Load("/etc/btaudio.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	engine := btaudio.NewEngine(cfg, nil)
//	defer engine.Close()
//
//	t, err := bluez.NewA2DPTransport(bluez.NewMediaTransport(conn, path))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	t.PCM = pcm.NewEndpoint("/run/btaudio/a2dp.pcm")
//
//	th, err := engine.Start(t)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = th.Wait()
//
// The loop of a transport ends when its context is cancelled, when the
// remote device closes the link, or when the PCM client goes away. The
// engine then closes the transport.
//
// # Thread Safety
//
// Engine methods are safe for concurrent use. Transport setters may be
// called from any goroutine; they wake the loop so it picks up the change.
package btaudio
