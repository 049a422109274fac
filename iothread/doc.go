// Package iothread runs the per-transport real-time audio loops.
//
// Every active transport gets one loop, selected from its profile and
// codec:
//
//   - A2DP sink: RTP from the Bluetooth socket, SBC or AAC decoded to PCM
//   - A2DP source: PCM encoded to SBC or AAC, paced, sent as RTP
//   - SCO: CVSD passthrough or H2 framed mSBC in both directions
//   - RFCOMM: HFP AT commands and codec negotiation
//
// A loop blocks in poll(2) on the transport wakeup and the data
// descriptors. The wakeup is handled first and only makes the loop
// re-read the transport state. Cancellation through the context is
// observed at the top of each iteration; Run signals the wakeup when the
// context is done so a blocked poll returns promptly.
//
// Resources acquired during initialization are released in reverse order
// on every exit path, and the transport release callback always runs
// last.
//
// Example:
//
//	th := iothread.Start(ctx, t, config.Default(), nil)
//	defer th.Cancel()
//	if err := th.Wait(); err != nil && !errors.Is(err, context.Canceled) {
//		log.Printf("transport I/O failed: %v", err)
//	}
package iothread
