// Package hfp implements the audio gateway side of the Hands-Free Profile
// service level connection carried over RFCOMM.
//
// ParseAT splits a line received from the hands-free unit into a Command.
// A Session answers commands, tracks the features announced by the remote
// device, and negotiates the voice codec of the paired SCO transport:
// CVSD by default, mSBC when both sides support codec negotiation and the
// remote lists mSBC in +BAC.
//
//	s := hfp.NewSession(scoTransport, true)
//	cmd, err := hfp.ParseAT("AT+BRSF=756")
//	if err == nil {
//		for _, r := range s.Handle(cmd) {
//			conn.Write([]byte(hfp.Response(r)))
//		}
//	}
package hfp
