// Package bluez obtains audio transports from the BlueZ daemon over D-Bus.
//
// A BlueZ media transport object (org.bluez.MediaTransport1) hands out the
// Bluetooth socket of an established A2DP stream through its Acquire
// method. NewA2DPTransport turns such an object into a transport.Transport
// ready for the I/O loop:
//
//	conn, err := dbus.SystemBus()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mt := bluez.NewMediaTransport(conn, "/org/bluez/hci0/dev_00_11_22_33_44_55/fd0")
//	t, err := bluez.NewA2DPTransport(mt)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go bluez.Follow(ctx, conn, mt.Path(), t)
//
// The release callback of the returned transport releases the stream on the
// BlueZ side unless the link was already closed by the remote device.
package bluez
