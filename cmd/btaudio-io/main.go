// Command btaudio-io runs Bluetooth audio I/O loops on inherited sockets or
// on BlueZ media transports.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// a .env file is optional
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
