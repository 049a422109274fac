package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	dbus "github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/btaudio/bluez"
	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/opd-ai/btaudio/transport"
)

type a2dpFlags struct {
	dbusPath    string
	btFD        int
	readMTU     int
	writeMTU    int
	codec       string
	codecConfig string
	pcmPath     string
}

func newA2DPCmd(g *globalFlags, profile transport.Profile) *cobra.Command {
	f := &a2dpFlags{}

	use, direction := "a2dp-sink", "Decode audio received from a Bluetooth source into a PCM FIFO"
	if profile == transport.ProfileA2DPSource {
		use, direction = "a2dp-source", "Encode audio from a PCM FIFO and stream it to a Bluetooth sink"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: direction,
		Long: direction + `.

The stream is either taken from BlueZ (--dbus-path, the media transport
object) or given as an inherited L2CAP socket (--bt-fd) together with its
MTUs and codec configuration.

Examples:
  btaudio-io ` + use + ` --dbus-path /org/bluez/hci0/dev_00_11_22_33_44_55/fd0 --pcm /run/btaudio/a2dp
  btaudio-io ` + use + ` --bt-fd 3 --read-mtu 672 --write-mtu 895 --codec sbc --codec-config 21150235 --pcm /run/btaudio/a2dp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			t, err := f.transport(ctx, profile, log)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, log, t)
		},
	}

	cmd.Flags().StringVar(&f.dbusPath, "dbus-path", "", "BlueZ media transport object path")
	cmd.Flags().IntVar(&f.btFD, "bt-fd", -1, "inherited Bluetooth socket descriptor")
	cmd.Flags().IntVar(&f.readMTU, "read-mtu", 0, "reading MTU of --bt-fd")
	cmd.Flags().IntVar(&f.writeMTU, "write-mtu", 0, "writing MTU of --bt-fd")
	cmd.Flags().StringVar(&f.codec, "codec", "sbc", "codec of --bt-fd: sbc or aac")
	cmd.Flags().StringVar(&f.codecConfig, "codec-config", "", "hex encoded A2DP codec configuration of --bt-fd")
	cmd.Flags().StringVar(&f.pcmPath, "pcm", "", "PCM FIFO path")
	cmd.MarkFlagRequired("pcm")
	cmd.MarkFlagsMutuallyExclusive("dbus-path", "bt-fd")
	cmd.MarkFlagsOneRequired("dbus-path", "bt-fd")

	return cmd
}

// transport builds the transport the flags describe.
func (f *a2dpFlags) transport(ctx context.Context, profile transport.Profile, log *logrus.Logger) (*transport.Transport, error) {
	var t *transport.Transport
	var err error
	if f.dbusPath != "" {
		t, err = f.fromBlueZ(ctx, log)
	} else {
		t, err = f.fromFD(profile)
	}
	if err != nil {
		return nil, err
	}

	if t.Profile != profile {
		t.Close()
		return nil, fmt.Errorf("transport is %s, not %s", t.Profile, profile)
	}
	t.PCM = pcm.NewEndpoint(f.pcmPath)
	return t, nil
}

func (f *a2dpFlags) fromBlueZ(ctx context.Context, log *logrus.Logger) (*transport.Transport, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}

	path := dbus.ObjectPath(f.dbusPath)
	if !path.IsValid() {
		return nil, fmt.Errorf("invalid object path %q", f.dbusPath)
	}
	t, err := bluez.NewA2DPTransport(bluez.NewMediaTransport(conn, path))
	if err != nil {
		return nil, err
	}

	go func() {
		if err := bluez.Follow(ctx, conn, path, t); err != nil && ctx.Err() == nil {
			log.WithFields(logrus.Fields{
				"function": "a2dpFlags.fromBlueZ",
				"path":     path,
				"error":    err.Error(),
			}).Warn("Stopped following transport properties")
		}
	}()
	return t, nil
}

func (f *a2dpFlags) fromFD(profile transport.Profile) (*transport.Transport, error) {
	var id codec.ID
	switch strings.ToLower(f.codec) {
	case "sbc":
		id = codec.SBC
	case "aac":
		id = codec.AAC
	default:
		return nil, fmt.Errorf("unknown A2DP codec %q", f.codec)
	}

	blob, err := hex.DecodeString(f.codecConfig)
	if err != nil {
		return nil, fmt.Errorf("codec configuration: %w", err)
	}
	channels, rate, err := bluez.PCMFormat(id, blob)
	if err != nil {
		return nil, err
	}

	t, err := transport.New(profile, id)
	if err != nil {
		return nil, err
	}
	t.Config = blob
	t.Channels = channels
	t.SampleRate = rate
	t.SetLink(f.btFD, f.readMTU, f.writeMTU)
	t.SetState(transport.StateActive)
	return t, nil
}
