package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/pcm"
	"github.com/opd-ai/btaudio/transport"
)

type scoFlags struct {
	btFD        int
	mtu         int
	codec       string
	speakerPath string
	micPath     string
}

func (f *scoFlags) register(cmd *cobra.Command, fdFlag string) {
	cmd.Flags().IntVar(&f.btFD, fdFlag, -1, "inherited SCO socket descriptor")
	cmd.Flags().IntVar(&f.mtu, "sco-mtu", 0, "SCO packet size, 0 to detect it from the first packet")
	cmd.Flags().StringVar(&f.speakerPath, "speaker", "", "speaker PCM FIFO path, sent to the device")
	cmd.Flags().StringVar(&f.micPath, "mic", "", "microphone PCM FIFO path, received from the device")
	cmd.MarkFlagRequired(fdFlag)
}

func (f *scoFlags) transport(id codec.ID) (*transport.Transport, error) {
	t, err := transport.New(transport.ProfileSCO, id)
	if err != nil {
		return nil, err
	}
	t.SetLink(f.btFD, f.mtu, f.mtu)
	t.Speaker = pcm.NewEndpoint(f.speakerPath)
	t.Mic = pcm.NewEndpoint(f.micPath)
	t.SetState(transport.StateActive)
	return t, nil
}

func newSCOCmd(g *globalFlags) *cobra.Command {
	f := &scoFlags{}

	cmd := &cobra.Command{
		Use:   "sco",
		Short: "Carry voice over an established SCO socket",
		Long: `Carry voice over an established SCO socket.

Speaker audio is read from --speaker and sent to the device, microphone
audio received from the device is written to --mic. The link is given up
while neither FIFO has a client.

Examples:
  btaudio-io sco --bt-fd 3 --codec msbc --speaker /run/btaudio/spk --mic /run/btaudio/mic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}

			var id codec.ID
			switch strings.ToLower(f.codec) {
			case "cvsd":
				id = codec.CVSD
			case "msbc":
				id = codec.MSBC
			default:
				return fmt.Errorf("unknown voice codec %q", f.codec)
			}

			t, err := f.transport(id)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()
			return serve(ctx, cfg, log, t)
		},
	}

	f.register(cmd, "bt-fd")
	cmd.Flags().StringVar(&f.codec, "codec", "cvsd", "voice codec: cvsd or msbc")

	return cmd
}
