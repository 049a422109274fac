package main

import (
	"github.com/spf13/cobra"

	"github.com/opd-ai/btaudio/codec"
	"github.com/opd-ai/btaudio/transport"
)

func newHFPCmd(g *globalFlags) *cobra.Command {
	f := &scoFlags{}
	var rfcommFD int

	cmd := &cobra.Command{
		Use:   "hfp",
		Short: "Serve a hands-free connection: AT commands and voice",
		Long: `Serve a hands-free connection: AT commands and voice.

The RFCOMM channel negotiates features, gains and, when enabled in the
configuration, the mSBC wideband codec. The voice loop on the SCO socket
follows the codec the headset selected.

Examples:
  btaudio-io hfp --rfcomm-fd 3 --sco-fd 4 --speaker /run/btaudio/spk --mic /run/btaudio/mic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}

			sco, err := f.transport(codec.CVSD)
			if err != nil {
				return err
			}
			rfcomm, err := transport.New(transport.ProfileRFCOMM, codec.CVSD)
			if err != nil {
				sco.Close()
				return err
			}
			rfcomm.SetLink(rfcommFD, 0, 0)
			rfcomm.SCO = sco
			rfcomm.SetState(transport.StateActive)

			ctx, stop := signalContext(cmd)
			defer stop()
			return serve(ctx, cfg, log, rfcomm, sco)
		},
	}

	cmd.Flags().IntVar(&rfcommFD, "rfcomm-fd", -1, "inherited RFCOMM socket descriptor")
	cmd.MarkFlagRequired("rfcomm-fd")
	f.register(cmd, "sco-fd")

	return cmd
}
