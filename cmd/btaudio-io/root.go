package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/btaudio"
	"github.com/opd-ai/btaudio/config"
	"github.com/opd-ai/btaudio/iothread"
	"github.com/opd-ai/btaudio/transport"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "btaudio-io",
		Short: "Bluetooth audio I/O engine",
		Long: `btaudio-io moves audio between Bluetooth sockets and PCM FIFOs.

Settings come from the YAML file given with --config, then from BTAUDIO_*
environment variables (a .env file in the working directory is loaded
first), then from command line flags.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level: trace, debug, info, warn or error")

	root.AddCommand(newA2DPCmd(g, transport.ProfileA2DPSink))
	root.AddCommand(newA2DPCmd(g, transport.ProfileA2DPSource))
	root.AddCommand(newSCOCmd(g))
	root.AddCommand(newHFPCmd(g))

	return root
}

// load builds the effective configuration and sets up logging.
func (g *globalFlags) load() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}

	log := logrus.StandardLogger()
	log.SetLevel(cfg.Level())
	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// serve runs the transports until one of the loops exits or ctx is done;
// the others are stopped then. The remote device or the PCM client going
// away is a normal end.
func serve(ctx context.Context, cfg config.Config, log *logrus.Logger, ts ...*transport.Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	engine := btaudio.NewEngine(cfg, log)
	defer engine.Close()
	engine.OnExit(func(uuid.UUID, error) { cancel() })

	var threads []*iothread.Thread
	for i, t := range ts {
		th, err := engine.Start(t)
		if err != nil {
			for _, rest := range ts[i:] {
				rest.Close()
			}
			return err
		}
		threads = append(threads, th)
	}

	<-ctx.Done()
	engine.Close()

	var failure error
	for _, th := range threads {
		err := th.Wait()
		switch {
		case err == nil,
			errors.Is(err, context.Canceled),
			errors.Is(err, iothread.ErrLinkClosed),
			errors.Is(err, iothread.ErrPCMClosed):
		default:
			if failure == nil {
				failure = fmt.Errorf("%s: %w", th.Transport().Profile, err)
			}
		}
	}
	return failure
}
