// Package cli implements the livedesk command line.
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tOgg1/livedesk/internal/config"
	"github.com/tOgg1/livedesk/internal/logging"
)

type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string

	cfg        *config.Config
	configUsed string
}

// Execute runs the root command. An interrupt cancels a running replay.
func Execute(version string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCmd(version).ExecuteContext(ctx)
}

func newRootCmd(version string) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "livedesk",
		Short:         "Support chat session engine",
		Long:          "livedesk drives support chat sessions: typing presence, notifications, connection status, composition modes, reply threading and search.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default: livedesk.yaml in XDG config, ~/.config/livedesk, or .)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "override logging.format (console, json)")

	cmd.AddCommand(
		newReplayCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	loader := config.NewLoader()
	if o.configFile != "" {
		loader.SetConfigFile(o.configFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.configUsed = loader.ConfigFileUsed()

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Output:       os.Stderr,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	logging.Logger.Debug().Str("command", cmd.Name()).Str("config", o.configUsed).Msg("config loaded")
	return nil
}
