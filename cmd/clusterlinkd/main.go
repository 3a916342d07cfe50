package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"clusterlink/cmd/clusterlinkd/ui"
	"clusterlink/config"
	"clusterlink/daemon"
	"clusterlink/internal/buildinfo"
	"clusterlink/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	if err := logging.Configure(logging.LevelInfo, logging.FormatText); err != nil {
		_, _ = os.Stderr.WriteString("configure logger: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := rootCmd().Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

// globals are the persistent flags shared by every command.
type globals struct {
	configPath string
	debug      bool
	noColor    bool
}

func (g *globals) load() (*config.Config, error) {
	return config.Load(g.configPath)
}

func rootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:           "clusterlinkd",
		Short:         "Keep cloud clusters in sync with local output devices",
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui.ConfigureColor(g.noColor)
			level := logging.LevelInfo
			if g.debug {
				level = logging.LevelDebug
			}
			return logging.Configure(level, logging.FormatText)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []daemon.Option
			if g.debug {
				opts = append(opts, daemon.WithDebugLogging())
			}
			return daemon.Run(ctx, g.configPath, opts...)
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", config.Path(), "Config file path")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable coloured output")

	cmd.AddCommand(clustersCmd(g))
	cmd.AddCommand(machineCmd(g))
	cmd.AddCommand(configCmd(g))
	return cmd
}
