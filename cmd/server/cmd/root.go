package cmd

import (
	"os"

	"github.com/eventviewer/server/internal/config"
	"github.com/spf13/cobra"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	serve := newServeCmd(flags)

	root := &cobra.Command{
		Use:   "server",
		Short: "BINUS Event Viewer backend",
		Long: `BINUS Event Viewer backend.

Admins submit campus events, super admins approve or reject them, and
students browse what is on today, this week, and later. Every transition
notifies the people involved in real time over WebSocket.`,
		SilenceUsage: true,
		// serve is the default when no subcommand is given
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (env vars override it)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (json, console)")
	root.Flags().AddFlagSet(serve.Flags())

	root.AddCommand(
		serve,
		newMigrateCmd(flags),
		newCleanupCmd(flags),
		newVersionCmd(),
		newHealthcheckCmd(),
	)
	return root
}

// Execute runs the CLI. It is called once from main.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func (f *globalFlags) loadConfig() (config.Config, error) {
	cfg, err := config.LoadFile(f.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Logging.Format = f.logFormat
	}
	return cfg, nil
}
