package cmd

import (
	"fmt"
	"os"

	"github.com/Togather-Foundation/attendance/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
)

func newRootCommand() *cobra.Command {
	serve := newServeCommand()

	root := &cobra.Command{
		Use:   "attendance",
		Short: "Event attendance and certificate server",
		Long: `attendance runs the registration backend for a single event.

Participants register, have their attendance confirmed and submit an
evaluation. Participants who attended and evaluated can download a PDF
certificate, which is also emailed to them.`,
		SilenceUsage: true,
		// Run the serve command by default if no subcommand is specified
		RunE: serve.RunE,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (environment variables still override it)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error) (default: info)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (json, console) (default: json)")

	root.AddCommand(serve)
	root.AddCommand(newMigrateCommand())
	root.AddCommand(newVersionCommand())
	root.AddCommand(newHealthcheckCommand())
	return root
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config when given, otherwise the environment, then
// applies the logging flags.
func loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return config.Config{}, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	return cfg, nil
}
