// Package cmd implements the deskagent command line.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/martinemde/deskagent/config"
	"github.com/martinemde/deskagent/observability"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithApp(wireApp())
}

func newRootCmdWithApp(a *app) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "deskagent",
		Short:         "Run an LLM agent that works on your desktop through shell and file tools",
		Long:          "deskagent drives a language model through a bounded tool loop: it runs commands, reads and writes files, and navigates directories until the task is complete.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default $DESKAGENT_CONFIG or ~/.deskagent/config.toml)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during a run")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(a, opts),
		newToolsCmd(a, opts),
		newMCPCmd(a, opts),
		newProvidersCmd(a, opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.configPath)
}

// logger writes to the command's stderr. Flags override the [log] table.
func (o *globalOptions) logger(cmd *cobra.Command, cfg *config.Config) *observability.Logger {
	level, format := cfg.Log.Level, cfg.Log.Format
	if o.logLevel != "" {
		level = o.logLevel
	}
	if o.logFormat != "" {
		format = o.logFormat
	}
	return observability.NewLogger(observability.LogConfig{
		Level:  level,
		Format: format,
		Output: cmd.ErrOrStderr(),
	})
}
