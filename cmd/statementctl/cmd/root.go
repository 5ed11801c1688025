// Package cmd holds the statementctl commands. They run the statement
// parser and the matching engine offline, without the database or Kafka.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Execute builds the command tree and runs it
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}

// NewRootCmd creates the statementctl root command with its subcommands.
// Each call gets its own viper instance.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "statementctl",
		Short: "Inspect bank statements and invoice matches offline",
		Long: `statementctl parses CSV and MT940 bank statements and scores the
parsed transactions against an invoice export, using the same parser and
matching rubric as the reconciliation service.

Examples:
  statementctl parse --file statement.csv
  statementctl parse --file statement.sta --format MT940 --output json
  statementctl match --file statement.csv --invoices invoices.csv
  statementctl version`,
		Version:       getVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(newParseCmd(v))
	rootCmd.AddCommand(newMatchCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// initConfig reads the optional config file and STATEMENTCTL_* variables
func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("STATEMENTCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "statementctl %s\n", getVersionString())
		},
	}
}

// newLogger logs to stderr so stdout carries only command output
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
