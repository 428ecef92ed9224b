package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/config"
)

// RootOptions holds global flags for all commands and the configuration
// they resolve to.
type RootOptions struct {
	ConfigPath string
	DB         string
	Endpoint   string
	Keypair    string
	Verbose    bool
	Format     string // "json" | "text"

	// Getenv reads the environment. Tests replace it; nil means os.Getenv.
	Getenv func(string) string

	// Config and Logger are set by the root command before any subcommand
	// runs.
	Config config.Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the punchcard CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "punchcard",
		Short: "punchcard - signed employee time clock",
		Long: `A time clock ledger. Each employee record lives at an address derived from
a numeric seed and moves between off-shift, on-shift, on-break and on-lunch
through signed instructions applied by a single authoritative executor.

Commands run against a local database (--db) or a running "punchcard serve"
(--endpoint).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.resolve(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "CUE config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database for local mode")
	cmd.PersistentFlags().StringVar(&opts.Endpoint, "endpoint", "", "URL of a punchcard server; overrides --db")
	cmd.PersistentFlags().StringVar(&opts.Keypair, "keypair", "", "Solana CLI keypair file used to sign")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewDeriveCommand(opts))
	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewClockCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))

	return cmd
}

// resolve builds the configuration with precedence
// defaults < config file < environment < flags, and the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	getenv := o.Getenv
	if getenv == nil {
		if err := config.LoadDotenv(""); err != nil {
			return WrapExitError(ExitCommandError, "environment", err)
		}
		getenv = os.Getenv
	}

	cfg, err := config.Load(o.ConfigPath, getenv)
	if err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DB = o.DB
	}
	if flags.Changed("endpoint") {
		cfg.Endpoint = o.Endpoint
	}
	if flags.Changed("keypair") {
		cfg.Keypair = o.Keypair
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "configuration", err)
	}
	o.Config = cfg

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	o.Logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

// formatter returns an OutputFormatter bound to cmd's writers.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
