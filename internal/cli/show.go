package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/gateway"
)

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <seed|address>",
		Short: "Show a record and the actions available from its state",
		Example: `  punchcard show 59222433202251
  punchcard show --format json 59222433202251`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			d, err := rootOpts.deriver()
			if err != nil {
				return err
			}
			tgt, err := gateway.ResolveTarget(args[0], d)
			if err != nil {
				return f.LedgerError(err)
			}

			s, err := rootOpts.openSession(cmd.Context(), readOnly)
			if err != nil {
				return err
			}
			defer s.close()

			rv, err := s.gw.Fetch(cmd.Context(), args[0])
			if err != nil {
				return f.LedgerError(err)
			}
			return f.Success(newRecordView(rv, tgt.Seed))
		},
	}
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every record with its state and last shift",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			s, err := rootOpts.openSession(cmd.Context(), readOnly)
			if err != nil {
				return err
			}
			defer s.close()

			views, err := s.gw.List(cmd.Context())
			if err != nil {
				return f.LedgerError(err)
			}
			return f.Success(newListView(views))
		},
	}
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <seed|address>",
		Short: "Show the confirmations applied to a record, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if opts.Limit < 0 {
				return NewExitError(ExitCommandError, "--limit must not be negative")
			}
			s, err := opts.openSession(cmd.Context(), readOnly)
			if err != nil {
				return err
			}
			defer s.close()

			entries, err := s.gw.History(cmd.Context(), args[0], opts.Limit)
			if err != nil {
				return f.LedgerError(err)
			}
			tgt, err := gateway.ResolveTarget(args[0], s.gw.Deriver())
			if err != nil {
				return f.LedgerError(err)
			}
			return f.Success(historyView{Address: tgt.Address.String(), Entries: entries})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many entries (0 = all)")

	return cmd
}
