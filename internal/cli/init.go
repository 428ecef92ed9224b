package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/ir"
	"github.com/roach88/punchcard/internal/timeclock"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <seed>",
		Short: "Create the record for a seed",
		Long: `Create the employee record at the address derived from seed.

A new record starts off-shift with every timestamp unset. Initializing a
seed twice fails with ADDRESS_ALREADY_IN_USE.

Exit codes:
  0 - Record created
  1 - Rejected by the ledger
  2 - Invalid input or configuration
  3 - Outcome unknown; run 'punchcard show <seed>' before retrying

Example:
  punchcard init 59222433202251`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			seed, err := ir.ParseSeed(args[0])
			if err != nil {
				return f.LedgerError(err)
			}

			s, err := rootOpts.openSession(cmd.Context(), needKeypair)
			if err != nil {
				return err
			}
			defer s.close()

			out, err := s.gw.Initialize(cmd.Context(), args[0])
			if err != nil {
				return f.LedgerError(err)
			}
			f.VerboseLog("initialized %s", describeTarget(&seed, out.Address))

			view := newRecordView(ir.RecordView{Address: out.Address, Record: timeclock.NewRecord()}, &seed)
			view.Token = out.Token
			return f.Success(view)
		},
	}
}
