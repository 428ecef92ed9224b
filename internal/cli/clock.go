package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/gateway"
	"github.com/roach88/punchcard/internal/ir"
)

// NewClockCommand creates the clock command and one subcommand per
// transition.
func NewClockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Move a record through the working day",
		Long: `Move a record through the working day.

Each subcommand submits one signed transition for the record named by a
seed or a base58 address:

  in         off-shift -> on-shift
  out        on-shift  -> off-shift
  break-in   on-shift  -> on-break
  break-out  on-break  -> on-shift
  lunch-in   on-shift  -> on-lunch
  lunch-out  on-lunch  -> on-shift

Submissions are never retried. Exit code 3 means the outcome is unknown:
check with 'punchcard show' before trying again.`,
	}

	for _, t := range ir.Transitions {
		cmd.AddCommand(newTransitionCommand(rootOpts, t))
	}
	return cmd
}

func newTransitionCommand(rootOpts *RootOptions, t ir.Transition) *cobra.Command {
	name := actionNames[t]
	return &cobra.Command{
		Use:     name + " <seed|address>",
		Short:   fmt.Sprintf("Submit %s", t),
		Example: fmt.Sprintf("  punchcard clock %s 59222433202251", name),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(rootOpts, cmd, args[0], t)
		},
	}
}

func runTransition(opts *RootOptions, cmd *cobra.Command, target string, t ir.Transition) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	d, err := opts.deriver()
	if err != nil {
		return err
	}
	tgt, err := gateway.ResolveTarget(target, d)
	if err != nil {
		return f.LedgerError(err)
	}

	s, err := opts.openSession(ctx, needKeypair)
	if err != nil {
		return err
	}
	defer s.close()

	out, err := s.gw.Transition(ctx, target, t)
	if err != nil {
		return f.LedgerError(err)
	}
	f.VerboseLog("%s applied to %s", t, describeTarget(tgt.Seed, out.Address))

	// The confirmation stands on its own; a failed re-read only loses the
	// record details.
	rv, err := s.gw.Fetch(ctx, out.Address.String())
	if err != nil {
		opts.Logger.Warn("re-read after transition failed", "address", out.Address, "error", err)
		return f.Success(transitionView{Token: out.Token, Address: out.Address.String(), Transition: t.String()})
	}
	view := newRecordView(rv, tgt.Seed)
	view.Token = out.Token
	return f.Success(view)
}

// transitionView is printed when the record cannot be re-read.
type transitionView struct {
	Token      string `json:"token"`
	Address    string `json:"address"`
	Transition string `json:"transition"`
}

func (v transitionView) String() string {
	return fmt.Sprintf("%s applied to %s\nconfirmed: %s", v.Transition, v.Address, v.Token)
}
