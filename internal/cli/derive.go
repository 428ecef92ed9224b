package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/ir"
)

type deriveView struct {
	Seed      string `json:"seed"`
	Address   string `json:"address"`
	Bump      uint8  `json:"bump"`
	ProgramID string `json:"program_id"`
}

func (v deriveView) String() string {
	return v.Address
}

// NewDeriveCommand creates the derive command.
func NewDeriveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "derive <seed>",
		Short: "Print the record address for a seed",
		Long: `Print the record address for a seed under the configured program id.

The seed is a signed 128-bit decimal integer. Derivation is local and
touches neither the database nor the network.

Example:
  punchcard derive 59222433202251
  punchcard derive -- -17`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			seed, err := ir.ParseSeed(args[0])
			if err != nil {
				return f.LedgerError(err)
			}
			d, err := rootOpts.deriver()
			if err != nil {
				return err
			}
			addr, bump, err := d.DeriveWithBump(seed)
			if err != nil {
				return f.LedgerError(ir.WrapError(ir.CodeMalformedSeed, "seed has no viable address", err))
			}
			rootOpts.Logger.Debug("derived", "seed", seed.String(), "bump", bump)
			return f.Success(deriveView{
				Seed:      seed.String(),
				Address:   addr.String(),
				Bump:      bump,
				ProgramID: rootOpts.Config.ProgramID,
			})
		},
	}
}

func describeTarget(seed *ir.Seed, addr ir.Address) string {
	if seed == nil {
		return addr.String()
	}
	return fmt.Sprintf("%s (seed %s)", addr, seed)
}
