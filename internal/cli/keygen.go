package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/wallet"
)

// KeygenOptions holds flags for the keygen command.
type KeygenOptions struct {
	*RootOptions
	Out   string
	Force bool
}

type keygenView struct {
	Path    string `json:"path"`
	Address string `json:"address"`
}

func (v keygenView) String() string {
	return fmt.Sprintf("Wrote keypair %s\nAddress: %s", v.Path, v.Address)
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeygenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a signing keypair",
		Long: `Create an ed25519 signing keypair in Solana CLI format.

Writes to --out, or to the configured keypair path. An existing file is
never replaced unless --force is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeygen(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "keypair file to write (default: configured keypair)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite an existing keypair")

	return cmd
}

func runKeygen(opts *KeygenOptions, cmd *cobra.Command) error {
	path := opts.Out
	if path == "" {
		path = opts.Config.Keypair
	}
	if _, err := os.Stat(path); err == nil && !opts.Force {
		return NewExitError(ExitCommandError, fmt.Sprintf("keypair %s already exists (use --force to replace it)", path))
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return WrapExitError(ExitCommandError, "keypair", err)
	}

	kp, err := wallet.Generate()
	if err != nil {
		return WrapExitError(ExitCommandError, "keygen", err)
	}
	if err := kp.SaveKeypair(path); err != nil {
		return WrapExitError(ExitCommandError, "keygen", err)
	}
	return opts.formatter(cmd).Success(keygenView{Path: path, Address: kp.Address().String()})
}
