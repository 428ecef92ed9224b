package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/ir"
)

// Build information, set by SetVersion from main.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion records build information for the version command.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

type versionView struct {
	Version       string `json:"version"`
	Commit        string `json:"commit"`
	Date          string `json:"date"`
	EngineVersion string `json:"engine_version"`
	WireVersion   string `json:"wire_version"`
}

func (v versionView) String() string {
	return fmt.Sprintf("punchcard %s (commit %s, built %s)\nengine %s, wire format v%s",
		v.Version, v.Commit, v.Date, v.EngineVersion, v.WireVersion)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.formatter(cmd).Success(versionView{
				Version:       version,
				Commit:        commit,
				Date:          date,
				EngineVersion: ir.EngineVersion,
				WireVersion:   ir.WireVersion,
			})
		},
	}
}
