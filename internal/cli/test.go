package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/punchcard/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario.yaml|dir>...",
		Short: "Run conformance scenarios",
		Long: `Run conformance scenarios against a private in-memory executor.

Each scenario initializes records, submits transitions (optionally in
parallel), and checks outcomes, the final records and their journals.
Directories are expanded to the *.yaml and *.yml files they contain.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  punchcard test ./scenarios
  punchcard test ./scenarios --filter "concurrent_*"
  punchcard test ./scenarios/round_trip.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	files, err := harness.ExpandPaths(paths)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "filter", err)
	}

	f := opts.formatter(cmd)
	if len(files) == 0 {
		return f.Success(suiteView{SuiteResult: &harness.SuiteResult{}})
	}

	res, err := harness.RunFiles(cmd.Context(), files)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenarios", err)
	}
	if err := f.Success(suiteView{SuiteResult: res}); err != nil {
		return err
	}
	if res.Failed > 0 {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total), Reported: true}
	}
	return nil
}

// filterScenarios keeps files whose base name, without extension, matches
// pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var out []string
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			out = append(out, file)
		}
	}
	return out, nil
}

// suiteView renders a SuiteResult.
type suiteView struct {
	*harness.SuiteResult
}

func (v suiteView) String() string {
	if v.Total == 0 {
		return "No scenarios found."
	}
	var b strings.Builder
	for _, fail := range v.Failures {
		name := fail.Name
		if name == "" {
			name = filepath.Base(fail.Path)
		}
		fmt.Fprintf(&b, "FAIL %s\n", name)
		for _, e := range fail.Errors {
			fmt.Fprintf(&b, "  %s\n", strings.ReplaceAll(strings.TrimRight(e, "\n"), "\n", "\n  "))
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed, %d total", v.Passed, v.Failed, v.Total)
	return b.String()
}
