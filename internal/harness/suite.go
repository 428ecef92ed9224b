package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

// SuiteResult summarizes a batch of scenario files.
type SuiteResult struct {
	Total    int              `json:"total"`
	Passed   int              `json:"passed"`
	Failed   int              `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure describes one scenario that did not pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// ExpandPaths turns directories into the *.yaml and *.yml files they
// contain (non-recursive) and returns files unchanged, sorted.
func ExpandPaths(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scenario path: %w", err)
		}
		if !info.IsDir() {
			out = append(out, p)
			continue
		}
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// RunFiles loads and runs each scenario file. A file that fails to load or
// set up counts as a failure; it does not stop the batch.
func RunFiles(ctx context.Context, paths []string) (*SuiteResult, error) {
	files, err := ExpandPaths(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files found")
	}

	res := &SuiteResult{Total: len(files)}
	for _, path := range files {
		scenario, err := LoadScenario(path)
		if err != nil {
			res.fail(ScenarioFailure{Path: path, Errors: []string{err.Error()}})
			continue
		}
		r, err := Run(ctx, scenario)
		if err != nil {
			res.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: []string{err.Error()}})
			continue
		}
		if !r.Pass {
			res.fail(ScenarioFailure{Path: path, Name: scenario.Name, Errors: r.Errors})
			continue
		}
		res.Passed++
	}
	return res, nil
}

func (r *SuiteResult) fail(f ScenarioFailure) {
	r.Failed++
	r.Failures = append(r.Failures, f)
}
