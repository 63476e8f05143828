package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vectis-systems/fluxc/internal/compiler"
	"github.com/vectis-systems/fluxc/internal/harness"
	"github.com/vectis-systems/fluxc/internal/registry"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run the scenario conformance harness",
		Long: `Walks scenarios-dir for YAML scenario fixtures, drives each one's
compiled service through internal/harness's virtual-clock Driver, and
reports pass/fail per scenario's assertions. Each scenario names its own
spec_dir, resolved relative to the scenario file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	if len(files) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Scenarios: []ScenarioResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	reg := registry.New()
	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}

	for _, f := range files {
		sr := runScenarioFile(f, reg, cmd, opts.Format != "json")
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func runScenarioFile(path string, reg *registry.Registry, cmd *cobra.Command, printText bool) ScenarioResult {
	w := cmd.OutOrStdout()

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		if printText {
			fmt.Fprintf(w, "x %s\n  load error: %v\n", filepath.Base(path), err)
		}
		return ScenarioResult{Name: filepath.Base(path), Errors: []string{err.Error()}}
	}

	specDir := filepath.Join(filepath.Dir(path), scenario.SpecDir)
	loaded, loadErrs := compiler.LoadServiceSpecs(specDir)
	if len(loadErrs) > 0 {
		errs := make([]string, len(loadErrs))
		for i, e := range loadErrs {
			errs[i] = e.Error()
		}
		if printText {
			fmt.Fprintf(w, "x %s\n  spec load error: %v\n", scenario.Name, loadErrs[0])
		}
		return ScenarioResult{Name: scenario.Name, Errors: errs}
	}

	svcSpec, err := FindService(&LoadResult{Services: loaded.Services}, scenario.ServiceID)
	if err != nil {
		if printText {
			fmt.Fprintf(w, "x %s\n  %v\n", scenario.Name, err)
		}
		return ScenarioResult{Name: scenario.Name, Errors: []string{err.Error()}}
	}

	plan, err := compiler.Plan(*svcSpec)
	if err != nil {
		if printText {
			fmt.Fprintf(w, "x %s\n  plan error: %v\n", scenario.Name, err)
		}
		return ScenarioResult{Name: scenario.Name, Errors: []string{err.Error()}}
	}

	d := harness.NewDriver(plan, *svcSpec, reg.StepFuncs(scenario.ServiceID), reg.InitFuncs(scenario.ServiceID))
	outputs, err := d.Run(context.Background(), scenario)
	if err != nil {
		if printText {
			fmt.Fprintf(w, "x %s\n  run error: %v\n", scenario.Name, err)
		}
		return ScenarioResult{Name: scenario.Name, Errors: []string{err.Error()}}
	}

	result := harness.NewResult(scenario, outputs)
	if result.Pass() {
		if printText {
			fmt.Fprintf(w, "ok %s\n", scenario.Name)
		}
		return ScenarioResult{Name: scenario.Name, Pass: true}
	}

	if printText {
		fmt.Fprintf(w, "x %s\n", scenario.Name)
		for _, e := range result.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	return ScenarioResult{Name: scenario.Name, Errors: result.Errors}
}

func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	var cliErr *CLIError
	if result.Failed > 0 {
		status = "error"
		cliErr = &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
	}
	response := CLIResponse{Status: status, Data: result, Error: cliErr}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w)
	fmt.Fprintf(w, "test summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}
