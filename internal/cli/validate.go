package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectis-systems/fluxc/internal/ir"
)

// ValidationResult is the JSON payload for a validate run.
type ValidationResult struct {
	Valid  bool                 `json:"valid"`
	Errors []ir.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand builds the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate resolved-service-model fixtures without planning",
		Long: `Compiles every service in specs-dir and runs its field-level Validate()
without building a runtime plan. Faster than "plan" for development feedback,
and catches fixture-shape errors that planning would also reject.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return reportLoadError(formatter, loadErrors)
	}
	formatter.VerboseLog("loaded %d CUE file(s) from %s", loadResult.FileCount, specsDir)

	var validationErrs []ir.ValidationError
	for _, err := range loadErrors {
		validationErrs = append(validationErrs, ir.ValidationError{Field: "load", Message: err.Error()})
	}
	for _, svc := range loadResult.Services {
		formatter.VerboseLog("validating service: %s", svc.ID)
		validationErrs = append(validationErrs, svc.Validate()...)
	}

	if len(validationErrs) > 0 {
		return outputValidationErrors(formatter, validationErrs)
	}
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "all services valid")
	return nil
}

func reportLoadError(formatter *OutputFormatter, loadErrors []error) error {
	if len(loadErrors) == 0 {
		return NewExitError(ExitCommandError, "no services loaded")
	}
	_ = formatter.Error("E_LOAD", loadErrors[0].Error(), nil)
	return WrapExitError(ExitCommandError, "failed to load specs", loadErrors[0])
}

func outputValidationErrors(formatter *OutputFormatter, errs []ir.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.Success(ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}
	fmt.Fprintln(formatter.Writer, "validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", e.Field, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
