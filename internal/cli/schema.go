package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectis-systems/fluxc/internal/compiler"
	"github.com/vectis-systems/fluxc/internal/ir"
)

// SchemaResult is the JSON/text payload for the schema command.
type SchemaResult struct {
	Hash     string   `json:"hash"`
	Services []string `json:"services"`
}

// NewSchemaCommand builds the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema <specs-dir>",
		Short: "Plan every service and print the compiled runtime's content hash",
		Long: `Compiles and plans every service under specs-dir, builds the combined
RuntimeSchema, and prints its stable content hash, useful for pinning a
downstream code generator or deployment to an exact compiled contract.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSchema(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if loadResult == nil || len(loadErrors) > 0 {
		return reportLoadError(formatter, loadErrors)
	}

	schema, err := compiler.PlanRuntime(loadResult.Services)
	if err != nil {
		_ = formatter.Error("E_PLAN", err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to plan runtime", err)
	}

	hash, err := ir.SchemaHash(schema)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash schema", err)
	}

	ids := make([]string, len(schema.Services))
	for i, sp := range schema.Services {
		ids[i] = sp.ServiceID
	}
	result := SchemaResult{Hash: hash, Services: ids}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "schema hash: %s\n", result.Hash)
	fmt.Fprintf(formatter.Writer, "services: %v\n", result.Services)
	return nil
}
