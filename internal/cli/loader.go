package cli

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/vectis-systems/fluxc/internal/compiler"
	"github.com/vectis-systems/fluxc/internal/ir"
)

// LoadMode controls how a directory's compile errors are handled.
type LoadMode int

const (
	// LoadModeFailFast reports only the first compile error.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll compiles every service, returning every error found.
	LoadModeCollectAll
)

// LoadResult is the outcome of loading a directory of resolved-service-model
// fixtures, re-exported at the cli layer so commands don't reach into
// internal/compiler directly.
type LoadResult struct {
	Services  []ir.ServiceSpec
	CUEValue  cue.Value
	FileCount int
}

// LoadSpecs loads and compiles every service in dir in both modes.
// LoadModeFailFast then returns only the first compile error found;
// LoadModeCollectAll returns every error.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	loaded, errs := compiler.LoadServiceSpecs(dir)
	if loaded == nil {
		return nil, errs
	}
	result := &LoadResult{Services: loaded.Services, CUEValue: loaded.CUEValue, FileCount: loaded.FileCount}
	if mode == LoadModeFailFast && len(errs) > 0 {
		return result, errs[:1]
	}
	return result, errs
}

// FindService looks up one loaded service by ID, returning a command error
// formatted the same way every other "not found" condition is.
func FindService(result *LoadResult, id string) (*ir.ServiceSpec, error) {
	for i := range result.Services {
		if result.Services[i].ID == id {
			return &result.Services[i], nil
		}
	}
	return nil, fmt.Errorf("service %q not found among %d loaded service(s)", id, len(result.Services))
}
