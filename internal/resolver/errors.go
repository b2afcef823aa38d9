package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/knitpm/knit/internal/semver"
)

// ResolutionSuggestion is a machine-readable hint attached to a NoSolution
// error, per spec.md §4.E/§7.
type ResolutionSuggestion string

const (
	SuggestUpgrade          ResolutionSuggestion = "Upgrade"
	SuggestDowngrade        ResolutionSuggestion = "Downgrade"
	SuggestAddOverride      ResolutionSuggestion = "AddOverride"
	SuggestRemoveConstraint ResolutionSuggestion = "RemoveConstraint"
	SuggestChangeBranch     ResolutionSuggestion = "ChangeBranch"
)

// NoMatchingVersion is returned when a package's effective range admits no
// version the provider knows about.
type NoMatchingVersion struct {
	Package     string
	Requirement string
	Available   []string
}

func (e *NoMatchingVersion) Error() string {
	return fmt.Sprintf("no version of %q matches %q (available: %s)",
		e.Package, e.Requirement, strings.Join(e.Available, ", "))
}

// ConflictingRequirement is one of the requirements that collectively made
// a package's range unsatisfiable.
type ConflictingRequirement struct {
	RequiredBy  string
	Requirement string
}

// VersionConflict is returned when two or more requirements for the same
// package have no version in common.
type VersionConflict struct {
	Package     string
	Conflicting []ConflictingRequirement
}

func (e *VersionConflict) Error() string {
	return FormatDerivation(e)
}

// PackageNotFound is returned when a name appears in a dependency graph but
// the provider has never heard of it.
type PackageNotFound struct {
	Package     string
	Suggestions []string
}

func (e *PackageNotFound) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("package %q not found", e.Package)
	}
	return fmt.Sprintf("package %q not found (did you mean: %s?)", e.Package, strings.Join(e.Suggestions, ", "))
}

// CycleDetected is returned when dependency lookup discovers a cycle in the
// Named(p)@v dependency graph.
type CycleDetected struct {
	Path []string
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("dependency cycle: %s", formatCycle(e.Path))
}

func formatCycle(path []string) string {
	return strings.Join(path, " -> ") + " -> (cycle)"
}

// NoSolution is returned by Resolve when it exceeds its step limit before
// every queued package is decided.
type NoSolution struct {
	Derivation  string
	Suggestions []ResolutionSuggestion
}

func (e *NoSolution) Error() string {
	return fmt.Sprintf("no solution found:\n%s", e.Derivation)
}

// ProviderError wraps a failure from the external PackageProvider. Version
// is set when the failure was tied to a specific candidate the solver was
// evaluating (e.g. a DependenciesOf lookup); it is the zero Version when the
// failure happened before any candidate was chosen (e.g. Versions itself
// failing).
type ProviderError struct {
	Package string
	Version semver.Version
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error for %q: %v", e.Package, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Cancelled is returned when the solver's context is cancelled mid-run.
type Cancelled struct{}

func (e *Cancelled) Error() string { return "resolution cancelled" }

// ErrNotFetched is the sentinel a PackageProvider should return from
// DependenciesOf when it has no cached answer yet for a given (name,
// version) pair because nothing has fetched and parsed that checkout's
// manifest. Resolve surfaces it wrapped in a ProviderError immediately,
// without exhausting the package's versionQueue, so a caller running an
// outer fetch-and-retry loop (as spec.md §4.E's "Transitive discovery
// loop" describes) can tell "go fetch this and try again" apart from
// "this version's dependencies are genuinely unusable."
var ErrNotFetched = errors.New("dependencies not yet known; fetch required")
