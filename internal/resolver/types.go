// Package resolver implements knit's Resolver (spec.md §4.E): a
// backtracking version solver over a virtual package set, with overrides,
// constraints, lockfile hints, and a priority policy that resolves the
// most-constrained packages first.
package resolver

import (
	"github.com/knitpm/knit/internal/semver"
)

// Root is the sentinel package name the virtual package set always
// contains, per spec.md §4.E's `P = {Root} ∪ {Named(name) : ...}`.
const Root = "@root"

// Strategy picks among otherwise-equally-valid candidate versions.
type Strategy int

const (
	// Highest picks the maximum version satisfying a package's range.
	Highest Strategy = iota
	// Lowest picks the minimum version satisfying a package's range.
	Lowest
	// Locked behaves like Highest whenever no hint applies.
	Locked
)

// ChoiceReason tags why a particular version was selected for a package,
// for the resolution trace (spec.md §4.E / §3's ResolutionTrace).
type ChoiceReason string

const (
	ReasonRoot              ChoiceReason = "Root"
	ReasonOverride          ChoiceReason = "Override"
	ReasonLockedHint        ChoiceReason = "LockedHint"
	ReasonHighestCompatible ChoiceReason = "HighestCompatible"
	ReasonLowestCompatible  ChoiceReason = "LowestCompatible"
)

// Decision is one resolved package@version, with the reason it was chosen.
type Decision struct {
	Name    string
	Version semver.Version
	Reason  ChoiceReason
}

// Resolution is the solver's successful output: one Decision per resolved
// package (Root excluded), plus the order in which choices were made (the
// ResolutionTrace).
type Resolution struct {
	Decisions map[string]Decision
	Trace     []Decision
}

// PackageProvider is the external collaborator spec.md §4.E calls out:
// pure with respect to (name, version), results are cached inside the
// resolver for the run.
type PackageProvider interface {
	// Versions lists every version known to exist for name. An empty,
	// nil-error result means the package is genuinely unknown.
	Versions(name string) ([]semver.Version, error)
	// DependenciesOf returns name@version's direct dependencies as a map
	// from dependency name to version requirement.
	DependenciesOf(name string, version semver.Version) (map[string]semver.VersionReq, error)
}

// RootInput is the root manifest's contribution to the solve: its direct
// dependencies, plus the overrides/constraints/hints spec.md §4.E
// describes.
type RootInput struct {
	// Dependencies are Root's own direct requirements.
	Dependencies map[string]semver.VersionReq
	// Overrides force a version range regardless of any other constraint;
	// the effective range for an overridden package IS the override,
	// replacing rather than intersecting with incoming requirements.
	Overrides map[string]semver.VersionReq
	// Constraints are intersected with every incoming range for the named
	// package before propagation, in addition to dependency-derived ranges.
	Constraints map[string]semver.VersionReq
	// Hints are preferred versions, typically sourced from a prior
	// lockfile; honored only when still within the candidate set.
	Hints map[string]semver.Version

	Strategy Strategy
}
