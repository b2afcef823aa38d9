// Package manifest implements knit's in-memory Manifest Model (spec.md
// §4.D): package identity, dependencies, targets, and workspace shape, read
// from native TOML or from a foreign toolchain's JSON dump.
package manifest

import (
	"github.com/knitpm/knit/internal/semver"
)

// SourceKind distinguishes a Dependency's origin. The native parser keeps
// every source field a dependency table gives and picks the kind from them
// (path over git over version); it sets WorkspaceInherited when none of
// version, git or path is present.
type SourceKind int

const (
	SourceRegistry SourceKind = iota
	SourceGit
	SourcePath
	SourceWorkspaceInherited
)

func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourceGit:
		return "git"
	case SourcePath:
		return "path"
	case SourceWorkspaceInherited:
		return "workspace"
	default:
		return "unknown"
	}
}

// MarshalText lets SourceKind round-trip through TOML/JSON as a plain word
// instead of an integer tag.
func (k SourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText is MarshalText's inverse.
func (k *SourceKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "registry":
		*k = SourceRegistry
	case "git":
		*k = SourceGit
	case "path":
		*k = SourcePath
	case "workspace":
		*k = SourceWorkspaceInherited
	default:
		*k = SourceRegistry
	}
	return nil
}

// Dependency is a named requirement with one of four source kinds.
type Dependency struct {
	Name string

	Kind SourceKind

	// Registry source.
	Requirement semver.VersionReq

	// Git source.
	GitURL   string
	Branch   string
	Tag      string
	Revision string

	// Path source.
	Path string

	Features []string
	Optional bool
}

// TargetKind enumerates the kinds of build products a Target may describe.
type TargetKind int

const (
	TargetExecutable TargetKind = iota
	TargetLibrary
	TargetTest
	TargetPlugin
	TargetSystemLibrary
	TargetBinary
)

// Target is one buildable unit within a package.
type Target struct {
	Name       string
	Kind       TargetKind
	SourcePath string
	Deps       []string
	Resources  []string
}

// Manifest is the in-memory shape of a parsed package description.
type Manifest struct {
	Name            string
	Version         semver.Version
	MinToolsVersion string
	Dependencies    map[string]Dependency
	DevDependencies map[string]Dependency
	Targets         []Target
	Workspace       *Workspace
	Overrides       map[string]string
	Constraints     map[string]string
}

// Workspace is the root manifest's optional workspace block: a set of
// member glob patterns, exclusions, and dependencies/package fields shared
// by every member that does not override them.
type Workspace struct {
	Members            []string
	Exclude            []string
	SharedDependencies map[string]Dependency
	DefaultVersion     semver.Version
}

// Member is one loaded workspace member, after dependency inheritance from
// the root Workspace has been applied.
type Member struct {
	Path     string
	Name     string
	Manifest Manifest
	// CrossMemberDeps names sibling members this member depends on, so the
	// workspace loader can order member builds topologically.
	CrossMemberDeps []string
}

// SourceKindOfManifest distinguishes where a Manifest's content came from.
type SourceKindOfManifest int

const (
	Native SourceKindOfManifest = iota
	Foreign
)
