// Package lockfile implements knit's Lockfile model (spec.md §3/§6):
// a deterministic, name-sorted TOML record of resolved packages, plus the
// diff used to decide whether a new resolution is worth writing out.
package lockfile

import (
	"sort"

	"github.com/knitpm/knit/internal/manifest"
)

// SourceKind mirrors manifest.SourceKind for the subset a resolved,
// materialized package can actually have (never WorkspaceInherited — by the
// time a package is locked its source has been settled).
type SourceKind = manifest.SourceKind

// LockedPackage is one resolved, fetched package as recorded in the
// lockfile.
type LockedPackage struct {
	Name         string
	Version      string
	Source       SourceKind
	GitURL       string
	Revision     string
	Checksum     string
	Dependencies []string
}

// Lockfile is the full ordered record written to disk. Packages is kept
// sorted by Name; Dependencies within each package kept sorted, so
// serialize→parse→serialize is a fixed point (spec.md §8).
type Lockfile struct {
	Packages []LockedPackage
}

// Normalize sorts Packages by name and each package's Dependencies,
// in place, and returns the receiver for chaining.
func (l *Lockfile) Normalize() *Lockfile {
	sort.Slice(l.Packages, func(i, j int) bool { return l.Packages[i].Name < l.Packages[j].Name })
	for i := range l.Packages {
		sort.Strings(l.Packages[i].Dependencies)
	}
	return l
}

// Equivalent reports whether l and o record the same set of packages, after
// normalization — used to decide whether a freshly computed lockfile is
// worth writing over the one already on disk.
//
// Adapted from the teacher's locksAreEquivalent (lock.go): same
// sort-then-compare shape, generalized from a two-field project identity
// (ProjectRoot, Source) to this system's flat LockedPackage struct.
func Equivalent(l, o *Lockfile) bool {
	if l == nil || o == nil {
		return l == o
	}
	a := append([]LockedPackage(nil), l.Packages...)
	b := append([]LockedPackage(nil), o.Packages...)
	(&Lockfile{Packages: a}).Normalize()
	(&Lockfile{Packages: b}).Normalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !packagesEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func packagesEqual(a, b LockedPackage) bool {
	if a.Name != b.Name || a.Version != b.Version || a.Source != b.Source ||
		a.GitURL != b.GitURL || a.Revision != b.Revision || a.Checksum != b.Checksum {
		return false
	}
	if len(a.Dependencies) != len(b.Dependencies) {
		return false
	}
	for i := range a.Dependencies {
		if a.Dependencies[i] != b.Dependencies[i] {
			return false
		}
	}
	return true
}

// ByName returns the package named name, if present.
func (l *Lockfile) ByName(name string) (LockedPackage, bool) {
	for _, p := range l.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return LockedPackage{}, false
}
