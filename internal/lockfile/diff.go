package lockfile

import "sort"

// Diff is the set of differences between two lockfiles, keyed by package
// name, per spec.md §3/§4.F: `LockfileDiff{added, removed, updated,
// unchanged}`.
//
// Adapted from the teacher's DiffLocks (gps/verify/lockdiff.go): same
// merge-join over two name-sorted slices, simplified from dep's
// add/remove/modify-with-per-field-StringDiff shape down to this system's
// flatter added/removed/updated/unchanged partition (spec.md doesn't call
// for per-field diffs, only package-level categorization).
type Diff struct {
	Added     []LockedPackage
	Removed   []LockedPackage
	Updated   []LockedPackage
	Unchanged []LockedPackage
}

// IsEmpty reports whether the diff has no added, removed, or updated
// packages. An empty diff means the lockfile is not worth rewriting.
func (d Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Updated) == 0
}

// DiffAgainst computes the diff from old to new. A nil old lockfile is
// treated as empty, so every package in new is Added.
func DiffAgainst(old, new *Lockfile) Diff {
	var oldPkgs, newPkgs []LockedPackage
	if old != nil {
		oldPkgs = append(oldPkgs, old.Packages...)
	}
	if new != nil {
		newPkgs = append(newPkgs, new.Packages...)
	}
	sort.Slice(oldPkgs, func(i, j int) bool { return oldPkgs[i].Name < oldPkgs[j].Name })
	sort.Slice(newPkgs, func(i, j int) bool { return newPkgs[i].Name < newPkgs[j].Name })

	var d Diff
	i, j := 0, 0
	for i < len(oldPkgs) && j < len(newPkgs) {
		o, n := oldPkgs[i], newPkgs[j]
		switch {
		case o.Name < n.Name:
			d.Removed = append(d.Removed, o)
			i++
		case o.Name > n.Name:
			d.Added = append(d.Added, n)
			j++
		default:
			if packagesEqual(o, n) {
				d.Unchanged = append(d.Unchanged, n)
			} else {
				d.Updated = append(d.Updated, n)
			}
			i++
			j++
		}
	}
	for ; i < len(oldPkgs); i++ {
		d.Removed = append(d.Removed, oldPkgs[i])
	}
	for ; j < len(newPkgs); j++ {
		d.Added = append(d.Added, newPkgs[j])
	}
	return d
}
