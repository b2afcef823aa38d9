// Package semver provides knit's version and version-set algebra: the
// Version and VersionReq types from spec.md §3, and the VersionSet boolean
// algebra from spec.md §4.E.
//
// Comparison semantics are delegated to github.com/Masterminds/semver/v3,
// the same module the teacher (golang-dep) vendored for identical purposes
// in constraints.go, just at its current major version.
package semver

import (
	"encoding/json"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a parsed semantic version: (major, minor, patch, pre, build).
type Version struct {
	raw *mmsemver.Version
}

// Parse parses a version string per standard semver grammar.
func Parse(s string) (Version, error) {
	v, err := mmsemver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "invalid version %q", s)
	}
	return Version{raw: v}, nil
}

// MustParse parses s and panics on error; for use with literal constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// New constructs a Version directly from its numeric components.
func New(major, minor, patch uint64) Version {
	v := mmsemver.New(major, minor, patch, "", "")
	return Version{raw: v}
}

func (v Version) String() string {
	if v.raw == nil {
		return "0.0.0"
	}
	return v.raw.String()
}

// Major, Minor, Patch expose the numeric components.
func (v Version) Major() uint64 { return v.raw.Major() }
func (v Version) Minor() uint64 { return v.raw.Minor() }
func (v Version) Patch() uint64 { return v.raw.Patch() }
func (v Version) Prerelease() string { return v.raw.Prerelease() }

// IsZero reports whether v is the unset zero value.
func (v Version) IsZero() bool { return v.raw == nil }

// Compare returns -1, 0, or 1 as v is less than, equal to, or greater than o,
// per total semver order.
func (v Version) Compare(o Version) int {
	return v.raw.Compare(o.raw)
}

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Equal reports whether v and o denote the same version.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// MarshalJSON encodes v as its string form, so Versions round-trip cleanly
// through the BoltDB-backed foreign-manifest cache in internal/manifest.
func (v Version) MarshalJSON() ([]byte, error) {
	if v.raw == nil {
		return []byte(`""`), nil
	}
	return json.Marshal(v.raw.String())
}

// UnmarshalJSON decodes a string produced by MarshalJSON. An empty string
// decodes to the zero value, matching IsZero.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*v = Version{}
		return nil
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// VersionReq is a predicate over Versions, parsed from range syntax such as
// "^1.4", ">=1.5,<2", or "=1.5.4".
type VersionReq struct {
	raw        string
	constraint *mmsemver.Constraints
}

// ParseVersionReq parses standard range syntax into a VersionReq.
func ParseVersionReq(s string) (VersionReq, error) {
	if s == "" || s == "*" {
		return VersionReq{raw: "*"}, nil
	}
	c, err := mmsemver.NewConstraint(s)
	if err != nil {
		return VersionReq{}, errors.Wrapf(err, "invalid version requirement %q", s)
	}
	return VersionReq{raw: s, constraint: c}, nil
}

func (r VersionReq) String() string {
	if r.raw == "" {
		return "*"
	}
	return r.raw
}

// Matches reports whether v satisfies the requirement.
func (r VersionReq) Matches(v Version) bool {
	if r.constraint == nil {
		return true
	}
	return r.constraint.Check(v.raw)
}

// IsAny reports whether r is the unconstrained wildcard requirement.
func (r VersionReq) IsAny() bool {
	return r.constraint == nil
}

// Exact returns the single Version r pins to, if it was written as a literal
// "=v" requirement, along with true; otherwise returns the zero value and
// false. This is a syntactic check on the source text, not a semantic one —
// ">=1.2.3,<=1.2.3" is exact in effect but Exact won't recognize it.
func (r VersionReq) Exact() (Version, bool) {
	if r.constraint == nil {
		return Version{}, false
	}
	if len(r.raw) > 0 && r.raw[0] == '=' {
		v, err := Parse(r.raw[1:])
		if err == nil {
			return v, true
		}
	}
	return Version{}, false
}

// MarshalJSON encodes r as its source range string.
func (r VersionReq) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON decodes a string produced by MarshalJSON.
func (r *VersionReq) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVersionReq(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
