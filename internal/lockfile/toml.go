package lockfile

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// rawLockfile is the TOML-tagged shape of what's actually written to disk:
// `packages = [ { name, version, source, git, revision, checksum,
// dependencies }, ... ]`, per spec.md §6.
type rawLockfile struct {
	Packages []rawLockedPackage `toml:"packages"`
}

type rawLockedPackage struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version,omitempty"`
	Source       string   `toml:"source"`
	GitURL       string   `toml:"git,omitempty"`
	Revision     string   `toml:"revision,omitempty"`
	Checksum     string   `toml:"checksum,omitempty"`
	Dependencies []string `toml:"dependencies"`
}

// Marshal renders l as TOML, with packages sorted by name and each
// package's dependency list sorted, so identical resolved input produces
// byte-identical output (spec.md §3).
func Marshal(l *Lockfile) ([]byte, error) {
	cp := &Lockfile{Packages: append([]LockedPackage(nil), l.Packages...)}
	cp.Normalize()

	raw := rawLockfile{Packages: make([]rawLockedPackage, len(cp.Packages))}
	for i, p := range cp.Packages {
		deps := p.Dependencies
		if deps == nil {
			deps = []string{}
		}
		raw.Packages[i] = rawLockedPackage{
			Name:         p.Name,
			Version:      p.Version,
			Source:       p.Source.String(),
			GitURL:       p.GitURL,
			Revision:     p.Revision,
			Checksum:     p.Checksum,
			Dependencies: deps,
		}
	}

	data, err := toml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "lockfile: marshal TOML")
	}
	return data, nil
}

// Unmarshal parses TOML produced by Marshal (or hand-written in the same
// shape) into a Lockfile.
func Unmarshal(data []byte) (*Lockfile, error) {
	var raw rawLockfile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "lockfile: parse TOML")
	}

	l := &Lockfile{Packages: make([]LockedPackage, len(raw.Packages))}
	for i, p := range raw.Packages {
		var kind SourceKind
		if err := kind.UnmarshalText([]byte(p.Source)); err != nil {
			return nil, errors.Wrapf(err, "lockfile: package %s", p.Name)
		}
		l.Packages[i] = LockedPackage{
			Name:         p.Name,
			Version:      p.Version,
			Source:       kind,
			GitURL:       p.GitURL,
			Revision:     p.Revision,
			Checksum:     p.Checksum,
			Dependencies: p.Dependencies,
		}
	}
	return l.Normalize(), nil
}

// Load reads and parses a lockfile at path. A missing file is not an error:
// it returns (nil, nil), matching the "lockfile, if present" language
// spec.md §4.F uses throughout.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "lockfile: read %s", path)
	}
	return Unmarshal(data)
}
