package manifest

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// NativeManifestFilename is the file FindManifest looks for before falling
// back to a foreign toolchain.
const NativeManifestFilename = "knit.toml"

// ForeignToolchain is the external collaborator spec.md §4.D calls out: a
// toolchain capable of dumping its own package description as JSON. A real
// implementation (internal/platform.Toolchain) shells out to
// `<toolchain> package dump-package`; tests can supply a stub.
type ForeignToolchain interface {
	DumpPackage(ctx context.Context, dir string) ([]byte, error)
}

// ErrManifestNotFound is returned by FindManifest when dir has neither a
// native manifest nor anything a foreign toolchain recognizes.
var ErrManifestNotFound = errors.New("manifest: not found")

// FindManifest implements spec.md §4.D's `find_manifest(dir)` contract: a
// native knit.toml wins if present; otherwise the foreign toolchain is
// asked to dump the package, and its JSON is parsed and memoized in cache
// (which may be nil to disable memoization, e.g. in tests).
func FindManifest(ctx context.Context, dir string, toolchain ForeignToolchain, cache *ForeignCache) (Manifest, SourceKindOfManifest, error) {
	nativePath := filepath.Join(dir, NativeManifestFilename)
	data, err := os.ReadFile(nativePath)
	if err == nil {
		m, err := ParseNative(data)
		if err != nil {
			return Manifest{}, Native, errors.Wrapf(err, "manifest: %s", nativePath)
		}
		return m, Native, nil
	}
	if !os.IsNotExist(err) {
		return Manifest{}, Native, errors.Wrapf(err, "manifest: read %s", nativePath)
	}

	if toolchain == nil {
		return Manifest{}, Native, errors.Wrapf(ErrManifestNotFound, "%s", dir)
	}

	dump, err := toolchain.DumpPackage(ctx, dir)
	if err != nil {
		return Manifest{}, Foreign, errors.Wrapf(err, "manifest: dump-package in %s", dir)
	}

	m, err := parseForeignCached(cache, dump)
	if err != nil {
		return Manifest{}, Foreign, err
	}
	return m, Foreign, nil
}
