package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// GitCheckoutDir returns the path a package's git checkout lives at:
// root/git/<sanitized-name>/, per spec.md §3's Store layout. Unlike the
// file blobs under files/<prefix>/<hash>, a checkout is keyed by package
// name rather than content hash — the directory's bytes change in place
// across re-fetches of the same dependency, which the Fetcher already
// handles by clearing the destination before cloning.
func (s *Store) GitCheckoutDir(name string) string {
	return filepath.Join(s.root, "git", sanitizeName(name))
}

// sanitizeName maps a package name to a single path segment safe to use as
// a directory name, replacing path separators a pathological name might
// contain.
func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", "..", "-")
	return r.Replace(name)
}

// LinkCheckout materializes the Store's checkout directory for name at
// dest as a symlink, per spec.md §4.F's materialization step. Any existing
// entry at dest is removed first.
func (s *Store) LinkCheckout(name, dest string) error {
	src := s.GitCheckoutDir(name)
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "store: no checkout for %s", name)
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, "store: clear destination %s", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "store: create parent of %s", dest)
	}
	return os.Symlink(src, dest)
}

// LinkPath symlinks a user-provided path-source dependency directly at
// dest, bypassing the Store entirely: path sources are not owned by the
// Store and are never locked (spec.md §4.F).
func LinkPath(path, dest string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrapf(err, "store: resolve path source %s", path)
	}
	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, "store: clear destination %s", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "store: create parent of %s", dest)
	}
	return os.Symlink(abs, dest)
}
