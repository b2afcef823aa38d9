// Package store implements knit's content-addressed Global Store, per
// spec.md §4.B: idempotent storage of bytes and files keyed by their BLAKE3
// hash, and hard-link materialization into a caller's build tree.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"

	"github.com/knitpm/knit/internal/hashing"
)

// layoutVersion namespaces the on-disk store layout (root/store/v<version>/…
// per spec.md §3), so a future incompatible layout change can coexist with
// stores written by older versions instead of corrupting them.
const layoutVersion = 1

// Store is a content-addressed file store rooted at a single directory.
// Entries live at <root>/files/<prefix>/<hash>, where <prefix> is the first
// two hex characters of <hash>; filenames are unique by hash, so concurrent
// writers racing to create the same entry cannot corrupt it — at worst one
// overwrites the other with identical bytes.
type Store struct {
	root string
	lock *flock.Flock
}

// Open returns a Store rooted at dir/store/v<layoutVersion>, creating the
// directory layout if it does not already exist.
func Open(dir string) (*Store, error) {
	root := filepath.Join(dir, "store", fmt.Sprintf("v%d", layoutVersion))
	if err := os.MkdirAll(filepath.Join(root, "files"), 0o755); err != nil {
		return nil, errors.Wrapf(err, "store: create root %s", root)
	}
	return &Store{
		root: root,
		lock: flock.NewFlock(filepath.Join(root, ".store.lock")),
	}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) objectPath(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, "files", prefix, hash)
}

// Contains reports whether hash is present in the store.
func (s *Store) Contains(hash string) bool {
	_, err := os.Stat(s.objectPath(hash))
	return err == nil
}

// GetPath returns the on-disk path of hash and true if it is present in the
// store, or the zero value and false otherwise.
func (s *Store) GetPath(hash string) (string, bool) {
	if !s.Contains(hash) {
		return "", false
	}
	return s.objectPath(hash), true
}

// PackageMetadataPath returns the path at which metadata.json for the named,
// versioned package would live: root/packages/<name>@<version>/metadata.json.
func (s *Store) PackageMetadataPath(name, version string) string {
	return filepath.Join(s.root, "packages", name+"@"+version, "metadata.json")
}

// WritePackageMetadata atomically writes data as a package's metadata.json.
func (s *Store) WritePackageMetadata(name, version string, data []byte) error {
	return atomicWriteBytes(s.PackageMetadataPath(name, version), data)
}

// ReadPackageMetadata reads a package's metadata.json, if present.
func (s *Store) ReadPackageMetadata(name, version string) ([]byte, error) {
	data, err := os.ReadFile(s.PackageMetadataPath(name, version))
	if err != nil {
		return nil, errors.Wrapf(err, "store: read metadata for %s@%s", name, version)
	}
	return data, nil
}

// StoreBytes writes data under its BLAKE3 hash and returns that hash. If an
// entry already exists for the hash, StoreBytes does not rewrite it.
func (s *Store) StoreBytes(data []byte) (string, error) {
	hash := hashing.HashBytes(data)
	if s.Contains(hash) {
		return hash, nil
	}

	if err := s.lock.Lock(); err != nil {
		return "", errors.Wrap(err, "store: acquire lock")
	}
	defer s.lock.Unlock()

	// Re-check under the lock: another process may have raced us.
	if s.Contains(hash) {
		return hash, nil
	}
	if err := atomicWriteBytes(s.objectPath(hash), data); err != nil {
		return "", errors.Wrapf(err, "store: write object %s", hash)
	}
	return hash, nil
}

// StoreFile hashes the file at src and copies it into the store under that
// hash, returning the hash. If an entry already exists for the hash,
// StoreFile does not rewrite it.
func (s *Store) StoreFile(src string) (string, error) {
	hash, err := hashing.HashFile(src)
	if err != nil {
		return "", errors.Wrapf(err, "store: hash %s", src)
	}
	if s.Contains(hash) {
		return hash, nil
	}

	if err := s.lock.Lock(); err != nil {
		return "", errors.Wrap(err, "store: acquire lock")
	}
	defer s.lock.Unlock()

	if s.Contains(hash) {
		return hash, nil
	}
	if err := atomicCopyFile(src, s.objectPath(hash)); err != nil {
		return "", errors.Wrapf(err, "store: write object %s", hash)
	}
	return hash, nil
}

// LinkFile materializes the stored object for hash at dest, removing
// anything already present at dest first. It attempts a hard link, falling
// back to a full copy when the link fails (e.g. a cross-device store).
func (s *Store) LinkFile(hash, dest string) error {
	src, ok := s.GetPath(hash)
	if !ok {
		return errors.Errorf("store: no object for hash %s", hash)
	}

	if err := os.RemoveAll(dest); err != nil {
		return errors.Wrapf(err, "store: clear destination %s", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Wrapf(err, "store: create parent of %s", dest)
	}

	if err := os.Link(src, dest); err == nil {
		return nil
	}
	return copyFile(src, dest)
}
