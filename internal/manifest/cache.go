package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/knitpm/knit/internal/hashing"
)

var foreignBucket = []byte("foreign-manifests")

// ForeignCache memoizes the parse of a foreign toolchain's dump-package
// output, keyed by BLAKE3(content).hex, so re-running FindManifest against
// an unchanged foreign manifest skips both the subprocess call's JSON
// unmarshal and the field-mapping work in ParseForeign.
//
// Adapted from the teacher's boltCache (internal/gps/source_cache_bolt.go):
// same single-file BoltDB, same one-bucket-per-concern layout, generalized
// from version/revision caching down to this system's narrower need of
// caching one decoded Manifest per content hash.
type ForeignCache struct {
	db *bolt.DB
}

// OpenForeignCache opens (creating if necessary) a BoltDB file at path.
func OpenForeignCache(path string) (*ForeignCache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "manifest: create cache directory for %s", path)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "manifest: open foreign-manifest cache %s", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(foreignBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "manifest: initialize foreign-manifest cache bucket")
	}
	return &ForeignCache{db: db}, nil
}

// Close releases the underlying BoltDB file.
func (c *ForeignCache) Close() error {
	return errors.Wrap(c.db.Close(), "manifest: close foreign-manifest cache")
}

func (c *ForeignCache) get(hash string) (Manifest, bool) {
	var (
		m  Manifest
		ok bool
	)
	_ = c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(foreignBucket).Get([]byte(hash))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &m); err != nil {
			return nil
		}
		ok = true
		return nil
	})
	return m, ok
}

func (c *ForeignCache) put(hash string, m Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "manifest: encode cached foreign manifest")
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(foreignBucket).Put([]byte(hash), data)
	})
}

// parseForeignCached is ParseForeign with the BoltDB memoization layer in
// front of it: identical dump-package output, byte for byte, is parsed once.
func parseForeignCached(c *ForeignCache, data []byte) (Manifest, error) {
	hash := hashing.HashBytes(data)
	if c != nil {
		if m, ok := c.get(hash); ok {
			return m, nil
		}
	}
	m, err := ParseForeign(data)
	if err != nil {
		return Manifest{}, err
	}
	if c != nil {
		if err := c.put(hash, m); err != nil {
			return Manifest{}, err
		}
	}
	return m, nil
}
