package cache

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/knitpm/knit/internal/store"
)

// CacheMiss is returned by any lookup (local or remote) that finds nothing
// for a fingerprint.
type CacheMiss struct {
	Fingerprint string
}

func (e *CacheMiss) Error() string {
	return "cache miss for " + e.Fingerprint
}

// Stats summarizes the local cache's contents, per spec.md §4.G's `stats`.
type Stats struct {
	Count     int
	TotalSize int64
}

// SizeHuman renders TotalSize as a human-scaled string (B/KB/MB/GB),
// matching the teacher corpus's preference for reporting byte counts in
// CLI-facing summaries rather than raw integers.
func (s Stats) SizeHuman() string {
	size := float64(s.TotalSize)
	switch {
	case size < 1024:
		return fmt.Sprintf("%d B", s.TotalSize)
	case size < 1024*1024:
		return fmt.Sprintf("%.1f KB", size/1024)
	case size < 1024*1024*1024:
		return fmt.Sprintf("%.1f MB", size/1024/1024)
	default:
		return fmt.Sprintf("%.2f GB", size/1024/1024/1024)
	}
}

// Local is the artifact cache rooted at <root>/binary-cache per spec.md
// §4.G's layout. Archives are tar streams compressed with zstd, written
// once per fingerprint via an atomic rename so readers never observe a
// partially written entry.
type Local struct {
	dir string
}

// OpenLocal creates (if absent) and returns the local cache rooted at
// filepath.Join(root, "binary-cache").
func OpenLocal(root string) (*Local, error) {
	dir := filepath.Join(root, "binary-cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cache: create %s", dir)
	}
	return &Local{dir: dir}, nil
}

func (l *Local) archivePath(fingerprint string) string {
	return filepath.Join(l.dir, fingerprint+".tar.zst")
}

// Contains reports whether fingerprint has a cached archive.
func (l *Local) Contains(fingerprint string) bool {
	_, err := os.Stat(l.archivePath(fingerprint))
	return err == nil
}

// Get returns the path to fingerprint's archive, if present.
func (l *Local) Get(fingerprint string) (string, bool) {
	path := l.archivePath(fingerprint)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// Restore decompresses and unpacks fingerprint's cached archive into dest.
func (l *Local) Restore(fingerprint, dest string) error {
	path, ok := l.Get(fingerprint)
	if !ok {
		return &CacheMiss{Fingerprint: fingerprint}
	}
	compressed, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "cache: read %s", path)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return errors.Wrapf(err, "cache: create %s", dest)
	}
	return untarZstd(compressed, dest)
}

// Store packs src into a tar+zstd archive and writes it under fingerprint.
// A no-op if an archive for fingerprint already exists — the cache is
// write-once per fingerprint.
func (l *Local) Store(fingerprint, src string) error {
	if l.Contains(fingerprint) {
		return nil
	}
	compressed, err := tarZstd(src)
	if err != nil {
		return err
	}
	return store.AtomicWriteFile(l.archivePath(fingerprint), compressed)
}

// Stats reports the number and total size of cached archives.
func (l *Local) Stats() (Stats, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Stats{}, nil
		}
		return Stats{}, errors.Wrapf(err, "cache: read %s", l.dir)
	}

	var stats Stats
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zst") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return Stats{}, errors.Wrapf(err, "cache: stat %s", e.Name())
		}
		stats.Count++
		stats.TotalSize += info.Size()
	}
	return stats, nil
}

// Clear removes every cached archive and returns how many were removed.
func (l *Local) Clear() (int, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "cache: read %s", l.dir)
	}

	cleared := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".zst") {
			continue
		}
		if err := os.Remove(filepath.Join(l.dir, e.Name())); err != nil {
			return cleared, errors.Wrapf(err, "cache: remove %s", e.Name())
		}
		cleared++
	}
	return cleared, nil
}

// tarZstd walks src and produces a zstd-compressed tar stream rooted at
// "." inside the archive, per spec.md §6's "path \".\" as prefix" and
// "entries use forward slashes" requirements. Compression uses zstd's
// fastest level: decompression on restore dominates, so write speed is
// what matters here, matching the gust-binary-cache grounding's "level 1,
// ARM decompresses quickly regardless" rationale generalized to any
// platform.
func tarZstd(src string) ([]byte, error) {
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	if err := addDirToTar(tw, src, "."); err != nil {
		tw.Close()
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, errors.Wrap(err, "cache: finalize tar archive")
	}

	var zBuf bytes.Buffer
	enc, err := zstd.NewWriter(&zBuf, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Wrap(err, "cache: open zstd encoder")
	}
	if _, err := enc.Write(tarBuf.Bytes()); err != nil {
		enc.Close()
		return nil, errors.Wrap(err, "cache: compress archive")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "cache: finalize zstd stream")
	}
	return zBuf.Bytes(), nil
}

// untarZstd accepts any zstd compression level, per spec.md §4.G's
// "decompression must accept any level" — the decoder has no notion of the
// level its input was encoded at.
func untarZstd(compressed []byte, dest string) error {
	dec, err := zstd.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return errors.Wrap(err, "cache: open zstd decoder")
	}
	defer dec.Close()

	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "cache: read tar entry")
		}

		target := filepath.Join(dest, filepath.FromSlash(hdr.Name))
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return errors.Wrapf(err, "cache: create %s", target)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "cache: create %s", filepath.Dir(target))
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return errors.Wrapf(err, "cache: create %s", target)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return errors.Wrapf(err, "cache: write %s", target)
			}
			if err := f.Close(); err != nil {
				return errors.Wrapf(err, "cache: close %s", target)
			}
		}
	}
}

func addDirToTar(tw *tar.Writer, root, prefix string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			name = prefix + "/" + filepath.ToSlash(rel)
		}

		if info.IsDir() {
			if rel == "." {
				return nil
			}
			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = name + "/"
			return tw.WriteHeader(hdr)
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
}
