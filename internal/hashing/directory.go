package hashing

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// Filter decides which directory entries hash_directory visits and which it
// includes in the final digest. SkipDir, when non-nil, prunes an entire
// subdirectory (by base name) from the walk — the directory is never
// descended into, so filtered-out trees cannot affect the result even via a
// symlink inside them. Include, when non-nil, decides whether a given
// regular file contributes to the digest; it receives the path relative to
// the root being hashed, always using "/" separators.
type Filter struct {
	SkipDir func(name string) bool
	Include func(relPath string, info os.FileInfo) bool
}

// SourceFiles is the filter used for fingerprinting a package's compiled
// sources: files ending in go, c, cpp, h, hpp, or s, skipping dotfiles and
// the lockfile backup name. It generalizes the teacher's own Swift-era
// extension list (swift|h|c|cpp|m|mm) to this ecosystem's compiled-language
// surface.
var SourceFiles = Filter{
	Include: func(relPath string, info os.FileInfo) bool {
		base := filepath.Base(relPath)
		if strings.HasPrefix(base, ".") {
			return false
		}
		if base == "lockfile.lock.bak" {
			return false
		}
		switch filepath.Ext(base) {
		case ".go", ".c", ".cpp", ".h", ".hpp", ".s":
			return true
		default:
			return false
		}
	},
}

// ArbitraryTree is the filter used to hash an entire fetched tree verbatim
// (e.g. a git checkout or a path dependency), skipping version-control
// metadata directories — the teacher's own skip list from
// DigestFromDirectory and HashFromNode.
var ArbitraryTree = Filter{
	SkipDir: func(name string) bool {
		switch name {
		case ".git", "vendor", ".bzr", ".hg", ".svn":
			return true
		default:
			return false
		}
	},
	Include: func(relPath string, info os.FileInfo) bool {
		return true
	},
}

// HashDirectory returns a digest of root's contents matching filter: every
// qualifying regular file is hashed in parallel, then the results are
// combined by feeding sorted "<relative-path>:<file-hash>\n" entries into
// one final BLAKE3 digest. Path separators are normalized to "/" so the
// result is stable across platforms.
func HashDirectory(root string, filter Filter) (string, error) {
	paths, err := collectPaths(root, filter)
	if err != nil {
		return "", err
	}

	hashes, err := hashFilesParallel(root, paths)
	if err != nil {
		return "", err
	}

	sort.Strings(paths)
	h := newHasher()
	for _, p := range paths {
		h.Write([]byte(p))
		h.Write([]byte(":"))
		h.Write([]byte(hashes[p]))
		h.Write([]byte("\n"))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func collectPaths(root string, filter Filter) ([]string, error) {
	var paths []string
	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}
			name := de.Name()
			if de.IsDir() {
				if filter.SkipDir != nil && filter.SkipDir(name) {
					return filepath.SkipDir
				}
				return nil
			}
			if !de.IsRegular() {
				return nil
			}
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return errors.Wrapf(err, "hashing: relativize %s", osPathname)
			}
			rel = filepath.ToSlash(rel)
			if filter.Include != nil {
				info, err := os.Lstat(osPathname)
				if err != nil {
					return errors.Wrapf(err, "hashing: stat %s", osPathname)
				}
				if !filter.Include(rel, info) {
					return nil
				}
			}
			paths = append(paths, rel)
			return nil
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "hashing: walk %s", root)
	}
	return paths, nil
}

// hashFilesParallel hashes each path (relative to root) using a pool of
// workers sized to GOMAXPROCS, mirroring the teacher's preference for a
// fixed, hardware-sized worker count over an unbounded goroutine-per-file
// fan-out.
func hashFilesParallel(root string, paths []string) (map[string]string, error) {
	results := make(map[string]string, len(paths))
	var mu sync.Mutex
	var firstErr error

	jobs := make(chan string)
	var wg sync.WaitGroup

	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) && len(paths) > 0 {
		workers = len(paths)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rel := range jobs {
				sum, err := HashFile(filepath.Join(root, filepath.FromSlash(rel)))
				mu.Lock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
				} else {
					results[rel] = sum
				}
				mu.Unlock()
			}
		}()
	}

	for _, p := range paths {
		jobs <- p
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
