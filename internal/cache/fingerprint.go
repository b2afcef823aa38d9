// Package cache implements knit's build-artifact cache, per spec.md §4.G: a
// BuildFingerprint derived from a target's sources, manifest, and
// dependency set, plus a local tar+zstd archive store and an optional
// remote HTTP cache keyed by that fingerprint.
package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/knitpm/knit/internal/hashing"
)

// Configuration mirrors spec.md §3's BuildFingerprint.configuration enum.
type Configuration string

const (
	Debug   Configuration = "debug"
	Release Configuration = "release"
)

// BuildFingerprint is a pure function of its own fields, per spec.md §3's
// invariant: recomputing Fingerprint from the same inputs always yields the
// same digest, and two targets with identical inputs share a cache entry.
type BuildFingerprint struct {
	SourceHash       string
	ManifestHash     string
	DepsHash         string
	ToolchainVersion string
	Platform         string
	Configuration    Configuration
	Flags            []string
	Fingerprint      string
}

// ComputeFingerprint combines its inputs exactly as spec.md §3 and the
// gust-build/gust-binary-cache BuildFingerprint::compute grounding do: a
// single BLAKE3 digest over the plain concatenation of every field, flags
// included in order, with no separators between them. Two builds that
// differ only in one flag's value, or the order of an otherwise-identical
// flag set, intentionally fingerprint differently.
func ComputeFingerprint(sourceHash, manifestHash, depsHash, toolchainVersion, platform string, config Configuration, flags []string) BuildFingerprint {
	var buf bytes.Buffer
	buf.WriteString(sourceHash)
	buf.WriteString(manifestHash)
	buf.WriteString(depsHash)
	buf.WriteString(toolchainVersion)
	buf.WriteString(platform)
	buf.WriteString(string(config))
	for _, flag := range flags {
		buf.WriteString(flag)
	}

	return BuildFingerprint{
		SourceHash:       sourceHash,
		ManifestHash:     manifestHash,
		DepsHash:         depsHash,
		ToolchainVersion: toolchainVersion,
		Platform:         platform,
		Configuration:    config,
		Flags:            flags,
		Fingerprint:      hashing.HashBytes(buf.Bytes()),
	}
}

// candidateSourceDirs lists the directories HashTargetSources tries in
// order, per spec.md §4.G's "first existing of Sources/<target>,
// Source/<target>, src/<target>, <target>, else Sources/".
func candidateSourceDirs(projectDir, target string) []string {
	return []string{
		filepath.Join(projectDir, "Sources", target),
		filepath.Join(projectDir, "Source", target),
		filepath.Join(projectDir, "src", target),
		filepath.Join(projectDir, target),
	}
}

// HashTargetSources hashes a target's source tree: the first of the
// candidate directories that exists, falling back to hashing
// <projectDir>/Sources wholesale if none of the per-target candidates do.
func HashTargetSources(projectDir, target string) (string, error) {
	for _, dir := range candidateSourceDirs(projectDir, target) {
		if isDir(dir) {
			return hashing.HashDirectory(dir, hashing.SourceFiles)
		}
	}
	fallback := filepath.Join(projectDir, "Sources")
	return hashing.HashDirectory(fallback, hashing.SourceFiles)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// HashManifestFile hashes the manifest file at path, or returns the empty
// string if path is empty — the "else empty" leg of spec.md §4.G's
// manifest-hash rule, for when neither a native nor a foreign manifest file
// is available to hash (e.g. a foreign manifest dumped by subprocess with
// no on-disk representation of its own).
func HashManifestFile(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", errors.Wrapf(err, "cache: read manifest %s", path)
	}
	return hashing.HashBytes(data), nil
}

// HashLockfileOrNames implements spec.md §4.G's deps-hash rule: hash of the
// lockfile if present, otherwise a hash of a stable debug-print of the
// sorted dependency names.
func HashLockfileOrNames(lockfilePath string, dependencyNames []string) (string, error) {
	if lockfilePath != "" {
		data, err := os.ReadFile(lockfilePath)
		if err == nil {
			return hashing.HashBytes(data), nil
		}
		if !os.IsNotExist(err) {
			return "", errors.Wrapf(err, "cache: read lockfile %s", lockfilePath)
		}
	}

	sorted := append([]string{}, dependencyNames...)
	sort.Strings(sorted)
	return hashing.HashBytes([]byte(fmt.Sprintf("%#v", sorted))), nil
}
