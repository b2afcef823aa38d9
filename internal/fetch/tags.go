package fetch

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/knitpm/knit/internal/semver"
)

// Tag is one remote ref returned by ListRemoteTags.
type Tag struct {
	Name     string
	Commit   string
	Version  semver.Version
	IsSemver bool
}

// ListRemoteTags runs `git ls-remote --tags --refs <url>` and parses its
// "<sha>\trefs/tags/<name>" output lines. Tags of the form "v?<semver>" are
// retained with their parsed version; the result sorts newest-version-first,
// with non-semver tags sorted lexicographically after all semver ones.
func ListRemoteTags(ctx context.Context, url string) ([]Tag, error) {
	out, err := runGit(ctx, "", "ls-remote", "--tags", "--refs", url)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch: ls-remote %s: %s", url, out)
	}

	var tags []Tag
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 2)
		if len(fields) != 2 {
			continue
		}
		commit, ref := fields[0], fields[1]
		const prefix = "refs/tags/"
		if !strings.HasPrefix(ref, prefix) {
			continue
		}
		name := strings.TrimPrefix(ref, prefix)

		tag := Tag{Name: name, Commit: commit}
		if v, ok := parseTagVersion(name); ok {
			tag.Version = v
			tag.IsSemver = true
		}
		tags = append(tags, tag)
	}

	sort.SliceStable(tags, func(i, j int) bool {
		a, b := tags[i], tags[j]
		if a.IsSemver != b.IsSemver {
			return a.IsSemver
		}
		if a.IsSemver {
			return b.Version.Less(a.Version)
		}
		return a.Name < b.Name
	})
	return tags, nil
}

func parseTagVersion(name string) (semver.Version, bool) {
	trimmed := strings.TrimPrefix(name, "v")
	v, err := semver.Parse(trimmed)
	if err != nil {
		return semver.Version{}, false
	}
	return v, true
}
