package fetch

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// fetchPath atomically replaces any existing symlink at task.Dest with a
// directory symlink pointing at task.Source.URL, and returns the directory
// hash of the source tree as the checksum.
func fetchPath(task Task) (Result, error) {
	src := task.Source

	if err := os.RemoveAll(task.Dest); err != nil {
		return Result{}, errors.Wrapf(err, "fetch: clear destination for %s", src.Name)
	}
	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return Result{}, errors.Wrapf(err, "fetch: create parent for %s", src.Name)
	}
	if err := os.Symlink(src.URL, task.Dest); err != nil {
		return Result{}, errors.Wrapf(err, "fetch: symlink %s to %s", task.Dest, src.URL)
	}

	checksum, err := checksumTree(src.URL)
	if err != nil {
		return Result{}, errors.Wrapf(err, "fetch: checksum source tree for %s", src.Name)
	}

	return Result{
		Name:     src.Name,
		Path:     task.Dest,
		Checksum: checksum,
	}, nil
}
