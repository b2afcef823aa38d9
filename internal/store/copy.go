package store

import (
	"github.com/pkg/errors"
	shutil "github.com/termie/go-shutil"
)

// copyFile copies src to dest, preserving file mode, via go-shutil's
// CopyFile rather than a hand-rolled io.Copy loop — the same library the
// teacher vendored for its own directory-copy fallback paths.
func copyFile(src, dest string) error {
	if err := shutil.CopyFile(src, dest, false); err != nil {
		return errors.Wrapf(err, "store: copy %s to %s", src, dest)
	}
	return nil
}
