// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package store

import (
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
)

// AtomicWriteFile writes data to a temp file beside dest and renames it into
// place, so readers never observe a partially written file. Exported for
// collaborators outside the store proper (internal/cache's binary-cache
// archives) that need the same write-once, no-torn-reads guarantee without
// going through a Store's content-addressed layout.
func AtomicWriteFile(dest string, data []byte) error {
	return atomicWriteBytes(dest, data)
}

// atomicWriteBytes writes data to a temp file beside dest and renames it
// into place, so readers never observe a partially written object.
func atomicWriteBytes(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return renameWithFallback(tmpName, dest)
}

// atomicCopyFile copies src into a temp file beside dest and renames it into
// place, for the same reason atomicWriteBytes does.
func atomicCopyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	tmp.Close()
	if err := copyFile(src, tmpName); err != nil {
		os.Remove(tmpName)
		return err
	}
	return renameWithFallback(tmpName, dest)
}

// renameWithFallback attempts to rename a file, but falls back to copying in
// the event of a cross-device-link error. If the fallback copy succeeds,
// src is still removed, emulating normal rename behavior. Ported from the
// teacher's internal/fs.renameWithFallback.
func renameWithFallback(src, dest string) error {
	if _, err := os.Lstat(src); err != nil {
		return err
	}

	err := os.Rename(src, dest)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok {
		return err
	}

	var cerr error
	if terr.Err == syscall.EXDEV {
		cerr = copyFile(src, dest)
	} else if runtime.GOOS == "windows" {
		// 0x11 (ERROR_NOT_SAME_DEVICE) is windows' cross-device rename error.
		if noerr, ok := terr.Err.(syscall.Errno); ok && noerr == 0x11 {
			cerr = copyFile(src, dest)
		} else {
			return terr
		}
	} else {
		return terr
	}

	if cerr != nil {
		return errors.Wrapf(cerr, "rename fallback copy %s to %s", src, dest)
	}
	return os.RemoveAll(src)
}
