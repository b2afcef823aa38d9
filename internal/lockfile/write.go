// Copyright 2017 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package lockfile

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Write serializes l and atomically replaces the file at path (temp file in
// the same directory, then rename), per spec.md §4.F's "writes are atomic".
//
// Adapted from the teacher's renameWithFallback (fs.go) by way of
// internal/store/atomic.go's already-generalized copy.
func Write(path string, l *Lockfile) error {
	data, err := Marshal(l)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".lockfile-*.tmp")
	if err != nil {
		return errors.Wrapf(err, "lockfile: create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "lockfile: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "lockfile: close temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrapf(err, "lockfile: rename into place at %s", path)
	}
	return nil
}

// WriteAsync runs Write off the critical path ("writes are ... asynchronous
// (off the critical path)", spec.md §4.F), reporting the result on the
// returned channel once.
func WriteAsync(path string, l *Lockfile) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- Write(path, l)
	}()
	return done
}
