package fetch

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// fetchGit performs a shallow, depth-1 clone of task.Source.URL into
// task.Dest, checking out Tag or Branch if given (git treats both as valid
// arguments to clone -b), then records the resulting HEAD commit and a
// directory hash of the checkout excluding .git.
//
// Grounded in the teacher's vcs_repo.go gitRepo wrapper around
// github.com/Masterminds/vcs, but that library's own GitRepo.Get performs a
// full, unbounded clone; spec.md's depth-1 requirement means the clone
// invocation itself has to be built by hand rather than delegated to it.
func fetchGit(ctx context.Context, task Task) (Result, error) {
	src := task.Source

	if err := os.RemoveAll(task.Dest); err != nil {
		return Result{}, errors.Wrapf(err, "fetch: clear destination for %s", src.Name)
	}
	if err := os.MkdirAll(filepath.Dir(task.Dest), 0o755); err != nil {
		return Result{}, errors.Wrapf(err, "fetch: create parent for %s", src.Name)
	}

	args := []string{"clone", "--depth", "1"}
	switch {
	case src.Tag != "":
		args = append(args, "--branch", src.Tag)
	case src.Branch != "":
		args = append(args, "--branch", src.Branch)
	}
	args = append(args, src.URL, task.Dest)

	if out, err := runGit(ctx, "", args...); err != nil {
		return Result{}, errors.Wrapf(err, "fetch: clone %s: %s", src.Name, out)
	}

	revision, err := headCommit(ctx, task.Dest)
	if err != nil {
		return Result{}, errors.Wrapf(err, "fetch: read HEAD for %s", src.Name)
	}

	checksum, err := checksumTree(task.Dest)
	if err != nil {
		return Result{}, errors.Wrapf(err, "fetch: checksum checkout for %s", src.Name)
	}

	return Result{
		Name:     src.Name,
		Path:     task.Dest,
		Checksum: checksum,
		Revision: revision,
		Tag:      src.Tag,
	}, nil
}

func headCommit(ctx context.Context, dir string) (string, error) {
	out, err := runGit(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		return "", errors.Wrapf(err, "git rev-parse HEAD: %s", out)
	}
	return strings.TrimSpace(out), nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
