// Package platform implements knit's toolchain/platform probe (spec.md
// §4.G's "toolchain-version, platform — probed once per build") and the
// periodic self-update throttle spec.md §6's environment section names.
//
// Grounded on the teacher's context.go: NewContext there does a one-shot
// probe of the ambient Go build environment (GOPATH) and hands back a
// small value type other packages consume; Toolchain here does the same
// for the foreign build toolchain's version and the host platform triple.
package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Triple returns the host platform triple used throughout fingerprinting
// and remote-cache metadata, e.g. "linux-amd64" or "darwin-arm64".
func Triple() string {
	return fmt.Sprintf("%s-%s", runtime.GOOS, runtime.GOARCH)
}

// Toolchain shells out to a foreign build toolchain executable, probing its
// version and implementing manifest.ForeignToolchain so internal/manifest
// can dump a foreign package description through the same binary.
type Toolchain struct {
	// Executable is the command invoked, e.g. "swift". Defaults to "knit-toolchain"
	// if empty, the name this module's own native toolchain stub would use.
	Executable string
	// VersionArgs are the arguments passed to probe the version string.
	// Defaults to []string{"--version"}.
	VersionArgs []string
	// DumpArgs are the arguments passed to dump a package description as
	// JSON, following spec.md §6's "<toolchain> package dump-package".
	DumpArgs []string
}

func (t Toolchain) executable() string {
	if t.Executable == "" {
		return "knit-toolchain"
	}
	return t.Executable
}

func (t Toolchain) versionArgs() []string {
	if len(t.VersionArgs) == 0 {
		return []string{"--version"}
	}
	return t.VersionArgs
}

func (t Toolchain) dumpArgs() []string {
	if len(t.DumpArgs) == 0 {
		return []string{"package", "dump-package"}
	}
	return t.DumpArgs
}

// Version probes the toolchain's reported version string, trimmed of
// surrounding whitespace. Probed once per build per spec.md §4.G.
func (t Toolchain) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, t.executable(), t.versionArgs()...)
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrapf(err, "platform: probe %s version", t.executable())
	}
	return strings.TrimSpace(string(out)), nil
}

// DumpPackage implements manifest.ForeignToolchain: it shells out to
// "<executable> package dump-package" in dir and returns its raw stdout for
// internal/manifest.ParseForeign to consume.
func (t Toolchain) DumpPackage(ctx context.Context, dir string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.executable(), t.dumpArgs()...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, errors.Wrapf(err, "platform: dump package in %s", dir)
	}
	return out, nil
}

// Run invokes the toolchain executable with the given arguments in dir,
// connecting its stdout/stderr to the current process's so build output
// streams through live. Used by cmd/knit's build command, which needs an
// arbitrary subcommand (e.g. "build") rather than the fixed version/dump
// probes above.
func (t Toolchain) Run(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, t.executable(), args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "platform: run %s %s", t.executable(), strings.Join(args, " "))
	}
	return nil
}

// UpdateCheckInterval is the minimum time between self-update probes.
const UpdateCheckInterval = 24 * time.Hour

// ShouldCheckForUpdate implements spec.md §6's self-update throttle:
// disabled entirely when CI=1 or NO_UPDATE_CHECK=1 is set in the
// environment, otherwise throttled to at most once per
// UpdateCheckInterval since lastCheck (the zero Time means "never
// checked", which always triggers a check).
func ShouldCheckForUpdate(now, lastCheck time.Time) bool {
	if os.Getenv("CI") == "1" || os.Getenv("NO_UPDATE_CHECK") == "1" {
		return false
	}
	if lastCheck.IsZero() {
		return true
	}
	return now.Sub(lastCheck) >= UpdateCheckInterval
}
