// Package diag implements knit's process-wide diagnostics formatter
// (spec.md §9's "error-formatting subsystem is process-wide … initialized
// once at startup; reinitialization is idempotent"): turning the typed
// errors internal/resolver, internal/install, internal/cache, and
// internal/manifest return into actionable, human-readable text.
//
// Grounded on the teacher's own preference for typed errors carrying
// structured fields, rendered on demand rather than pre-built into
// strings (internal/resolver/errors.go and trace.go are this repo's own
// version of that pattern) — diag is the single place that knows how to
// render every one of those types for a human reading CLI output, so
// internal/resolver and friends don't each need their own presentation
// logic layered on top of Error().
package diag

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knitpm/knit/internal/cache"
	"github.com/knitpm/knit/internal/install"
	"github.com/knitpm/knit/internal/manifest"
	"github.com/knitpm/knit/internal/resolver"
)

// Options configures Init.
type Options struct {
	// Verbose includes the full derivation trace for resolution failures
	// instead of just the top-level summary.
	Verbose bool
}

var (
	mu       sync.Mutex
	opts     Options
	initOnce sync.Once
)

// Init configures the process-wide formatter. Idempotent: only the first
// call takes effect, matching spec.md §9's reinitialization contract.
func Init(o Options) {
	initOnce.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		opts = o
	})
}

func verbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return opts.Verbose
}

// Format renders err as a complete, actionable diagnostic, per spec.md
// §7's error taxonomy. Unrecognized error types fall back to err.Error().
func Format(err error) string {
	if err == nil {
		return ""
	}

	switch e := err.(type) {
	case *resolver.NoMatchingVersion:
		return fmt.Sprintf("no version of %q satisfies the requested range %q\n  available: %s",
			e.Package, e.Requirement, strings.Join(e.Available, ", "))

	case *resolver.VersionConflict:
		if verbose() {
			return "version conflict:\n" + resolver.FormatDerivation(e)
		}
		return fmt.Sprintf("version conflict on %q (pass --verbose for the full derivation)", e.Package)

	case *resolver.PackageNotFound:
		if len(e.Suggestions) == 0 {
			return fmt.Sprintf("package %q not found", e.Package)
		}
		return fmt.Sprintf("package %q not found\n  did you mean: %s?", e.Package, strings.Join(e.Suggestions, ", "))

	case *resolver.CycleDetected:
		return "dependency cycle detected:\n  " + strings.Join(e.Path, " -> ") + " -> (cycle)"

	case *resolver.NoSolution:
		out := "no solution found:\n" + e.Derivation
		if len(e.Suggestions) > 0 {
			names := make([]string, len(e.Suggestions))
			for i, s := range e.Suggestions {
				names[i] = string(s)
			}
			out += "\n  suggestions: " + strings.Join(names, ", ")
		}
		return out

	case *resolver.ProviderError:
		return fmt.Sprintf("could not resolve %q: %v", e.Package, e.Err)

	case *resolver.Cancelled:
		return "resolution cancelled"

	case *cache.CacheMiss:
		return fmt.Sprintf("cache miss for %s", e.Fingerprint)

	case *install.FrozenWithoutLockfile:
		return e.Error() + "\n  run without --frozen to generate one"

	case *install.MaxIterationsExceeded:
		return fmt.Sprintf("resolution did not converge after %d iterations: %v", e.Iterations, e.Last)
	}

	if err == manifest.ErrManifestNotFound {
		return "no knit.toml found (and no foreign toolchain recognized this directory)"
	}

	return err.Error()
}
