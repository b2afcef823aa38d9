// Package errs collects the error taxonomy shared across knit's components
// that isn't already owned by a single package (the resolver owns its own
// error types in internal/resolver/errors.go) — fetch errors, cache errors,
// and the cross-cutting aggregation/cancellation shapes spec.md §7
// describes. Wrapping follows the teacher's github.com/pkg/errors idiom
// throughout (errors.Wrap/Wrapf at every call site that adds context).
package errs

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// FetchFailed reports that fetching one package's source failed for a
// reason other than a specific git/network failure below.
type FetchFailed struct {
	Package string
	Err     error
}

func (e *FetchFailed) Error() string {
	return fmt.Sprintf("fetching %q: %v", e.Package, e.Err)
}

func (e *FetchFailed) Unwrap() error { return e.Err }

// GitError wraps a failed git subprocess invocation.
type GitError struct {
	Args   []string
	Output string
	Err    error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s: %v\n%s", strings.Join(e.Args, " "), e.Err, e.Output)
}

func (e *GitError) Unwrap() error { return e.Err }

// NetworkError reports a transport-level failure that the spec allows a
// caller to retry with backoff.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Retryable reports whether err is a NetworkError or wraps one, per spec.md
// §7's "MAY be retried by the caller" allowance.
func Retryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// CacheMiss is a control-flow value, not a true error: callers that expect
// a cache entry may be absent should check for it with errors.Is rather
// than branching on a bool, so a miss can still be wrapped with Wrap for
// context when it does need to surface as a failure.
var CacheMiss = errors.New("cache miss")

// DecompressionError reports a corrupt or truncated archive in the local
// artifact cache.
type DecompressionError struct {
	Path string
	Err  error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("decompressing %s: %v", e.Path, e.Err)
}

func (e *DecompressionError) Unwrap() error { return e.Err }

// InvalidSignature reports that a remote cache artifact's signature could
// not be verified against the configured trust material.
type InvalidSignature struct {
	Path string
}

func (e *InvalidSignature) Error() string {
	return fmt.Sprintf("invalid signature for cached artifact %s", e.Path)
}

// Cancelled distinguishes an operation that was cancelled by its context
// from one that failed, per spec.md §7.
type Cancelled struct {
	Op string
}

func (e *Cancelled) Error() string { return fmt.Sprintf("%s: cancelled", e.Op) }

// Multi aggregates independent per-package failures (fetch errors across a
// parallel fan-out, in particular) without discarding any of them, per
// spec.md §7's "do not abort siblings; aggregated at the end."
type Multi struct {
	Errs []error
}

func (m *Multi) Error() string {
	if len(m.Errs) == 1 {
		return m.Errs[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d errors occurred:\n", len(m.Errs))
	for _, e := range m.Errs {
		fmt.Fprintf(&b, "  * %v\n", e)
	}
	return b.String()
}

// Add appends err to m if non-nil and returns m, so call sites can collect
// inline: `agg = errs.Add(agg, maybeFailingCall())`.
func Add(m *Multi, err error) *Multi {
	if err == nil {
		return m
	}
	if m == nil {
		m = &Multi{}
	}
	m.Errs = append(m.Errs, err)
	return m
}

// ErrorOrNil returns m as an error if it has any collected failures, or nil
// if m is nil or empty — lets a Multi built with Add flow straight into a
// function's error return.
func ErrorOrNil(m *Multi) error {
	if m == nil || len(m.Errs) == 0 {
		return nil
	}
	return m
}
