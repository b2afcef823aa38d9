// Package fetch implements knit's bounded-concurrency dependency acquisition
// (spec.md §4.C): cloning git sources, symlinking path sources, and a typed
// stub for the not-yet-implemented registry source kind.
package fetch

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"golang.org/x/sync/semaphore"

	"github.com/knitpm/knit/internal/hashing"
)

// SourceKind identifies where a Source's contents come from.
type SourceKind int

const (
	SourceGit SourceKind = iota
	SourcePath
	SourceRegistry
)

// Source describes where to fetch one dependency from.
type Source struct {
	Kind SourceKind
	// Name is the dependency's name, echoed back in progress callbacks and
	// FetchResult.
	Name string
	// URL is the git remote for SourceGit, or the filesystem path for
	// SourcePath and SourceRegistry.
	URL string
	// Branch and Tag are mutually exclusive refinements for SourceGit; if
	// both are empty, the remote's default branch is cloned.
	Branch string
	Tag    string
}

// Task pairs a Source with the local destination it should be materialized
// at.
type Task struct {
	Source Source
	Dest   string
}

// ProgressState describes a fetch task's lifecycle.
type ProgressState int

const (
	Started ProgressState = iota
	CompletedState
	FailedState
)

// ProgressFunc receives lifecycle notifications for each task's dependency
// name. message is only meaningful for FailedState.
type ProgressFunc func(name string, state ProgressState, message string)

// Result is the outcome of fetching one Task.
type Result struct {
	Name     string
	Path     string
	Checksum string
	Revision string
	Tag      string
}

// NotImplementedError is returned for source kinds spec.md §4.C reserves but
// does not yet implement, so callers can branch on it instead of treating it
// as a generic failure.
type NotImplementedError struct {
	Kind string
}

func (e *NotImplementedError) Error() string {
	return e.Kind + " fetching not implemented"
}

// DefaultConcurrency is the fallback fetch concurrency: detected hardware
// parallelism, floored at 8, per spec.md §4.C.
func DefaultConcurrency() int {
	n := runtime.GOMAXPROCS(0)
	if n < 8 {
		return 8
	}
	return n
}

// Fetcher runs Tasks with a bounded number simultaneously in flight.
type Fetcher struct {
	sem *semaphore.Weighted
}

// NewFetcher returns a Fetcher that allows at most concurrency tasks to run
// at once. concurrency <= 0 selects DefaultConcurrency.
func NewFetcher(concurrency int) *Fetcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency()
	}
	return &Fetcher{sem: semaphore.NewWeighted(int64(concurrency))}
}

// FetchAll runs every task, gated by the Fetcher's concurrency limit, and
// returns one Result per task in input order. A failing task does not abort
// its peers: its slot in the returned error slice is set instead, and the
// progress callback (if non-nil) receives a FailedState notification.
//
// ctx governs the whole batch; each task's own subprocess work runs under a
// context composed — via constext.Cons — of ctx and a fresh per-task
// context, so cancelling ctx propagates promptly into in-flight git/copy
// operations without requiring every task to share a single context value.
func (f *Fetcher) FetchAll(ctx context.Context, tasks []Task, progress ProgressFunc) ([]Result, []error) {
	results := make([]Result, len(tasks))
	errs := make([]error, len(tasks))

	// progress is invoked from every task's own goroutine; spec.md §5
	// requires callers be able to treat it as single-threaded, so every
	// invocation is serialized through this mutex.
	var progressMu sync.Mutex
	notify := func(name string, state ProgressState, message string) {
		if progress == nil {
			return
		}
		progressMu.Lock()
		defer progressMu.Unlock()
		progress(name, state, message)
	}

	var wg sync.WaitGroup
	for i, task := range tasks {
		i, task := i, task
		if err := f.sem.Acquire(ctx, 1); err != nil {
			errs[i] = err
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer f.sem.Release(1)

			taskCtx, cancel := constext.Cons(ctx, context.Background())
			defer cancel()

			notify(task.Source.Name, Started, "")
			res, err := fetchOne(taskCtx, task)
			if err != nil {
				errs[i] = err
				notify(task.Source.Name, FailedState, err.Error())
				return
			}
			results[i] = res
			notify(task.Source.Name, CompletedState, "")
		}()
	}
	wg.Wait()
	return results, errs
}

func fetchOne(ctx context.Context, task Task) (Result, error) {
	switch task.Source.Kind {
	case SourceGit:
		return fetchGit(ctx, task)
	case SourcePath:
		return fetchPath(task)
	case SourceRegistry:
		return Result{}, &NotImplementedError{Kind: "registry"}
	default:
		return Result{}, errors.Errorf("fetch: unknown source kind %d for %s", task.Source.Kind, task.Source.Name)
	}
}

func checksumTree(dir string) (string, error) {
	return hashing.HashDirectory(dir, hashing.ArbitraryTree)
}
