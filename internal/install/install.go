// Package install implements knit's Installer (spec.md §4.F): the
// orchestrator that turns a manifest into fetched, materialized sources and
// an up-to-date lockfile by driving the Resolver and Fetcher through
// spec.md §4.E's transitive discovery loop.
package install

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	kerrs "github.com/knitpm/knit/internal/errs"
	"github.com/knitpm/knit/internal/fetch"
	"github.com/knitpm/knit/internal/klog"
	"github.com/knitpm/knit/internal/lockfile"
	"github.com/knitpm/knit/internal/manifest"
	"github.com/knitpm/knit/internal/resolver"
	"github.com/knitpm/knit/internal/semver"
	"github.com/knitpm/knit/internal/store"
)

// Posture selects how the Installer treats an existing lockfile, per
// spec.md §4.F.
type Posture int

const (
	// Normal: an existing lockfile becomes hints for a fresh solve.
	Normal Posture = iota
	// Frozen: an existing lockfile becomes the Resolution directly, with no
	// solver run at all; its absence is an error.
	Frozen
)

// Phase is one step of the Installer's observable pipeline: Read manifest →
// Decide lockfile posture → Resolve (iterative) → Fetch → Materialize →
// Write lockfile diff.
type Phase int

const (
	PhaseReadManifest Phase = iota
	PhaseDecidePosture
	PhaseResolve
	PhaseFetch
	PhaseMaterialize
	PhaseWriteLockfile
)

func (p Phase) String() string {
	switch p {
	case PhaseReadManifest:
		return "read-manifest"
	case PhaseDecidePosture:
		return "decide-posture"
	case PhaseResolve:
		return "resolve"
	case PhaseFetch:
		return "fetch"
	case PhaseMaterialize:
		return "materialize"
	case PhaseWriteLockfile:
		return "write-lockfile"
	default:
		return "unknown"
	}
}

// ProgressFunc receives a notification at the start of each phase.
type ProgressFunc func(phase Phase, message string)

// maxIterations bounds the resolve→fetch→discover loop (spec.md §4.E's
// "Transitive discovery loop"); exceeding it surfaces the partial
// resolution rather than spinning forever against a malformed graph.
const maxIterations = 20

// lockfileName is the file FindManifest's native-manifest sibling: knit.lock
// next to knit.toml at the project root.
const lockfileName = "knit.lock"

// Options configures an Installer run.
type Options struct {
	// ProjectDir holds the root manifest, knit.lock, and .build/.
	ProjectDir string
	// StoreRoot is the Global Store's root directory (spec.md §4.B),
	// typically shared across projects rather than nested under ProjectDir.
	StoreRoot string

	Toolchain     manifest.ForeignToolchain
	ManifestCache *manifest.ForeignCache

	Concurrency int
	Strategy    resolver.Strategy
	Posture     Posture
	Progress    ProgressFunc
}

// FrozenWithoutLockfile is returned when Posture is Frozen but no lockfile
// is present to freeze against.
type FrozenWithoutLockfile struct{}

func (e *FrozenWithoutLockfile) Error() string {
	return "install: frozen install requested but no lockfile is present"
}

// MaxIterationsExceeded is returned when the transitive discovery loop
// fails to converge within maxIterations rounds. Resolution holds the
// partial resolution from the last round.
type MaxIterationsExceeded struct {
	Iterations int
	Last       error
	Resolution *resolver.Resolution
}

func (e *MaxIterationsExceeded) Error() string {
	return errors.Wrapf(e.Last, "install: exceeded %d resolution iterations without converging", e.Iterations).Error()
}

func (e *MaxIterationsExceeded) Unwrap() error { return e.Last }

// Result is what a successful Install run produced.
type Result struct {
	Resolution *resolver.Resolution
	Diff       lockfile.Diff
}

// Installer wires the Store and Fetcher together under one set of Options.
//
// Phase sequencing and the Normal/Frozen posture split are adapted from the
// teacher's rootdata/project assembly and ensure.go's frozen-lockfile
// short-circuit; materialization reuses internal/store's symlink/atomic
// helpers generalized from the teacher's vendor-tree writer to a
// symlink-into-CAS model, per SPEC_FULL.md §4.F.
type Installer struct {
	store   *store.Store
	fetcher *fetch.Fetcher
	opts    Options
}

// New opens the Store rooted at opts.StoreRoot and returns a ready
// Installer.
func New(opts Options) (*Installer, error) {
	st, err := store.Open(opts.StoreRoot)
	if err != nil {
		return nil, errors.Wrap(err, "install: open store")
	}
	return &Installer{
		store:   st,
		fetcher: fetch.NewFetcher(opts.Concurrency),
		opts:    opts,
	}, nil
}

func (inst *Installer) progress(phase Phase, message string) {
	klog.With(nil).WithField("phase", phase.String()).Debug(message)
	if inst.opts.Progress != nil {
		inst.opts.Progress(phase, message)
	}
}

// Install runs every phase of spec.md §4.F's pipeline against opts.ProjectDir
// and returns the resulting Resolution and lockfile diff. Dependency-wise,
// path sources are materialized directly and excluded from resolution and
// the lockfile (spec.md §4.F: "they are not locked").
func (inst *Installer) Install(ctx context.Context) (*Result, error) {
	inst.progress(PhaseReadManifest, inst.opts.ProjectDir)
	root, _, err := manifest.FindManifest(ctx, inst.opts.ProjectDir, inst.opts.Toolchain, inst.opts.ManifestCache)
	if err != nil {
		return nil, errors.Wrap(err, "install: read root manifest")
	}

	lockPath := filepath.Join(inst.opts.ProjectDir, lockfileName)
	inst.progress(PhaseDecidePosture, lockPath)
	existing, err := lockfile.Load(lockPath)
	if err != nil {
		return nil, errors.Wrap(err, "install: load lockfile")
	}

	var (
		res      *resolver.Resolution
		provider *knowledgeProvider
	)
	if inst.opts.Posture == Frozen {
		if existing == nil {
			return nil, &FrozenWithoutLockfile{}
		}
		res, err = resolutionFromLockfile(existing)
		if err != nil {
			return nil, err
		}
	} else {
		inst.progress(PhaseResolve, "")
		res, provider, err = inst.resolveIteratively(ctx, root, existing)
		if err != nil {
			return nil, err
		}
	}

	pathDeps := pathDependencies(root)

	inst.progress(PhaseFetch, "")
	// Transitive discovery already fetched every git-sourced decision while
	// converging the resolve loop; nothing further to fetch here for the
	// Normal posture. Frozen installs fetch nothing: materialize links the
	// checkouts already in the store, and a missing checkout makes
	// LinkCheckout, and with it the install, fail.

	inst.progress(PhaseMaterialize, "")
	if err := inst.materialize(ctx, res, pathDeps); err != nil {
		return nil, err
	}

	inst.progress(PhaseWriteLockfile, "")
	newLock := lockfileFrom(res, provider, existing)
	diff := lockfile.DiffAgainst(existing, newLock)
	if !diff.IsEmpty() {
		if err := <-lockfile.WriteAsync(lockPath, newLock); err != nil {
			return nil, errors.Wrap(err, "install: write lockfile")
		}
	}

	return &Result{Resolution: res, Diff: diff}, nil
}

// resolveIteratively runs spec.md §4.E's Resolve against a provider that
// starts out knowing only the root manifest's own git dependencies, fetching
// and parsing newly decided-but-unknown packages between attempts until the
// solve converges or maxIterations is exhausted.
//
// Resolve's contract (internal/resolver.ErrNotFetched wrapped in a
// ProviderError) is what lets this loop tell "go fetch this and retry" apart
// from a genuine VersionConflict/CycleDetected/NoSolution/PackageNotFound
// failure, which propagates immediately instead of being retried forever.
func (inst *Installer) resolveIteratively(ctx context.Context, root manifest.Manifest, existing *lockfile.Lockfile) (*resolver.Resolution, *knowledgeProvider, error) {
	provider := newKnowledgeProvider(ctx)

	rootReqs := make(map[string]semver.VersionReq)
	for name, dep := range root.Dependencies {
		if dep.Kind == manifest.SourcePath {
			continue
		}
		if dep.Kind == manifest.SourceGit && dep.GitURL != "" {
			provider.registerRemote(name, dep.GitURL)
		}
		rootReqs[name] = requirementFor(dep)
	}

	input := resolver.RootInput{
		Dependencies: rootReqs,
		Overrides:    parseReqMap(root.Overrides),
		Constraints:  parseReqMap(root.Constraints),
		Hints:        hintsFromLockfile(existing),
		Strategy:     inst.opts.Strategy,
	}

	var (
		res     *resolver.Resolution
		lastErr error
	)
	for i := 0; i < maxIterations; i++ {
		res, lastErr = resolver.Resolve(provider, input)
		if lastErr == nil {
			return res, provider, nil
		}

		var provErr *resolver.ProviderError
		if !errors.As(lastErr, &provErr) || !errors.Is(provErr.Err, resolver.ErrNotFetched) {
			// Not recoverable by fetching: VersionConflict, CycleDetected,
			// NoSolution, a genuinely unknown PackageNotFound, Cancelled.
			return res, provider, lastErr
		}

		if err := inst.fetchAndDiscover(ctx, provider, res, provErr); err != nil {
			return res, provider, err
		}
	}

	klog.With(nil).Warnf("install: exceeded %d resolution iterations", maxIterations)
	return res, provider, &MaxIterationsExceeded{Iterations: maxIterations, Last: lastErr, Resolution: res}
}

// fetchAndDiscover fetches every decided-but-not-yet-fetched package in res,
// plus the specific (name, version) candidate that triggered provErr (which
// need not be in res.Decisions yet: decide() reports ErrNotFetched before
// committing a candidate, so the very first iteration's blocker is only
// reachable through provErr), in parallel, parses each checkout's manifest,
// and feeds newly discovered remotes and dependency requirements back into
// provider so the next Resolve attempt can make progress.
func (inst *Installer) fetchAndDiscover(ctx context.Context, provider *knowledgeProvider, res *resolver.Resolution, provErr *resolver.ProviderError) error {
	type pending struct {
		name    string
		version semver.Version
	}
	var todo []pending
	seen := make(map[string]bool)
	add := func(name string, v semver.Version) {
		if provider.hasDependencies(name, v) {
			return
		}
		key := depsKey(name, v)
		if seen[key] {
			return
		}
		seen[key] = true
		todo = append(todo, pending{name: name, version: v})
	}

	for name, d := range res.Decisions {
		if name == resolver.Root {
			continue
		}
		add(name, d.Version)
	}
	if provErr != nil && provErr.Package != "" && !provErr.Version.IsZero() {
		add(provErr.Package, provErr.Version)
	}
	if len(todo) == 0 {
		return errors.New("install: provider reported a missing dependency answer but nothing is pending fetch")
	}

	tasks := make([]fetch.Task, len(todo))
	for i, p := range todo {
		url, ok := provider.remoteFor(p.name)
		if !ok {
			return errors.Errorf("install: no known remote for %q", p.name)
		}
		tag, _ := provider.tagFor(p.name, p.version)
		tasks[i] = fetch.Task{
			Source: fetch.Source{Kind: fetch.SourceGit, Name: p.name, URL: url, Tag: tag.Name},
			Dest:   inst.store.GitCheckoutDir(p.name),
		}
	}

	results, fetchErrs := inst.fetcher.FetchAll(ctx, tasks, inst.fetchProgress)

	var agg *kerrs.Multi
	for i, task := range tasks {
		if fetchErrs[i] != nil {
			agg = kerrs.Add(agg, &kerrs.FetchFailed{Package: task.Source.Name, Err: fetchErrs[i]})
			continue
		}
		p := todo[i]
		provider.recordResult(p.name, p.version, results[i])

		m, _, err := manifest.FindManifest(ctx, results[i].Path, inst.opts.Toolchain, inst.opts.ManifestCache)
		if err != nil {
			agg = kerrs.Add(agg, errors.Wrapf(err, "install: parse manifest for %s", p.name))
			continue
		}

		deps := make(map[string]semver.VersionReq, len(m.Dependencies))
		for depName, dep := range m.Dependencies {
			if dep.Kind == manifest.SourcePath {
				continue
			}
			if dep.Kind == manifest.SourceGit && dep.GitURL != "" {
				provider.registerRemote(depName, dep.GitURL)
			}
			deps[depName] = requirementFor(dep)
		}
		provider.recordDependencies(p.name, p.version, deps)
	}
	return kerrs.ErrorOrNil(agg)
}

func (inst *Installer) fetchProgress(name string, state fetch.ProgressState, message string) {
	switch state {
	case fetch.Started:
		inst.progress(PhaseFetch, name+": started")
	case fetch.FailedState:
		inst.progress(PhaseFetch, name+": failed: "+message)
	default:
		inst.progress(PhaseFetch, name+": done")
	}
}

// materialize creates <ProjectDir>/.build/checkouts/<name> for every
// resolved (non-Root) package as a symlink into the Store, and for every
// path-source dependency as a symlink directly to the user-provided path,
// per spec.md §4.F.
func (inst *Installer) materialize(ctx context.Context, res *resolver.Resolution, pathDeps map[string]string) error {
	checkoutsDir := filepath.Join(inst.opts.ProjectDir, ".build", "checkouts")

	var agg *kerrs.Multi
	for name, d := range res.Decisions {
		if name == resolver.Root {
			continue
		}
		dest := filepath.Join(checkoutsDir, name)
		if err := inst.store.LinkCheckout(name, dest); err != nil {
			agg = kerrs.Add(agg, errors.Wrapf(err, "install: materialize %s@%s", name, d.Version.String()))
		}
	}
	for name, path := range pathDeps {
		dest := filepath.Join(checkoutsDir, name)
		if err := store.LinkPath(path, dest); err != nil {
			agg = kerrs.Add(agg, errors.Wrapf(err, "install: materialize path dependency %s", name))
		}
	}
	return kerrs.ErrorOrNil(agg)
}

func pathDependencies(root manifest.Manifest) map[string]string {
	out := make(map[string]string)
	for name, dep := range root.Dependencies {
		if dep.Kind == manifest.SourcePath {
			out[name] = dep.Path
		}
	}
	return out
}

// requirementFor derives the VersionReq a dependency contributes to the
// solve: its own Requirement field for a registry-kind dependency, or an
// exact pin synthesized from a git dependency's Tag, when present, since a
// tag-pinned git dependency constrains the solve just as tightly as an
// explicit "=x.y.z" registry requirement would.
func requirementFor(dep manifest.Dependency) semver.VersionReq {
	if dep.Kind == manifest.SourceGit && dep.Tag != "" {
		if v, err := semver.Parse(strings.TrimPrefix(dep.Tag, "v")); err == nil {
			if req, err := semver.ParseVersionReq("=" + v.String()); err == nil {
				return req
			}
		}
	}
	return dep.Requirement
}

func parseReqMap(in map[string]string) map[string]semver.VersionReq {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]semver.VersionReq, len(in))
	for name, raw := range in {
		req, err := semver.ParseVersionReq(raw)
		if err != nil {
			continue
		}
		out[name] = req
	}
	return out
}

func hintsFromLockfile(l *lockfile.Lockfile) map[string]semver.Version {
	if l == nil {
		return nil
	}
	hints := make(map[string]semver.Version, len(l.Packages))
	for _, p := range l.Packages {
		if v, err := semver.Parse(p.Version); err == nil {
			hints[p.Name] = v
		}
	}
	return hints
}

// resolutionFromLockfile builds the Resolution a Frozen install uses in
// place of a solver run: the lockfile is authoritative, so every entry is
// carried over verbatim with ReasonLockedHint (the closest existing
// ChoiceReason to "the lockfile decided this, unconditionally").
func resolutionFromLockfile(l *lockfile.Lockfile) (*resolver.Resolution, error) {
	res := &resolver.Resolution{Decisions: make(map[string]resolver.Decision, len(l.Packages))}
	for _, p := range l.Packages {
		v, err := semver.Parse(p.Version)
		if err != nil {
			return nil, errors.Wrapf(err, "install: parse locked version for %s", p.Name)
		}
		d := resolver.Decision{Name: p.Name, Version: v, Reason: resolver.ReasonLockedHint}
		res.Decisions[p.Name] = d
		res.Trace = append(res.Trace, d)
	}
	return res, nil
}

// lockfileFrom assembles the Lockfile to write after a successful install:
// one LockedPackage per non-Root decision, carrying the remote URL,
// revision, and checksum recorded during fetch (or, for a Frozen install
// where nothing was freshly fetched, the matching entry already on disk).
func lockfileFrom(res *resolver.Resolution, provider *knowledgeProvider, existing *lockfile.Lockfile) *lockfile.Lockfile {
	out := &lockfile.Lockfile{}
	for name, d := range res.Decisions {
		if name == resolver.Root {
			continue
		}
		pkg := lockfile.LockedPackage{
			Name:    name,
			Version: d.Version.String(),
			Source:  manifest.SourceGit,
		}
		if provider != nil {
			if url, ok := provider.remoteFor(name); ok {
				pkg.GitURL = url
			}
			if result, ok := provider.resultFor(name, d.Version); ok {
				pkg.Revision = result.Revision
				pkg.Checksum = result.Checksum
			}
			if deps, ok := provider.depsFor(name, d.Version); ok {
				for dep := range deps {
					pkg.Dependencies = append(pkg.Dependencies, dep)
				}
			}
		}
		if pkg.Revision == "" && existing != nil {
			if prior, ok := existing.ByName(name); ok && prior.Version == pkg.Version {
				pkg.Revision = prior.Revision
				pkg.Checksum = prior.Checksum
				if pkg.GitURL == "" {
					pkg.GitURL = prior.GitURL
				}
				if pkg.Dependencies == nil {
					pkg.Dependencies = prior.Dependencies
				}
			}
		}
		out.Packages = append(out.Packages, pkg)
	}
	return out.Normalize()
}
