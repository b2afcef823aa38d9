package resolver

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"

	"github.com/knitpm/knit/internal/semver"
)

// state carries the resolver's working data for a single run. A package's
// own versionQueue index only ever advances, never rewinds, even though a
// re-decided requirer can both add and retract incoming requirements against
// it (retractAssertions drops the stale half of a superseded decision's
// asserted deps) — so the number of times any one package's candidate
// actually changes is still bounded by the number of versions the provider
// reports for it, the termination argument for the redecide loop in
// resolve, with Resolve's own maxSteps as a backstop against a bug in that
// argument.
//
// Adapted from the teacher's solver.go/selection.go pairing: a `selection`
// of finalized decisions plus an `unselected` priority queue, simplified
// from dep's bimodal (project + import-subpackage) reach down to one
// version per named package.
type state struct {
	provider    PackageProvider
	input       RootInput
	overrides   overrideSet
	constraints overrideSet

	queue *unselectedQueue

	// incoming[p] accumulates every requirement that's been asserted against
	// p so far, one VersionSet per contributor, so effectiveRange can be
	// recomputed as an intersection at any point.
	incoming map[string]map[string]semver.VersionSet

	// assertedBy[name] is the set of dependency names name's current
	// decision has asserted a requirement against, so a later re-decision
	// (narrowTo dropping name's prior pick in favor of a lower version) can
	// retract requirements the abandoned version contributed before
	// asserting the new version's, instead of leaving them to linger in
	// incoming and narrow some other package's range against a constraint
	// nothing live actually asks for anymore.
	assertedBy map[string][]string

	chosen map[string]Decision
	order  []string

	queues map[string]*versionQueue

	versionsCache map[string][]semver.Version
	depsCache     map[string]map[string]semver.VersionReq
}

func newState(provider PackageProvider, input RootInput) *state {
	return &state{
		provider:      provider,
		input:         input,
		overrides:     newOverrideSet(input.Overrides),
		constraints:   newOverrideSet(input.Constraints),
		queue:         newUnselectedQueue(),
		incoming:      make(map[string]map[string]semver.VersionSet),
		assertedBy:    make(map[string][]string),
		chosen:        make(map[string]Decision),
		queues:        make(map[string]*versionQueue),
		versionsCache: make(map[string][]semver.Version),
		depsCache:     make(map[string]map[string]semver.VersionReq),
	}
}

// Resolve runs the solver to completion (or failure) over the given root
// input and provider, per spec.md §4.E. It always returns the Resolution
// built from whatever was successfully decided before an error, if any —
// callers running an outer discovery loop (spec.md §4.E's "Transitive
// discovery loop") need that partial progress to know what to fetch next.
func Resolve(provider PackageProvider, input RootInput) (*Resolution, error) {
	st := newState(provider, input)

	for name, req := range input.Dependencies {
		st.assert(Root, name, req)
	}

	// Bound redecisions so a pathological provider (or a bug in the
	// monotonic-narrowing argument) can't spin forever; real runs converge
	// in far fewer steps than this.
	const maxSteps = 100000
	steps := 0
	for st.queue.Len() > 0 {
		steps++
		if steps > maxSteps {
			return st.buildResolution(), &NoSolution{Derivation: "exceeded maximum resolution steps", Suggestions: []ResolutionSuggestion{SuggestRemoveConstraint}}
		}

		name := heap.Pop(st.queue).(string)
		if err := st.decide(name); err != nil {
			return st.buildResolution(), err
		}
	}

	return st.buildResolution(), nil
}

func (st *state) buildResolution() *Resolution {
	res := &Resolution{Decisions: make(map[string]Decision, len(st.chosen))}
	for _, name := range st.order {
		d := st.chosen[name]
		res.Decisions[name] = d
		res.Trace = append(res.Trace, d)
	}
	return res
}

// assert records that `from` requires `to` to satisfy req, and queues `to`
// for a (re)decision if its effective range may have changed.
func (st *state) assert(from, to string, req semver.VersionReq) {
	set, err := semver.FromRequirement(req.String())
	if err != nil {
		set = semver.Full()
	}
	if st.incoming[to] == nil {
		st.incoming[to] = make(map[string]semver.VersionSet)
	}
	st.incoming[to][from] = set
	st.queue.pushOrReprioritize(to, st.priority(to))
}

// retractAssertions drops name's previous round of asserted requirements
// against any dependency not in newDeps (the set name's freshly-decided
// version actually depends on), and re-queues each retracted dependency so
// its now-possibly-widened effective range gets re-evaluated rather than
// staying narrowed by a constraint nothing live still asserts.
func (st *state) retractAssertions(name string, newDeps []string) {
	still := make(map[string]bool, len(newDeps))
	for _, dep := range newDeps {
		still[dep] = true
	}
	for _, prevDep := range st.assertedBy[name] {
		if still[prevDep] {
			continue
		}
		if reqs, ok := st.incoming[prevDep]; ok {
			delete(reqs, name)
		}
		if prevDep != Root && prevDep != name {
			st.queue.pushOrReprioritize(prevDep, st.priority(prevDep))
		}
	}
	st.assertedBy[name] = append([]string{}, newDeps...)
}

func (st *state) priority(name string) int {
	if name == Root {
		return 0
	}
	if _, ok := st.overrides.get(name); ok {
		return 1
	}
	versions, err := st.versions(name)
	if err != nil || len(versions) == 0 {
		return priorityFor(name, false, 0, true)
	}
	return priorityFor(name, false, len(versions), false)
}

func (st *state) versions(name string) ([]semver.Version, error) {
	if v, ok := st.versionsCache[name]; ok {
		return v, nil
	}
	v, err := st.provider.Versions(name)
	if err != nil {
		return nil, err
	}
	st.versionsCache[name] = v
	return v, nil
}

func (st *state) dependenciesOf(name string, v semver.Version) (map[string]semver.VersionReq, error) {
	key := name + "@" + v.String()
	if d, ok := st.depsCache[key]; ok {
		return d, nil
	}
	d, err := st.provider.DependenciesOf(name, v)
	if err != nil {
		return nil, err
	}
	st.depsCache[key] = d
	return d, nil
}

// effectiveRange computes the range a package's candidate must fall within:
// its override if one exists (which replaces everything else), otherwise
// the intersection of every asserted incoming requirement and any
// root-level constraint on the package.
func (st *state) effectiveRange(name string) (semver.VersionSet, []ConflictingRequirement) {
	if ov, ok := st.overrides.get(name); ok {
		set, err := semver.FromRequirement(ov.String())
		if err != nil {
			set = semver.Full()
		}
		return set, nil
	}

	result := semver.Full()
	var contributors []ConflictingRequirement
	contributorNames := make([]string, 0, len(st.incoming[name]))
	for from := range st.incoming[name] {
		contributorNames = append(contributorNames, from)
	}
	sort.Strings(contributorNames)
	for _, from := range contributorNames {
		req := st.incoming[name][from]
		result = result.Intersection(req)
		contributors = append(contributors, ConflictingRequirement{RequiredBy: from})
	}

	if c, ok := st.constraints.get(name); ok {
		set, err := semver.FromRequirement(c.String())
		if err == nil {
			result = result.Intersection(set)
			contributors = append(contributors, ConflictingRequirement{RequiredBy: "(root constraint)", Requirement: c.String()})
		}
	}

	return result, contributors
}

// decide finalizes (or re-finalizes) name's version. It is called at most
// once per entry in name's available-versions list, by the termination
// argument on state.
func (st *state) decide(name string) error {
	if name == Root {
		st.chosen[Root] = Decision{Name: Root, Version: semver.New(0, 0, 0), Reason: ReasonRoot}
		if _, already := indexOf(st.order, Root); !already {
			st.order = append(st.order, Root)
		}
		return nil
	}

	rng, contributors := st.effectiveRange(name)
	if rng.IsEmpty() {
		return &VersionConflict{Package: name, Conflicting: contributors}
	}

	versions, err := st.versions(name)
	if err != nil {
		return &ProviderError{Package: name, Err: err}
	}
	if len(versions) == 0 {
		return &PackageNotFound{Package: name}
	}

	q, ok := st.queues[name]
	if !ok {
		q = newVersionQueue(name, st.orderAll(name, versions))
		st.queues[name] = q
	}
	q.narrowTo(rng.Contains)

	for {
		v, ok := q.current()
		if !ok {
			return &NoMatchingVersion{Package: name, Requirement: rangeDescription(name, st), Available: versionStrings(versions)}
		}

		if prev, already := st.chosen[name]; already && prev.Version.Equal(v) {
			// Nothing changed; already fully decided and propagated.
			return nil
		}

		deps, err := st.dependenciesOf(name, v)
		if err != nil {
			if errors.Is(err, ErrNotFetched) {
				// Don't burn this candidate: the provider just hasn't been
				// given the chance to fetch it yet, which a caller's outer
				// discovery loop will fix before retrying. Carry the
				// candidate version along so the caller knows exactly which
				// (name, version) checkout to fetch, since name alone isn't
				// committed to st.chosen yet.
				return &ProviderError{Package: name, Version: v, Err: err}
			}
			q.advance(err)
			continue
		}

		depNames := make([]string, 0, len(deps))
		for dep := range deps {
			depNames = append(depNames, dep)
		}
		sort.Strings(depNames)
		for _, dep := range depNames {
			if dep == Root || dep == name {
				return &CycleDetected{Path: []string{name, dep}}
			}
		}

		st.retractAssertions(name, depNames)

		st.chosen[name] = Decision{Name: name, Version: v, Reason: st.reasonFor(name, v)}
		if _, already := indexOf(st.order, name); !already {
			st.order = append(st.order, name)
		}
		for _, dep := range depNames {
			st.assert(name, dep, deps[dep])
		}
		return nil
	}
}

// orderAll sorts every version the provider knows about for name into the
// order decide should try them in: the lockfile hint first if present,
// then by strategy. Built once per package and then narrowed as the
// effective range shrinks, rather than recomputed from scratch, so a
// version already tried and rejected via q.advance never resurfaces.
func (st *state) orderAll(name string, versions []semver.Version) []semver.Version {
	out := append([]semver.Version{}, versions...)
	hint, hasHint := st.input.Hints[name]
	sort.Slice(out, func(i, j int) bool {
		if hasHint {
			if out[i].Equal(hint) {
				return true
			}
			if out[j].Equal(hint) {
				return false
			}
		}
		if st.input.Strategy == Lowest {
			return out[i].Less(out[j])
		}
		return out[j].Less(out[i])
	})
	return out
}

func (st *state) reasonFor(name string, v semver.Version) ChoiceReason {
	if _, overridden := st.overrides.get(name); overridden {
		return ReasonOverride
	}
	if hint, ok := st.input.Hints[name]; ok && hint.Equal(v) {
		return ReasonLockedHint
	}
	if st.input.Strategy == Lowest {
		return ReasonLowestCompatible
	}
	return ReasonHighestCompatible
}

func indexOf(s []string, v string) (int, bool) {
	for i, x := range s {
		if x == v {
			return i, true
		}
	}
	return -1, false
}

func versionStrings(vs []semver.Version) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}

func rangeDescription(name string, st *state) string {
	if ov, ok := st.overrides.get(name); ok {
		return ov.String()
	}
	if c, ok := st.constraints.get(name); ok {
		return fmt.Sprintf("(intersection of incoming requirements) & %s", c.String())
	}
	return "(intersection of incoming requirements)"
}
