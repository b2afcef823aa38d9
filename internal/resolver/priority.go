package resolver

import (
	"container/heap"

	radix "github.com/armon/go-radix"

	"github.com/knitpm/knit/internal/semver"
)

// priorityFor implements spec.md §4.E's priority formula: Root resolves
// first, overridden packages next, then everyone else ordered by how
// constrained their candidate set is (fewer available versions resolves
// sooner), and packages whose version list couldn't be loaded at all sort
// last (priority 1000), so they are decided after every other package.
func priorityFor(name string, overridden bool, availableCount int, missing bool) int {
	switch {
	case name == Root:
		return 0
	case overridden:
		return 1
	case missing:
		return 1000
	default:
		return 100 + availableCount
	}
}

// overrideSet and constraintSet wrap a *radix.Tree for exact-match lookups
// of override/constraint ranges against potentially large dependency sets —
// adapted from the teacher's use of github.com/armon/go-radix in
// solver.go's intersectConstraintsWithImports for the same kind of
// large-key-set membership check, here used for name lookup rather than
// import-path-prefix matching.
type overrideSet struct{ t *radix.Tree }

func newOverrideSet(m map[string]semver.VersionReq) overrideSet {
	t := radix.New()
	for k, v := range m {
		t.Insert(k, v)
	}
	return overrideSet{t: t}
}

func (o overrideSet) get(name string) (semver.VersionReq, bool) {
	if o.t == nil {
		return semver.VersionReq{}, false
	}
	v, ok := o.t.Get(name)
	if !ok {
		return semver.VersionReq{}, false
	}
	return v.(semver.VersionReq), true
}

// unselectedQueue is a container/heap priority queue of pending package
// names, directly adapted from the teacher's `unselected` type in
// selection.go (same Push/Pop/remove shape over a slice of identifiers).
type unselectedQueue struct {
	names []string
	prio  map[string]int
}

func newUnselectedQueue() *unselectedQueue {
	return &unselectedQueue{prio: make(map[string]int)}
}

func (u *unselectedQueue) Len() int { return len(u.names) }
func (u *unselectedQueue) Less(i, j int) bool {
	return u.prio[u.names[i]] < u.prio[u.names[j]]
}
func (u *unselectedQueue) Swap(i, j int) { u.names[i], u.names[j] = u.names[j], u.names[i] }
func (u *unselectedQueue) Push(x interface{}) {
	u.names = append(u.names, x.(string))
}
func (u *unselectedQueue) Pop() interface{} {
	old := u.names
	n := len(old)
	v := old[n-1]
	u.names = old[:n-1]
	return v
}

// remove takes name out of the queue, if present, and restores the heap
// invariant.
func (u *unselectedQueue) remove(name string) {
	for i, n := range u.names {
		if n == name {
			heap.Remove(u, i)
			return
		}
	}
}

func (u *unselectedQueue) contains(name string) bool {
	for _, n := range u.names {
		if n == name {
			return true
		}
	}
	return false
}

// pushOrReprioritize adds name to the queue at the given priority, or
// re-fixes its position if it's already present with a new priority.
func (u *unselectedQueue) pushOrReprioritize(name string, priority int) {
	u.prio[name] = priority
	if u.contains(name) {
		heap.Init(u)
		return
	}
	heap.Push(u, name)
}
