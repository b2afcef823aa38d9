package resolver

import "github.com/knitpm/knit/internal/semver"

// failedCandidate records a version this run already tried and rejected for
// a package, paired with why, so a formatted derivation can cite it.
type failedCandidate struct {
	version semver.Version
	reason  error
}

// versionQueue holds the ordered candidates still worth trying for one
// package, and the ones already tried and rejected — directly adapted from
// the teacher's versionQueue (version_queue.go): same pop-on-failure,
// remember-why shape, simplified because this system has no lock/prefer
// distinction beyond the single hint slot RootInput.Hints already models.
type versionQueue struct {
	name    string
	pending []semver.Version
	fails   []failedCandidate
}

func newVersionQueue(name string, ordered []semver.Version) *versionQueue {
	return &versionQueue{name: name, pending: ordered}
}

// current returns the candidate currently being tried, or the zero value
// and false if the queue is exhausted.
func (q *versionQueue) current() (semver.Version, bool) {
	if len(q.pending) == 0 {
		return semver.Version{}, false
	}
	return q.pending[0], true
}

// advance records why the current candidate was rejected and moves to the
// next one.
func (q *versionQueue) advance(reason error) {
	if len(q.pending) == 0 {
		return
	}
	q.fails = append(q.fails, failedCandidate{version: q.pending[0], reason: reason})
	q.pending = q.pending[1:]
}

func (q *versionQueue) isExhausted() bool { return len(q.pending) == 0 }

// narrowTo drops any pending candidate no longer contained in rng, without
// disturbing relative order or the fail history — used when a package's
// effective range shrinks after its queue was first built.
func (q *versionQueue) narrowTo(contains func(semver.Version) bool) {
	kept := q.pending[:0:0]
	for _, v := range q.pending {
		if contains(v) {
			kept = append(kept, v)
		}
	}
	q.pending = kept
}
