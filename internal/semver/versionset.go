package semver

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// VersionSet is a boolean algebra over the domain of all possible Versions:
// Empty and Full are its bottom and top elements, and Complement,
// Intersection, and Union make it a De Morgan algebra, per spec.md §4.E.
//
// Internally a set is a sorted, non-overlapping, non-touching list of
// intervals. The teacher's own Constraint type (constraints.go) only ever
// needed Matches/MatchesAny/Intersect, because its solver never had to
// negate a constraint; VersionSet's Complement requirement means the
// interval list has to be a first-class, mergeable structure rather than a
// thin wrapper around Masterminds/semver's opaque Constraints type.
type VersionSet struct {
	segs []segment
}

// a segment is a single contiguous interval of the version line. An
// unbounded low/high end is represented by unbounded=true, in which case the
// corresponding Version field and inclusive flag are ignored.
type segment struct {
	loUnbounded bool
	lo          Version
	loIncl      bool

	hiUnbounded bool
	hi          Version
	hiIncl      bool
}

// Empty returns the set containing no versions.
func Empty() VersionSet { return VersionSet{} }

// Full returns the set containing every version.
func Full() VersionSet {
	return VersionSet{segs: []segment{{loUnbounded: true, hiUnbounded: true}}}
}

// Singleton returns the set containing exactly v.
func Singleton(v Version) VersionSet {
	return VersionSet{segs: []segment{{lo: v, loIncl: true, hi: v, hiIncl: true}}}
}

// IsEmpty reports whether s has no members.
func (s VersionSet) IsEmpty() bool { return len(s.segs) == 0 }

// IsFull reports whether s contains every version.
func (s VersionSet) IsFull() bool {
	return len(s.segs) == 1 && s.segs[0].loUnbounded && s.segs[0].hiUnbounded
}

// Contains reports whether v is a member of s.
func (s VersionSet) Contains(v Version) bool {
	i := sort.Search(len(s.segs), func(i int) bool {
		return !segLessThanVersion(s.segs[i], v)
	})
	if i == len(s.segs) {
		return false
	}
	return segContains(s.segs[i], v)
}

// segLessThanVersion reports whether every member of seg sorts before v,
// i.e. seg's high end is at or below v.
func segLessThanVersion(seg segment, v Version) bool {
	if seg.hiUnbounded {
		return false
	}
	if seg.hiIncl {
		return seg.hi.Less(v)
	}
	return seg.hi.Compare(v) <= 0
}

func segContains(seg segment, v Version) bool {
	if !seg.loUnbounded {
		if seg.loIncl {
			if v.Less(seg.lo) {
				return false
			}
		} else if !seg.lo.Less(v) {
			return false
		}
	}
	if !seg.hiUnbounded {
		if seg.hiIncl {
			if seg.hi.Less(v) {
				return false
			}
		} else if !v.Less(seg.hi) {
			return false
		}
	}
	return true
}

// Complement returns the set of every version not in s.
func (s VersionSet) Complement() VersionSet {
	if s.IsEmpty() {
		return Full()
	}
	if s.IsFull() {
		return Empty()
	}
	return complementSorted(s.segs)
}

func complementSorted(segs []segment) VersionSet {
	var out []segment
	prevHiUnbounded := false
	var prevHi Version
	prevHiIncl := false
	havePrev := false

	for _, seg := range segs {
		if !havePrev {
			if !seg.loUnbounded {
				out = append(out, segment{
					loUnbounded: true,
					hiUnbounded: false,
					hi:          seg.lo,
					hiIncl:      !seg.loIncl,
				})
			}
		} else {
			if !seg.loUnbounded {
				out = append(out, segment{
					loUnbounded: false,
					lo:          prevHi,
					loIncl:      !prevHiIncl,
					hiUnbounded: false,
					hi:          seg.lo,
					hiIncl:      !seg.loIncl,
				})
			}
		}
		prevHiUnbounded = seg.hiUnbounded
		prevHi = seg.hi
		prevHiIncl = seg.hiIncl
		havePrev = true
	}
	if havePrev && !prevHiUnbounded {
		out = append(out, segment{
			loUnbounded: false,
			lo:          prevHi,
			loIncl:      !prevHiIncl,
			hiUnbounded: true,
		})
	}
	return VersionSet{segs: normalize(out)}
}

// Intersection returns the set of versions in both s and o.
func (s VersionSet) Intersection(o VersionSet) VersionSet {
	var out []segment
	i, j := 0, 0
	for i < len(s.segs) && j < len(o.segs) {
		a, b := s.segs[i], o.segs[j]
		if lo, hi, ok := intersectSeg(a, b); ok {
			out = append(out, segment{
				loUnbounded: lo == nil, lo: derefOrZero(lo), loIncl: loInclOf(a, b),
				hiUnbounded: hi == nil, hi: derefOrZero(hi), hiIncl: hiInclOf(a, b),
			})
		}
		if segHiLessOrEq(a, b) {
			i++
		} else {
			j++
		}
	}
	return VersionSet{segs: normalize(out)}
}

// Union returns the set of versions in either s or o.
func (s VersionSet) Union(o VersionSet) VersionSet {
	all := append(append([]segment{}, s.segs...), o.segs...)
	sort.Slice(all, func(i, j int) bool { return segLess(all[i], all[j]) })
	return VersionSet{segs: normalize(all)}
}

// IsDisjoint reports whether s and o share no members.
func (s VersionSet) IsDisjoint(o VersionSet) bool {
	return s.Intersection(o).IsEmpty()
}

// SubsetOf reports whether every member of s is also a member of o.
func (s VersionSet) SubsetOf(o VersionSet) bool {
	return s.Intersection(o.Complement()).IsEmpty()
}

// Equal reports whether s and o contain exactly the same versions.
func (s VersionSet) Equal(o VersionSet) bool {
	return s.SubsetOf(o) && o.SubsetOf(s)
}

// FromRequirement builds the VersionSet of all versions matching req's
// textual range grammar (the same grammar ParseVersionReq accepts:
// comparison operators, caret/tilde ranges, hyphen ranges, and "||"
// alternation), per spec.md §4.E.
func FromRequirement(req string) (VersionSet, error) {
	req = strings.TrimSpace(req)
	if req == "" || req == "*" {
		return Full(), nil
	}
	var out VersionSet
	first := true
	for _, alt := range strings.Split(req, "||") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		set, err := parseConjunction(alt)
		if err != nil {
			return VersionSet{}, err
		}
		if first {
			out = set
			first = false
		} else {
			out = out.Union(set)
		}
	}
	if first {
		return Empty(), errors.Errorf("empty version requirement %q", req)
	}
	return out, nil
}

func parseConjunction(clause string) (VersionSet, error) {
	if hi := strings.Index(clause, " - "); hi >= 0 {
		return parseHyphen(clause[:hi], clause[hi+3:])
	}
	set := Full()
	for _, tok := range strings.Fields(clause) {
		tok = strings.TrimSuffix(tok, ",")
		if tok == "" {
			continue
		}
		part, err := parseAtom(tok)
		if err != nil {
			return VersionSet{}, err
		}
		set = set.Intersection(part)
	}
	return set, nil
}

func parseHyphen(lo, hi string) (VersionSet, error) {
	loV, _, _, err := parsePartial(strings.TrimSpace(lo))
	if err != nil {
		return VersionSet{}, errors.Wrapf(err, "invalid range lower bound %q", lo)
	}
	hiV, hiCeil, hiExact, err := parsePartial(strings.TrimSpace(hi))
	if err != nil {
		return VersionSet{}, errors.Wrapf(err, "invalid range upper bound %q", hi)
	}
	if hiExact {
		return VersionSet{segs: []segment{{lo: loV, loIncl: true, hi: hiV, hiIncl: true}}}, nil
	}
	// "1.2 - 2.3" includes every 2.3.x version but stops short of 2.4.0.
	return VersionSet{segs: []segment{{lo: loV, loIncl: true, hi: hiCeil, hiIncl: false}}}, nil
}

func parseAtom(tok string) (VersionSet, error) {
	switch {
	case strings.HasPrefix(tok, ">="):
		v, _, _, err := parsePartial(tok[2:])
		if err != nil {
			return VersionSet{}, err
		}
		return VersionSet{segs: []segment{{lo: v, loIncl: true, hiUnbounded: true}}}, nil
	case strings.HasPrefix(tok, "<="):
		v, ceil, exact, err := parsePartial(tok[2:])
		if err != nil {
			return VersionSet{}, err
		}
		if exact {
			return VersionSet{segs: []segment{{loUnbounded: true, hi: v, hiIncl: true}}}, nil
		}
		// "<=1.2" includes every 1.2.x version but stops short of 1.3.0.
		return VersionSet{segs: []segment{{loUnbounded: true, hi: ceil, hiIncl: false}}}, nil
	case strings.HasPrefix(tok, ">"):
		v, ceil, exact, err := parsePartial(tok[1:])
		if err != nil {
			return VersionSet{}, err
		}
		if exact {
			return VersionSet{segs: []segment{{lo: v, loIncl: false, hiUnbounded: true}}}, nil
		}
		// ">1.2" excludes every 1.2.x version, so it starts at the next
		// minor inclusive, not exclusive of it.
		return VersionSet{segs: []segment{{lo: ceil, loIncl: true, hiUnbounded: true}}}, nil
	case strings.HasPrefix(tok, "<"):
		v, _, _, err := parsePartial(tok[1:])
		if err != nil {
			return VersionSet{}, err
		}
		return VersionSet{segs: []segment{{loUnbounded: true, hi: v, hiIncl: false}}}, nil
	case strings.HasPrefix(tok, "="):
		v, _, _, err := parsePartial(tok[1:])
		if err != nil {
			return VersionSet{}, err
		}
		return Singleton(v), nil
	case strings.HasPrefix(tok, "^"):
		return caretRange(tok[1:])
	case strings.HasPrefix(tok, "~"):
		return tildeRange(tok[1:])
	default:
		return caretRange(tok)
	}
}

// parsePartial parses a possibly-elided version string ("1", "1.2",
// "1.2.3"). It returns the floor version (missing components treated as 0),
// the ceiling version one past the least-significant given component
// (used when the partial is the upper end of a hyphen range or ">"), and
// whether the input was a complete, exact version.
func parsePartial(s string) (floor, ceil Version, exact bool, err error) {
	parts := strings.SplitN(s, ".", 3)
	nums := make([]uint64, 0, 3)
	for _, p := range parts {
		if p == "" || p == "*" || p == "x" || p == "X" {
			break
		}
		n, perr := strconv.ParseUint(p, 10, 64)
		if perr != nil {
			// full semver string with pre-release/build metadata
			v, verr := Parse(s)
			if verr != nil {
				return Version{}, Version{}, false, errors.Wrapf(verr, "invalid version %q", s)
			}
			return v, v, true, nil
		}
		nums = append(nums, n)
	}
	for len(nums) < 3 {
		nums = append(nums, 0)
	}
	floor = New(nums[0], nums[1], nums[2])
	switch len(parts) {
	case 1:
		ceil = New(nums[0]+1, 0, 0)
	case 2:
		ceil = New(nums[0], nums[1]+1, 0)
	default:
		return floor, floor, true, nil
	}
	return floor, ceil, false, nil
}

func caretRange(s string) (VersionSet, error) {
	floor, _, exact, err := parsePartial(s)
	if err != nil {
		return VersionSet{}, err
	}
	_ = exact
	var ceil Version
	switch {
	case floor.Major() > 0:
		ceil = New(floor.Major()+1, 0, 0)
	case floor.Minor() > 0:
		ceil = New(0, floor.Minor()+1, 0)
	default:
		ceil = New(0, 0, floor.Patch()+1)
	}
	return VersionSet{segs: []segment{{lo: floor, loIncl: true, hi: ceil, hiIncl: false}}}, nil
}

func tildeRange(s string) (VersionSet, error) {
	floor, _, _, err := parsePartial(s)
	if err != nil {
		return VersionSet{}, err
	}
	parts := strings.Split(s, ".")
	var ceil Version
	if len(parts) >= 2 {
		ceil = New(floor.Major(), floor.Minor()+1, 0)
	} else {
		ceil = New(floor.Major()+1, 0, 0)
	}
	return VersionSet{segs: []segment{{lo: floor, loIncl: true, hi: ceil, hiIncl: false}}}, nil
}

// --- interval-list plumbing ---

func segLess(a, b segment) bool {
	if a.loUnbounded != b.loUnbounded {
		return a.loUnbounded
	}
	if !a.loUnbounded && !a.lo.Equal(b.lo) {
		return a.lo.Less(b.lo)
	}
	return false
}

func segHiLessOrEq(a, b segment) bool {
	if a.hiUnbounded {
		return false
	}
	if b.hiUnbounded {
		return true
	}
	return a.hi.Compare(b.hi) <= 0
}

func intersectSeg(a, b segment) (lo, hi *Version, ok bool) {
	var loV Version
	loUnbounded := a.loUnbounded && b.loUnbounded
	switch {
	case a.loUnbounded:
		loV = b.lo
	case b.loUnbounded:
		loV = a.lo
	case a.lo.Less(b.lo):
		loV = b.lo
	default:
		loV = a.lo
	}

	var hiV Version
	hiUnbounded := a.hiUnbounded && b.hiUnbounded
	switch {
	case a.hiUnbounded:
		hiV = b.hi
	case b.hiUnbounded:
		hiV = a.hi
	case a.hi.Less(b.hi):
		hiV = a.hi
	default:
		hiV = b.hi
	}

	if !loUnbounded && !hiUnbounded {
		if hiV.Less(loV) {
			return nil, nil, false
		}
		if hiV.Equal(loV) && !(loInclOf(a, b) && hiInclOf(a, b)) {
			return nil, nil, false
		}
	}
	if loUnbounded {
		return nil, ptrIf(!hiUnbounded, hiV), true
	}
	if hiUnbounded {
		return ptrIf(true, loV), nil, true
	}
	return &loV, &hiV, true
}

func ptrIf(cond bool, v Version) *Version {
	if !cond {
		return nil
	}
	return &v
}

func derefOrZero(v *Version) Version {
	if v == nil {
		return Version{}
	}
	return *v
}

func loInclOf(a, b segment) bool {
	av := boundVersion(a, true)
	bv := boundVersion(b, true)
	switch {
	case a.loUnbounded:
		return b.loIncl
	case b.loUnbounded:
		return a.loIncl
	case av.Equal(bv):
		return a.loIncl && b.loIncl
	case av.Less(bv):
		return b.loIncl
	default:
		return a.loIncl
	}
}

func hiInclOf(a, b segment) bool {
	av := boundVersion(a, false)
	bv := boundVersion(b, false)
	switch {
	case a.hiUnbounded:
		return b.hiIncl
	case b.hiUnbounded:
		return a.hiIncl
	case av.Equal(bv):
		return a.hiIncl && b.hiIncl
	case av.Less(bv):
		return a.hiIncl
	default:
		return b.hiIncl
	}
}

func boundVersion(s segment, low bool) Version {
	if low {
		return s.lo
	}
	return s.hi
}

// normalize sorts, merges overlapping or touching segments, and drops empty
// ones, producing the unique canonical representation of a VersionSet.
func normalize(segs []segment) []segment {
	segs = append([]segment{}, segs...)
	sort.Slice(segs, func(i, j int) bool { return segLess(segs[i], segs[j]) })

	var out []segment
	for _, s := range segs {
		if !s.loUnbounded && !s.hiUnbounded {
			if s.hi.Less(s.lo) {
				continue
			}
			if s.hi.Equal(s.lo) && !(s.loIncl && s.hiIncl) {
				continue
			}
		}
		if len(out) == 0 {
			out = append(out, s)
			continue
		}
		last := &out[len(out)-1]
		if segsTouchOrOverlap(*last, s) {
			*last = mergeSeg(*last, s)
		} else {
			out = append(out, s)
		}
	}
	return out
}

func segsTouchOrOverlap(a, b segment) bool {
	if a.hiUnbounded {
		return true
	}
	if b.loUnbounded {
		return true
	}
	if b.lo.Less(a.hi) {
		return true
	}
	if b.lo.Equal(a.hi) && (a.hiIncl || b.loIncl) {
		return true
	}
	return false
}

func mergeSeg(a, b segment) segment {
	out := a
	if b.hiUnbounded {
		out.hiUnbounded = true
	} else if !out.hiUnbounded {
		if b.hi.Compare(out.hi) > 0 || (b.hi.Equal(out.hi) && b.hiIncl) {
			out.hi = b.hi
			out.hiIncl = b.hiIncl
		}
	}
	return out
}
