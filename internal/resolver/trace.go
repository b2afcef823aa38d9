package resolver

import (
	"fmt"
	"strings"
)

// FormatDerivation renders a VersionConflict as a human-readable derivation
// tree: a root-cause line naming the contended package, then one numbered
// step per contributing requirement, per spec.md §4.E's derivation
// formatting requirement.
func FormatDerivation(c *VersionConflict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "no version of %q satisfies every requirement placed on it:\n", c.Package)
	for i, req := range c.Conflicting {
		if req.Requirement != "" {
			fmt.Fprintf(&b, "  %d. %s requires %s %s\n", i+1, req.RequiredBy, c.Package, req.Requirement)
		} else {
			fmt.Fprintf(&b, "  %d. %s depends on %s\n", i+1, req.RequiredBy, c.Package)
		}
	}
	return b.String()
}

// FormatCycle renders a dependency cycle as an arrow chain with a closing
// back-edge, e.g. "a -> b -> c -> (cycle)".
func FormatCycle(path []string) string {
	return formatCycle(path)
}

// ToNoSolution promotes a VersionConflict to a NoSolution carrying its
// formatted derivation, for callers that want to surface every resolution
// failure through one error shape regardless of which stage detected it.
func (c *VersionConflict) ToNoSolution(suggestions ...ResolutionSuggestion) *NoSolution {
	return &NoSolution{Derivation: FormatDerivation(c), Suggestions: suggestions}
}
