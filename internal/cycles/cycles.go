// Package cycles detects and avoids cycles in the path-finding algorithm.
//
// Cycles in a stack graph can indicate mutually recursive imports, recursive
// function calls, or genuinely unbounded lookup families. Any cycle
// detection here is a heuristic: our search mimics runtime recursion, so a
// complete answer would be the Halting Problem. The heuristic: bound the
// number of distinct paths processed between the same pair of endpoints.
package cycles

import (
	"sort"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/graph"
)

// MaxSimilarPathCount bounds how many strictly-shorter paths with the same
// endpoints may precede a candidate before it is judged non-productive. A
// termination knob, not a correctness promise.
const MaxSimilarPathCount = 13

// PathKey identifies the endpoints a path family shares.
type PathKey struct {
	StartNode arena.Handle[graph.Node]
	EndNode   arena.Handle[graph.Node]
}

// Detector remembers the paths processed per endpoint pair and decides
// whether a new candidate is worth processing. P is the path representation;
// the key and is-shorter relations are supplied at construction so the same
// detector works for concrete and partial paths.
type Detector[P any] struct {
	keyOf   func(P) PathKey
	shorter func(candidate, other P) bool
	paths   map[PathKey][]P
}

// NewDetector returns an empty detector. keyOf extracts a path's endpoint
// pair; shorter reports whether a is strictly shorter than b (fewer edges
// and stacks no longer).
func NewDetector[P any](keyOf func(P) PathKey, shorter func(a, b P) bool) *Detector[P] {
	return &Detector[P]{
		keyOf:   keyOf,
		shorter: shorter,
		paths:   make(map[PathKey][]P),
	}
}

// ShouldProcess decides whether the path-finding algorithm should process
// candidate. cmp compares a stored path against the candidate under the
// caller's canonical path ordering. Exact duplicates are rejected; so are
// candidates with more than MaxSimilarPathCount strictly shorter siblings.
// Accepted candidates are recorded at their sorted position.
func (d *Detector[P]) ShouldProcess(candidate P, cmp func(stored P) int) bool {
	key := d.keyOf(candidate)
	withSameNodes := d.paths[key]

	index := sort.Search(len(withSameNodes), func(i int) bool {
		return cmp(withSameNodes[i]) >= 0
	})
	if index < len(withSameNodes) && cmp(withSameNodes[index]) == 0 {
		// Already processed this exact path.
		return false
	}

	similar := 0
	for i := range withSameNodes {
		if d.shorter(withSameNodes[i], candidate) {
			similar++
		}
	}
	if similar > MaxSimilarPathCount {
		return false
	}

	withSameNodes = append(withSameNodes, candidate)
	copy(withSameNodes[index+1:], withSameNodes[index:])
	withSameNodes[index] = candidate
	d.paths[key] = withSameNodes
	return true
}
