package cycles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/graph"
)

// fakePath is a minimal path stand-in: endpoints, an edge count, and a
// stack size.
type fakePath struct {
	start, end uint32
	edges      int
	stack      int
}

func fakeDetector() *Detector[fakePath] {
	return NewDetector(
		func(p fakePath) PathKey {
			return PathKey{
				StartNode: arena.HandleFromIndex[graph.Node](p.start),
				EndNode:   arena.HandleFromIndex[graph.Node](p.end),
			}
		},
		func(a, b fakePath) bool {
			return a.edges < b.edges && a.stack <= b.stack
		},
	)
}

func cmpFake(candidate fakePath) func(fakePath) int {
	return func(stored fakePath) int {
		if c := stored.edges - candidate.edges; c != 0 {
			return c
		}
		return stored.stack - candidate.stack
	}
}

func TestShouldProcess_RejectsExactDuplicates(t *testing.T) {
	d := fakeDetector()
	p := fakePath{start: 1, end: 2, edges: 3, stack: 1}

	assert.True(t, d.ShouldProcess(p, cmpFake(p)))
	assert.False(t, d.ShouldProcess(p, cmpFake(p)))
}

func TestShouldProcess_DistinctEndpointsAreIndependent(t *testing.T) {
	d := fakeDetector()
	p1 := fakePath{start: 1, end: 2, edges: 3, stack: 1}
	p2 := fakePath{start: 1, end: 3, edges: 3, stack: 1}

	assert.True(t, d.ShouldProcess(p1, cmpFake(p1)))
	assert.True(t, d.ShouldProcess(p2, cmpFake(p2)))
}

func TestShouldProcess_CutsOffGrowingFamilies(t *testing.T) {
	d := fakeDetector()

	// An unbounded family of paths with the same endpoints, each longer
	// than the last, as a cyclic graph would generate.
	accepted := 0
	for i := 1; i <= MaxSimilarPathCount+10; i++ {
		p := fakePath{start: 1, end: 2, edges: i, stack: i}
		if d.ShouldProcess(p, cmpFake(p)) {
			accepted++
		}
	}
	assert.Equal(t, MaxSimilarPathCount+1, accepted)
}
