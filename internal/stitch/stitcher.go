package stitch

import (
	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/cycles"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/paths"
)

func newPathDetector() *cycles.Detector[paths.Path] {
	return cycles.NewDetector(
		func(p paths.Path) cycles.PathKey {
			return cycles.PathKey{StartNode: p.StartNode, EndNode: p.EndNode}
		},
		func(a, b paths.Path) bool {
			return a.Edges.Len() < b.Edges.Len() && a.SymbolStack.Len() <= b.SymbolStack.Len()
		},
	)
}

func newPartialPathDetector() *cycles.Detector[partial.PartialPath] {
	return cycles.NewDetector(
		func(p partial.PartialPath) cycles.PathKey {
			return cycles.PathKey{StartNode: p.StartNode, EndNode: p.EndNode}
		},
		func(a, b partial.PartialPath) bool {
			return a.Edges.Len() < b.Edges.Len() &&
				a.SymbolStackPrecondition.Len()+a.SymbolStackPostcondition.Len() <=
					b.SymbolStackPrecondition.Len()+b.SymbolStackPostcondition.Len()
		},
	)
}

// PathStitcher runs the phased stitching algorithm over a frontier of
// concrete paths. Each phase takes the current frontier, asks the database
// for compatible partial paths, appends them, and emits the next frontier.
// Between phases the caller may load additional partial paths into the
// database for the paths reported by PreviousPhasePaths.
type PathStitcher struct {
	candidates    []PartialPathHandle
	queue         []paths.Path
	nextIteration []paths.Path
	detector      *cycles.Detector[paths.Path]
}

// NewPathStitcher seeds a stitcher with the partial paths that start at the
// given nodes, materialized into concrete paths. The database must already
// contain every partial path starting at one of the starting nodes.
func NewPathStitcher(
	g *graph.StackGraph,
	ps *paths.Paths,
	pp *partial.PartialPaths,
	db *Database,
	startingNodes []graph.NodeHandle,
) *PathStitcher {
	s := &PathStitcher{detector: newPathDetector()}
	for _, node := range startingNodes {
		s.candidates = s.candidates[:0]
		db.FindCandidatePartialPathsFromNode(node, &s.candidates)
		for _, candidate := range s.candidates {
			if path, ok := partial.PathFromPartialPath(g, ps, pp, db.Get(candidate)); ok {
				s.nextIteration = append(s.nextIteration, path)
			}
		}
	}
	return s
}

// PreviousPhasePaths returns the possibly incomplete paths encountered
// during the most recent phase. The next phase will try to extend exactly
// these paths.
func (s *PathStitcher) PreviousPhasePaths() []paths.Path {
	return s.nextIteration
}

// IsComplete reports whether the algorithm has run out of paths to extend.
func (s *PathStitcher) IsComplete() bool {
	return len(s.nextIteration) == 0
}

func (s *PathStitcher) stitchPath(
	g *graph.StackGraph,
	ps *paths.Paths,
	pp *partial.PartialPaths,
	db *Database,
	path *paths.Path,
) {
	s.candidates = s.candidates[:0]
	if g.Node(path.EndNode).IsRoot() {
		db.FindCandidatePartialPathsFromRoot(ps, path.SymbolStack, &s.candidates)
	} else {
		db.FindCandidatePartialPathsFromNode(path.EndNode, &s.candidates)
	}

	for _, extension := range s.candidates {
		newPath := *path
		// A failure here just means the candidate is not compatible with
		// this path; drop it and move on.
		if err := partial.AppendPartialPath(g, ps, pp, &newPath, db.Get(extension)); err != nil {
			continue
		}
		if err := newPath.Resolve(g, ps); err != nil {
			continue
		}
		s.nextIteration = append(s.nextIteration, newPath)
	}
}

// ProcessNextPhase runs one phase. Before calling it, the database must
// contain every partial path that could extend the paths of the previous
// phase.
func (s *PathStitcher) ProcessNextPhase(
	g *graph.StackGraph,
	ps *paths.Paths,
	pp *partial.PartialPaths,
	db *Database,
	flag cancel.Flag,
) error {
	s.queue, s.nextIteration = s.nextIteration, s.queue[:0]
	for i := range s.queue {
		path := s.queue[i]
		if err := flag.Check("stitch phase"); err != nil {
			return err
		}
		if !s.detector.ShouldProcess(path, func(stored paths.Path) int {
			return stored.Compare(g, ps, &path)
		}) {
			continue
		}
		s.stitchPath(g, ps, pp, db, &path)
	}
	return nil
}

// FindAllCompletePaths runs phases to completion and returns every complete
// path reachable from the starting nodes. The database must already contain
// every partial path that could be needed; for lazy loading, drive the
// phases yourself.
func FindAllCompletePaths(
	g *graph.StackGraph,
	ps *paths.Paths,
	pp *partial.PartialPaths,
	db *Database,
	startingNodes []graph.NodeHandle,
	flag cancel.Flag,
) ([]paths.Path, error) {
	var result []paths.Path
	stitcher := NewPathStitcher(g, ps, pp, db, startingNodes)
	for !stitcher.IsComplete() {
		if err := flag.Check("find all complete paths"); err != nil {
			return nil, err
		}
		for i := range stitcher.PreviousPhasePaths() {
			path := stitcher.PreviousPhasePaths()[i]
			if path.IsComplete(g) {
				result = append(result, path)
			}
		}
		if err := stitcher.ProcessNextPhase(g, ps, pp, db, flag); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// ForwardPartialPathStitcher runs the same phased algorithm over a frontier
// of partial paths, extending by concatenation. This is the engine the
// storage reader drives: its frontier stays symbolic, so fragments loaded
// lazily from different files compose without ever materializing concrete
// stacks.
type ForwardPartialPathStitcher struct {
	candidates    []PartialPathHandle
	queue         []partial.PartialPath
	nextIteration []partial.PartialPath
	detector      *cycles.Detector[partial.PartialPath]
}

// NewForwardPartialPathStitcher seeds a stitcher with the identity partial
// path at each starting node. The first phase then picks up the database's
// candidates for those nodes, without re-applying any node's stack effect.
func NewForwardPartialPathStitcher(
	g *graph.StackGraph,
	pp *partial.PartialPaths,
	db *Database,
	startingNodes []graph.NodeHandle,
) *ForwardPartialPathStitcher {
	s := &ForwardPartialPathStitcher{detector: newPartialPathDetector()}
	for _, node := range startingNodes {
		s.nextIteration = append(s.nextIteration, partial.IdentityFromNode(node))
	}
	return s
}

// PreviousPhasePartialPaths returns the partial paths encountered during
// the most recent phase.
func (s *ForwardPartialPathStitcher) PreviousPhasePartialPaths() []partial.PartialPath {
	return s.nextIteration
}

// IsComplete reports whether the algorithm has run out of paths to extend.
func (s *ForwardPartialPathStitcher) IsComplete() bool {
	return len(s.nextIteration) == 0
}

func (s *ForwardPartialPathStitcher) stitchPartialPath(
	g *graph.StackGraph,
	pp *partial.PartialPaths,
	db *Database,
	path *partial.PartialPath,
) {
	s.candidates = s.candidates[:0]
	if g.Node(path.EndNode).IsRoot() {
		db.FindCandidatePartialPathsFromRootPartial(pp, path.SymbolStackPostcondition, &s.candidates)
	} else {
		db.FindCandidatePartialPathsFromNode(path.EndNode, &s.candidates)
	}

	for _, extension := range s.candidates {
		newPath := *path
		if err := newPath.Concatenate(g, pp, db.Get(extension)); err != nil {
			continue
		}
		if err := newPath.Resolve(g, pp); err != nil {
			continue
		}
		s.nextIteration = append(s.nextIteration, newPath)
	}
}

// ProcessNextPhase runs one phase. Before calling it, the database must
// contain every partial path that could extend the paths of the previous
// phase.
func (s *ForwardPartialPathStitcher) ProcessNextPhase(
	g *graph.StackGraph,
	pp *partial.PartialPaths,
	db *Database,
	flag cancel.Flag,
) error {
	s.queue, s.nextIteration = s.nextIteration, s.queue[:0]
	for i := range s.queue {
		path := s.queue[i]
		if err := flag.Check("stitch phase"); err != nil {
			return err
		}
		if !s.detector.ShouldProcess(path, func(stored partial.PartialPath) int {
			return stored.Compare(g, pp, &path)
		}) {
			continue
		}
		s.stitchPartialPath(g, pp, db, &path)
	}
	return nil
}

// FindAllCompletePartialPaths runs phases to completion, calling visit for
// every complete partial path reachable from the starting nodes.
func FindAllCompletePartialPaths(
	g *graph.StackGraph,
	pp *partial.PartialPaths,
	db *Database,
	startingNodes []graph.NodeHandle,
	flag cancel.Flag,
	visit func(*graph.StackGraph, *partial.PartialPaths, *partial.PartialPath),
) error {
	stitcher := NewForwardPartialPathStitcher(g, pp, db, startingNodes)
	for !stitcher.IsComplete() {
		if err := flag.Check("find all complete partial paths"); err != nil {
			return err
		}
		if err := stitcher.ProcessNextPhase(g, pp, db, flag); err != nil {
			return err
		}
		previous := stitcher.PreviousPhasePartialPaths()
		for i := range previous {
			if previous[i].IsComplete(g) {
				visit(g, pp, &previous[i])
			}
		}
	}
	return nil
}
