package storage

import (
	"errors"
	"fmt"

	"github.com/agentic-research/tangle/internal/arena"
	"github.com/agentic-research/tangle/internal/cancel"
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/partial"
	"github.com/agentic-research/tangle/internal/position"
)

// ErrNoReferencesAtPosition is returned when a query position contains no
// reference node.
var ErrNoReferencesAtPosition = errors.New("no references at location")

// Definition is one resolved definition with its provenance.
type Definition struct {
	File string
	Span position.Span
}

// Resolution pairs one reference with the definitions it resolves to after
// shadowing.
type Resolution struct {
	ReferenceFile string
	ReferenceSpan position.Span
	Definitions   []Definition
}

// Querier answers definition queries against a store, loading artifacts
// lazily as the stitching search reaches them.
type Querier struct {
	reader *Reader
}

// NewQuerier returns a querier over store.
func NewQuerier(store *Store) *Querier {
	return &Querier{reader: NewReader(store)}
}

// Reader exposes the underlying lazy reader.
func (q *Querier) Reader() *Reader {
	return q.reader
}

// Definitions resolves every reference at the given position (zero-indexed
// line, UTF-8 column) to its definitions: the file's graph is loaded, the
// references at the position seed the stitcher, artifacts are loaded lazily
// between phases, and completed paths are filtered by shadowing before
// being reported.
func (q *Querier) Definitions(file string, line, column uint32, flag cancel.Flag) ([]Resolution, error) {
	r := q.reader
	if err := r.LoadGraphForFile(file); err != nil {
		return nil, err
	}
	fileHandle, ok := r.graph.GetFile(file)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotIndexed, file)
	}

	var references []graph.NodeHandle
	r.graph.NodesForFile(fileHandle, func(node arena.Handle[graph.Node]) {
		if !r.graph.Node(node).IsReference {
			return
		}
		info := r.graph.SourceInfo(node)
		if info == nil || info.Span.IsEmpty() {
			return
		}
		if info.Span.Contains(line, column) {
			references = append(references, node)
		}
	})
	if len(references) == 0 {
		return nil, fmt.Errorf("%w: %s:%d:%d", ErrNoReferencesAtPosition, file, line, column)
	}

	var complete []partial.PartialPath
	err := r.FindAllCompletePartialPaths(references, flag, func(_ *graph.StackGraph, _ *partial.PartialPaths, p *partial.PartialPath) {
		complete = append(complete, *p)
	})
	if err != nil {
		return nil, err
	}
	if err := r.partials.RemoveShadowedPaths(&complete, flag); err != nil {
		return nil, err
	}

	byReference := make(map[graph.NodeHandle]*Resolution)
	var results []Resolution
	order := make([]graph.NodeHandle, 0, len(references))
	for _, path := range complete {
		res, ok := byReference[path.StartNode]
		if !ok {
			res = &Resolution{
				ReferenceFile: file,
				ReferenceSpan: q.spanOf(path.StartNode),
			}
			byReference[path.StartNode] = res
			order = append(order, path.StartNode)
		}
		end := r.graph.Node(path.EndNode)
		def := Definition{Span: q.spanOf(path.EndNode)}
		if !end.File().IsNil() {
			def.File = r.graph.File(end.File()).Name()
		}
		res.Definitions = append(res.Definitions, def)
	}
	for _, ref := range order {
		results = append(results, *byReference[ref])
	}
	return results, nil
}

func (q *Querier) spanOf(node graph.NodeHandle) position.Span {
	if info := q.reader.graph.SourceInfo(node); info != nil {
		return info.Span
	}
	return position.Span{}
}
