package paths

import (
	"fmt"
	"strings"

	"github.com/agentic-research/tangle/internal/graph"
)

// Display renders the path for logs and test assertions:
//
//	[start] -> [end] <symbols> (scopes)
//
// The stack suffix is omitted once both stacks are empty, which is how a
// complete path reads.
func (p *Path) Display(g *graph.StackGraph, ps *Paths) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s", g.NodeString(p.StartNode), g.NodeString(p.EndNode))
	if !p.SymbolStack.IsEmpty() || !p.ScopeStack.IsEmpty() {
		fmt.Fprintf(&b, " %s %s", p.SymbolStack.Display(g, ps), p.ScopeStack.Display(g, ps))
	}
	return b.String()
}

// Display renders the stack as "<sym.sym>"; symbols are concatenated, so a
// dotted name reads the way it was written.
func (s SymbolStack) Display(g *graph.StackGraph, ps *Paths) string {
	var b strings.Builder
	b.WriteByte('<')
	s.ForEach(ps, func(symbol ScopedSymbol) {
		if !symbol.HasScopes {
			b.WriteString(g.SymbolText(symbol.Symbol))
			return
		}
		fmt.Fprintf(&b, "%s/%s", g.SymbolText(symbol.Symbol), symbol.Scopes.Display(g, ps))
	})
	b.WriteByte('>')
	return b.String()
}

// Display renders the stack as "([file(id) ...])".
func (s ScopeStack) Display(g *graph.StackGraph, ps *Paths) string {
	var parts []string
	s.ForEach(ps, func(scope graph.NodeHandle) {
		parts = append(parts, g.NodeString(scope))
	})
	return "(" + strings.Join(parts, ",") + ")"
}
