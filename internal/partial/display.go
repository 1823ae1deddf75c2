package partial

import (
	"fmt"
	"strings"

	"github.com/agentic-research/tangle/internal/graph"
)

// Display renders the partial path for logs and test assertions:
//
//	<pre> (scopePre) [start] -> [end] <post> (scopePost)
//
// Symbol stack variables render as %N, scope stack variables as $N.
func (p *PartialPath) Display(g *graph.StackGraph, pp *PartialPaths) string {
	return fmt.Sprintf("%s %s %s -> %s %s %s",
		p.SymbolStackPrecondition.Display(g, pp),
		p.ScopeStackPrecondition.Display(g, pp),
		g.NodeString(p.StartNode),
		g.NodeString(p.EndNode),
		p.SymbolStackPostcondition.Display(g, pp),
		p.ScopeStackPostcondition.Display(g, pp),
	)
}

// Display renders the stack as "<sym.sym,%N>"; symbols are concatenated, so
// a dotted name reads the way it was written.
func (s PartialSymbolStack) Display(g *graph.StackGraph, pp *PartialPaths) string {
	var b strings.Builder
	b.WriteByte('<')
	s.ForEach(pp, func(symbol PartialScopedSymbol) {
		b.WriteString(symbol.display(g, pp))
	})
	if s.variable != 0 {
		if s.length > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%%%d", s.variable)
	}
	b.WriteByte('>')
	return b.String()
}

func (s PartialScopedSymbol) display(g *graph.StackGraph, pp *PartialPaths) string {
	if !s.HasScopes {
		return g.SymbolText(s.Symbol)
	}
	return fmt.Sprintf("%s/%s", g.SymbolText(s.Symbol), s.Scopes.Display(g, pp))
}

// Display renders the stack as "([file(id) ...],$N)".
func (s PartialScopeStack) Display(g *graph.StackGraph, pp *PartialPaths) string {
	var parts []string
	s.ForEach(pp, func(scope graph.NodeHandle) {
		parts = append(parts, g.NodeString(scope))
	})
	if s.variable != 0 {
		parts = append(parts, fmt.Sprintf("$%d", s.variable))
	}
	return "(" + strings.Join(parts, ",") + ")"
}
