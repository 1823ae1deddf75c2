package partial

import (
	"github.com/agentic-research/tangle/internal/graph"
	"github.com/agentic-research/tangle/internal/paths"
)

// varSlot and varBindings implement the dense integer-keyed variable maps
// used during unification. Binding lookups are O(1).
type varSlot[T any] struct {
	bound bool
	value T
}

type varBindings[T any] struct {
	slots []varSlot[T]
}

func (b *varBindings[T]) get(v uint32) (T, bool) {
	if v == 0 || int(v) > len(b.slots) || !b.slots[v-1].bound {
		var zero T
		return zero, false
	}
	return b.slots[v-1].value, true
}

func (b *varBindings[T]) add(v uint32, value T, equals func(existing, value T) bool, conflict error) error {
	for len(b.slots) < int(v) {
		b.slots = append(b.slots, varSlot[T]{})
	}
	slot := &b.slots[v-1]
	if slot.bound {
		if !equals(slot.value, value) {
			return conflict
		}
		return nil
	}
	slot.bound = true
	slot.value = value
	return nil
}

// PartialSymbolStackBindings maps symbol stack variables to partial symbol
// stacks during partial-to-partial unification.
type PartialSymbolStackBindings struct {
	vars varBindings[PartialSymbolStack]
}

// Get looks up the binding for v.
func (b *PartialSymbolStackBindings) Get(v SymbolStackVariable) (PartialSymbolStack, bool) {
	return b.vars.get(uint32(v))
}

// Add binds v to value. Rebinding v to an unequal stack fails with
// IncompatibleSymbolStackVariables.
func (b *PartialSymbolStackBindings) Add(pp *PartialPaths, v SymbolStackVariable, value PartialSymbolStack) error {
	return b.vars.add(uint32(v), value, func(existing, value PartialSymbolStack) bool {
		return existing.Equals(pp, value)
	}, paths.IncompatibleSymbolStackVariables)
}

// PartialScopeStackBindings maps scope stack variables to partial scope
// stacks during partial-to-partial unification.
type PartialScopeStackBindings struct {
	vars varBindings[PartialScopeStack]
}

// Get looks up the binding for v.
func (b *PartialScopeStackBindings) Get(v ScopeStackVariable) (PartialScopeStack, bool) {
	return b.vars.get(uint32(v))
}

// Add binds v to value. Rebinding v to an unequal stack fails with
// IncompatibleScopeStackVariables.
func (b *PartialScopeStackBindings) Add(pp *PartialPaths, v ScopeStackVariable, value PartialScopeStack) error {
	return b.vars.add(uint32(v), value, func(existing, value PartialScopeStack) bool {
		return existing.Equals(pp, value)
	}, paths.IncompatibleScopeStackVariables)
}

// SymbolStackBindings maps symbol stack variables to concrete symbol stacks
// when a partial path is applied to a concrete path.
type SymbolStackBindings struct {
	vars varBindings[paths.SymbolStack]
}

// Get looks up the binding for v.
func (b *SymbolStackBindings) Get(v SymbolStackVariable) (paths.SymbolStack, bool) {
	return b.vars.get(uint32(v))
}

// Add binds v to value.
func (b *SymbolStackBindings) Add(ps *paths.Paths, v SymbolStackVariable, value paths.SymbolStack) error {
	return b.vars.add(uint32(v), value, func(existing, value paths.SymbolStack) bool {
		return existing.Equals(ps, value)
	}, paths.IncompatibleSymbolStackVariables)
}

// ScopeStackBindings maps scope stack variables to concrete scope stacks
// when a partial path is applied to a concrete path.
type ScopeStackBindings struct {
	vars varBindings[paths.ScopeStack]
}

// Get looks up the binding for v.
func (b *ScopeStackBindings) Get(v ScopeStackVariable) (paths.ScopeStack, bool) {
	return b.vars.get(uint32(v))
}

// Add binds v to value.
func (b *ScopeStackBindings) Add(ps *paths.Paths, v ScopeStackVariable, value paths.ScopeStack) error {
	return b.vars.add(uint32(v), value, func(existing, value paths.ScopeStack) bool {
		return existing.Equals(ps, value)
	}, paths.IncompatibleScopeStackVariables)
}

// UnifyPartialScopeStacks unifies two partial scope stacks, accumulating
// variable bindings. Mismatched concrete scopes fail with
// ScopeStackUnsatisfied.
func UnifyPartialScopeStacks(pp *PartialPaths, lhs, rhs PartialScopeStack, bindings *PartialScopeStackBindings) error {
	a, b := lhs, rhs
	for a.Len() > 0 && b.Len() > 0 {
		x, _ := a.PopFront(pp)
		y, _ := b.PopFront(pp)
		if x != y {
			return paths.ScopeStackUnsatisfied
		}
	}
	switch {
	case a.Len() == 0 && b.Len() == 0:
		switch {
		case a.variable != 0 && b.variable != 0:
			if a.variable == b.variable {
				return nil
			}
			return bindings.Add(pp, a.variable, ScopeStackFromVariable(b.variable))
		case a.variable != 0:
			return bindings.Add(pp, a.variable, EmptyPartialScopeStack())
		case b.variable != 0:
			return bindings.Add(pp, b.variable, EmptyPartialScopeStack())
		default:
			return nil
		}
	case a.Len() == 0:
		// The left side ran out; its variable absorbs the rest of the right.
		if a.variable == 0 {
			return paths.ScopeStackUnsatisfied
		}
		return bindings.Add(pp, a.variable, b)
	default:
		if b.variable == 0 {
			return paths.ScopeStackUnsatisfied
		}
		return bindings.Add(pp, b.variable, a)
	}
}

// UnifyPartialSymbolStacks unifies two partial symbol stacks, accumulating
// symbol and scope variable bindings. Mismatched symbols fail with
// SymbolStackUnsatisfied.
func UnifyPartialSymbolStacks(
	pp *PartialPaths,
	lhs, rhs PartialSymbolStack,
	symbolBindings *PartialSymbolStackBindings,
	scopeBindings *PartialScopeStackBindings,
) error {
	a, b := lhs, rhs
	for a.Len() > 0 && b.Len() > 0 {
		x, _ := a.PopFront(pp)
		y, _ := b.PopFront(pp)
		if x.Symbol != y.Symbol || x.HasScopes != y.HasScopes {
			return paths.SymbolStackUnsatisfied
		}
		if x.HasScopes {
			if err := UnifyPartialScopeStacks(pp, x.Scopes, y.Scopes, scopeBindings); err != nil {
				return err
			}
		}
	}
	switch {
	case a.Len() == 0 && b.Len() == 0:
		switch {
		case a.variable != 0 && b.variable != 0:
			if a.variable == b.variable {
				return nil
			}
			return symbolBindings.Add(pp, a.variable, SymbolStackFromVariable(b.variable))
		case a.variable != 0:
			return symbolBindings.Add(pp, a.variable, EmptyPartialSymbolStack())
		case b.variable != 0:
			return symbolBindings.Add(pp, b.variable, EmptyPartialSymbolStack())
		default:
			return nil
		}
	case a.Len() == 0:
		if a.variable == 0 {
			return paths.SymbolStackUnsatisfied
		}
		return symbolBindings.Add(pp, a.variable, b)
	default:
		if b.variable == 0 {
			return paths.SymbolStackUnsatisfied
		}
		return symbolBindings.Add(pp, b.variable, a)
	}
}

// ApplyPartialBindings rewrites the stack through partial bindings: bound
// variables are replaced by what they were bound to; unbound variables stay.
func (s PartialScopeStack) ApplyPartialBindings(pp *PartialPaths, bindings *PartialScopeStackBindings) PartialScopeStack {
	result := EmptyPartialScopeStack()
	s.ForEach(pp, func(scope hNode) {
		result.PushBack(pp, scope)
	})
	if s.variable != 0 {
		if binding, ok := bindings.Get(s.variable); ok {
			binding.ForEach(pp, func(scope hNode) {
				result.PushBack(pp, scope)
			})
			result.variable = binding.variable
		} else {
			result.variable = s.variable
		}
	}
	return result
}

// ApplyPartialBindings rewrites the stack through partial bindings,
// including the attached scope stacks of its symbols.
func (s PartialSymbolStack) ApplyPartialBindings(
	pp *PartialPaths,
	symbolBindings *PartialSymbolStackBindings,
	scopeBindings *PartialScopeStackBindings,
) PartialSymbolStack {
	result := EmptyPartialSymbolStack()
	appendSymbol := func(symbol PartialScopedSymbol) {
		if symbol.HasScopes {
			symbol.Scopes = symbol.Scopes.ApplyPartialBindings(pp, scopeBindings)
		}
		result.PushBack(pp, symbol)
	}
	s.ForEach(pp, appendSymbol)
	if s.variable != 0 {
		if binding, ok := symbolBindings.Get(s.variable); ok {
			binding.ForEach(pp, appendSymbol)
			result.variable = binding.variable
		} else {
			result.variable = s.variable
		}
	}
	return result
}

// MatchAgainstScopeStack matches this partial stack (a precondition) against
// a concrete scope stack, binding its variable to whatever the concrete
// stack has left over.
func (s PartialScopeStack) MatchAgainstScopeStack(
	ps *paths.Paths,
	pp *PartialPaths,
	concrete paths.ScopeStack,
	bindings *ScopeStackBindings,
) error {
	partial := s
	rest := concrete
	for partial.Len() > 0 {
		want, _ := partial.PopFront(pp)
		got, ok := rest.PopFront(ps)
		if !ok || want != got {
			return paths.ScopeStackUnsatisfied
		}
	}
	if partial.variable != 0 {
		return bindings.Add(ps, partial.variable, rest)
	}
	if !rest.IsEmpty() {
		return paths.ScopeStackUnsatisfied
	}
	return nil
}

// MatchAgainstSymbolStack matches this partial stack (a precondition)
// against a concrete symbol stack, binding variables to the concrete
// remainders.
func (s PartialSymbolStack) MatchAgainstSymbolStack(
	ps *paths.Paths,
	pp *PartialPaths,
	concrete paths.SymbolStack,
	symbolBindings *SymbolStackBindings,
	scopeBindings *ScopeStackBindings,
) error {
	partial := s
	rest := concrete
	for partial.Len() > 0 {
		want, _ := partial.PopFront(pp)
		got, ok := rest.PopFront(ps)
		if !ok {
			return paths.SymbolStackUnsatisfied
		}
		if want.Symbol != got.Symbol || want.HasScopes != got.HasScopes {
			return paths.SymbolStackUnsatisfied
		}
		if want.HasScopes {
			if err := want.Scopes.MatchAgainstScopeStack(ps, pp, got.Scopes, scopeBindings); err != nil {
				return err
			}
		}
	}
	if partial.variable != 0 {
		return symbolBindings.Add(ps, partial.variable, rest)
	}
	if !rest.IsEmpty() {
		return paths.SymbolStackUnsatisfied
	}
	return nil
}

// ApplyBindings concretizes the stack: concrete scopes carry over and the
// variable is replaced by its concrete binding. An unbound variable fails
// with UnboundScopeStackVariable.
func (s PartialScopeStack) ApplyBindings(
	ps *paths.Paths,
	pp *PartialPaths,
	bindings *ScopeStackBindings,
) (paths.ScopeStack, error) {
	tail := paths.NewEmptyScopeStack()
	if s.variable != 0 {
		bound, ok := bindings.Get(s.variable)
		if !ok {
			return paths.ScopeStack{}, paths.UnboundScopeStackVariable
		}
		tail = bound
	}
	var prefix []hNode
	s.ForEach(pp, func(scope hNode) { prefix = append(prefix, scope) })
	result := tail
	for i := len(prefix) - 1; i >= 0; i-- {
		result.PushFront(ps, prefix[i])
	}
	return result, nil
}

// ApplyBindings concretizes the stack, including the attached scope stacks
// of its symbols. An unbound variable fails with UnboundSymbolStackVariable.
func (s PartialSymbolStack) ApplyBindings(
	ps *paths.Paths,
	pp *PartialPaths,
	symbolBindings *SymbolStackBindings,
	scopeBindings *ScopeStackBindings,
) (paths.SymbolStack, error) {
	tail := paths.NewEmptySymbolStack()
	if s.variable != 0 {
		bound, ok := symbolBindings.Get(s.variable)
		if !ok {
			return paths.SymbolStack{}, paths.UnboundSymbolStackVariable
		}
		tail = bound
	}
	var prefix []PartialScopedSymbol
	var convertErr error
	s.ForEach(pp, func(symbol PartialScopedSymbol) { prefix = append(prefix, symbol) })
	result := tail
	for i := len(prefix) - 1; i >= 0; i-- {
		symbol := prefix[i]
		concrete := paths.ScopedSymbol{Symbol: symbol.Symbol}
		if symbol.HasScopes {
			scopes, err := symbol.Scopes.ApplyBindings(ps, pp, scopeBindings)
			if err != nil {
				convertErr = err
				break
			}
			concrete.HasScopes = true
			concrete.Scopes = scopes
		}
		result.PushFront(ps, concrete)
	}
	if convertErr != nil {
		return paths.SymbolStack{}, convertErr
	}
	return result, nil
}

// hNode abbreviates the node handle type used throughout this package.
type hNode = graph.NodeHandle
