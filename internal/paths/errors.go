package paths

// ResolutionError enumerates the ways a candidate path extension can fail.
// These are not fatal: during search they cause the extension to be dropped
// silently; they are how the search narrows. Only IncorrectSourceNode
// indicates a caller bug.
type ResolutionError uint8

const (
	// EmptyScopeStack: a jump-to-scope node was reached with no scopes to
	// jump to.
	EmptyScopeStack ResolutionError = iota + 1
	// EmptySymbolStack: a pop node was reached with nothing to pop.
	EmptySymbolStack
	// IncompatibleScopeStackVariables: multiple references to a scope stack
	// variable can't unify on a single scope stack.
	IncompatibleScopeStackVariables
	// IncompatibleSymbolStackVariables: multiple references to a symbol
	// stack variable can't unify on a single symbol stack.
	IncompatibleSymbolStackVariables
	// IncorrectFile: a partial path tried to leave its file.
	IncorrectFile
	// IncorrectPoppedSymbol: the top of the symbol stack does not match the
	// pop node's symbol.
	IncorrectPoppedSymbol
	// IncorrectSourceNode: an edge was appended whose source is not the
	// path's current end node. This is a bug in the caller, not a normal
	// search outcome.
	IncorrectSourceNode
	// MissingAttachedScopeList: a pop-scoped-symbol node found a symbol
	// without an attached scope list.
	MissingAttachedScopeList
	// ScopeStackUnsatisfied: the scope stack does not satisfy a partial
	// path's precondition.
	ScopeStackUnsatisfied
	// SymbolStackUnsatisfied: the symbol stack does not satisfy a partial
	// path's precondition.
	SymbolStackUnsatisfied
	// UnboundScopeStackVariable: a postcondition references a scope stack
	// variable the precondition never bound.
	UnboundScopeStackVariable
	// UnboundSymbolStackVariable: a postcondition references a symbol stack
	// variable the precondition never bound.
	UnboundSymbolStackVariable
	// UnexpectedAttachedScopeList: a pop-symbol node found a symbol that
	// carries an attached scope list.
	UnexpectedAttachedScopeList
	// UnknownAttachedScope: a push-scoped-symbol node names an exported
	// scope that doesn't exist.
	UnknownAttachedScope
)

func (e ResolutionError) Error() string {
	switch e {
	case EmptyScopeStack:
		return "empty scope stack"
	case EmptySymbolStack:
		return "empty symbol stack"
	case IncompatibleScopeStackVariables:
		return "incompatible scope stack variables"
	case IncompatibleSymbolStackVariables:
		return "incompatible symbol stack variables"
	case IncorrectFile:
		return "incorrect file"
	case IncorrectPoppedSymbol:
		return "incorrect popped symbol"
	case IncorrectSourceNode:
		return "incorrect source node"
	case MissingAttachedScopeList:
		return "missing attached scope list"
	case ScopeStackUnsatisfied:
		return "scope stack unsatisfied"
	case SymbolStackUnsatisfied:
		return "symbol stack unsatisfied"
	case UnboundScopeStackVariable:
		return "unbound scope stack variable"
	case UnboundSymbolStackVariable:
		return "unbound symbol stack variable"
	case UnexpectedAttachedScopeList:
		return "unexpected attached scope list"
	case UnknownAttachedScope:
		return "unknown attached scope"
	default:
		return "path resolution error"
	}
}
