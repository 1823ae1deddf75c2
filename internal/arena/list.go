package arena

// listCell is one cons cell of a structurally shared list.
type listCell[T any] struct {
	head T
	tail Handle[listCell[T]]
}

// ListCellHandle names the handle of a list cell, so that callers can use
// cell handles as map keys (e.g. to hash-cons lists).
type ListCellHandle[T any] Handle[listCell[T]]

// ListArena owns the cells of List values. Lists from different arenas must
// never be mixed.
type ListArena[T any] struct {
	cells Arena[listCell[T]]
}

// List is a singly linked list with shared tails. The zero value is the
// empty list. Lists are cheap to copy; copies share structure.
type List[T any] struct {
	head Handle[listCell[T]]
}

// EmptyList returns the empty list.
func EmptyList[T any]() List[T] {
	return List[T]{}
}

// ListFromHandle reconstructs a list from a cell handle previously obtained
// via Handle.
func ListFromHandle[T any](handle ListCellHandle[T]) List[T] {
	return List[T]{head: Handle[listCell[T]](handle)}
}

// IsEmpty reports whether the list has no elements.
func (l List[T]) IsEmpty() bool {
	return l.head.IsNil()
}

// Handle returns the handle of the list's first cell. Two lists with the
// same handle are identical.
func (l List[T]) Handle() ListCellHandle[T] {
	return ListCellHandle[T](l.head)
}

// PushFront prepends value to the list.
func (l *List[T]) PushFront(a *ListArena[T], value T) {
	l.head = a.cells.Add(listCell[T]{head: value, tail: l.head})
}

// PopFront removes and returns the first element, reporting whether the list
// was non-empty.
func (l *List[T]) PopFront(a *ListArena[T]) (T, bool) {
	if l.head.IsNil() {
		var zero T
		return zero, false
	}
	cell := a.cells.Get(l.head)
	l.head = cell.tail
	return cell.head, true
}

// Front returns the first element without removing it.
func (l List[T]) Front(a *ListArena[T]) (T, bool) {
	if l.head.IsNil() {
		var zero T
		return zero, false
	}
	return a.cells.Get(l.head).head, true
}

// ForEach calls f for each element from front to back.
func (l List[T]) ForEach(a *ListArena[T], f func(T)) {
	for h := l.head; !h.IsNil(); {
		cell := a.cells.Get(h)
		f(cell.head)
		h = cell.tail
	}
}

// Len walks the list and returns its length. Types that need O(1) length
// cache it alongside the list.
func (l List[T]) Len(a *ListArena[T]) int {
	n := 0
	for h := l.head; !h.IsNil(); h = a.cells.Get(h).tail {
		n++
	}
	return n
}

// EqualsWith reports whether two lists are structurally equal under eq.
// Shared tails short-circuit the walk.
func (l List[T]) EqualsWith(a *ListArena[T], other List[T], eq func(a, b T) bool) bool {
	x, y := l.head, other.head
	for {
		if x == y {
			return true
		}
		if x.IsNil() || y.IsNil() {
			return false
		}
		cx, cy := a.cells.Get(x), a.cells.Get(y)
		if !eq(cx.head, cy.head) {
			return false
		}
		x, y = cx.tail, cy.tail
	}
}

// CompareWith lexicographically compares two lists under cmp, returning a
// negative, zero, or positive result.
func (l List[T]) CompareWith(a *ListArena[T], other List[T], cmp func(a, b T) int) int {
	x, y := l.head, other.head
	for {
		if x == y {
			return 0
		}
		if x.IsNil() {
			return -1
		}
		if y.IsNil() {
			return 1
		}
		cx, cy := a.cells.Get(x), a.cells.Get(y)
		if c := cmp(cx.head, cy.head); c != 0 {
			return c
		}
		x, y = cx.tail, cy.tail
	}
}
