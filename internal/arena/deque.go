package arena

// reversibleCell is a cons cell that can memoize the reversal of the list
// starting at it, so that reversing the same list twice is O(1).
type reversibleCell[T any] struct {
	head     T
	tail     Handle[reversibleCell[T]]
	reversed Handle[reversibleCell[T]]
}

// DequeArena owns the cells of ReversibleList and Deque values.
type DequeArena[T any] struct {
	cells Arena[reversibleCell[T]]
}

// ReversibleList is a structurally shared list that can be reversed in
// place, memoizing the reversal in the arena.
type ReversibleList[T any] struct {
	head Handle[reversibleCell[T]]
}

// EmptyReversibleList returns the empty reversible list.
func EmptyReversibleList[T any]() ReversibleList[T] {
	return ReversibleList[T]{}
}

// IsEmpty reports whether the list has no elements.
func (l ReversibleList[T]) IsEmpty() bool {
	return l.head.IsNil()
}

// PushFront prepends value. The new cell has no memoized reversal.
func (l *ReversibleList[T]) PushFront(a *DequeArena[T], value T) {
	l.head = a.cells.Add(reversibleCell[T]{head: value, tail: l.head})
}

// PopFront removes and returns the first element, reporting whether the list
// was non-empty.
func (l *ReversibleList[T]) PopFront(a *DequeArena[T]) (T, bool) {
	if l.head.IsNil() {
		var zero T
		return zero, false
	}
	cell := a.cells.Get(l.head)
	l.head = cell.tail
	return cell.head, true
}

// ForEach calls f for each element from front to back.
func (l ReversibleList[T]) ForEach(a *DequeArena[T], f func(T)) {
	for h := l.head; !h.IsNil(); {
		cell := a.cells.Get(h)
		f(cell.head)
		h = cell.tail
	}
}

// HaveReversal reports whether the reversal of this list is already
// memoized, i.e. whether Reverse would be O(1).
func (l ReversibleList[T]) HaveReversal(a *DequeArena[T]) bool {
	if l.head.IsNil() {
		return true
	}
	return !a.cells.Get(l.head).reversed.IsNil()
}

// Reverse reverses the list in place. The first reversal of a given list is
// O(n); the result is memoized in both directions, so reversing back is O(1).
func (l *ReversibleList[T]) Reverse(a *DequeArena[T]) {
	if l.head.IsNil() {
		return
	}
	if memo := a.cells.Get(l.head).reversed; !memo.IsNil() {
		l.head = memo
		return
	}
	original := l.head
	var reversed ReversibleList[T]
	for h := original; !h.IsNil(); h = a.cells.Get(h).tail {
		reversed.PushFront(a, a.cells.Get(h).head)
	}
	a.cells.Get(original).reversed = reversed.head
	a.cells.Get(reversed.head).reversed = original
	l.head = reversed.head
}

// Deque supports pushes and pops at both ends, represented as a reversible
// list plus an orientation bit. Operations at the "wrong" end reorient the
// deque, which mutates arena state (memoizing the reversal); comparisons and
// iteration canonicalize the orientation first, so they produce the same
// answer regardless of how the deque was built.
type Deque[T any] struct {
	list      ReversibleList[T]
	backwards bool
}

// EmptyDeque returns the empty deque.
func EmptyDeque[T any]() Deque[T] {
	return Deque[T]{}
}

// IsEmpty reports whether the deque has no elements.
func (d Deque[T]) IsEmpty() bool {
	return d.list.IsEmpty()
}

// HaveReversal reports whether the deque can be iterated in both directions
// without mutating the arena.
func (d Deque[T]) HaveReversal(a *DequeArena[T]) bool {
	return d.list.HaveReversal(a)
}

func (d *Deque[T]) ensureForwards(a *DequeArena[T]) {
	if d.backwards {
		d.list.Reverse(a)
		d.backwards = false
	}
}

func (d *Deque[T]) ensureBackwards(a *DequeArena[T]) {
	if !d.backwards {
		d.list.Reverse(a)
		d.backwards = true
	}
}

// PushFront prepends value to the deque.
func (d *Deque[T]) PushFront(a *DequeArena[T], value T) {
	d.ensureForwards(a)
	d.list.PushFront(a, value)
}

// PushBack appends value to the deque.
func (d *Deque[T]) PushBack(a *DequeArena[T], value T) {
	d.ensureBackwards(a)
	d.list.PushFront(a, value)
}

// PopFront removes and returns the first element.
func (d *Deque[T]) PopFront(a *DequeArena[T]) (T, bool) {
	d.ensureForwards(a)
	return d.list.PopFront(a)
}

// PopBack removes and returns the last element.
func (d *Deque[T]) PopBack(a *DequeArena[T]) (T, bool) {
	d.ensureBackwards(a)
	return d.list.PopFront(a)
}

// ForEach calls f for each element from front to back, reorienting the
// deque forwards if needed.
func (d *Deque[T]) ForEach(a *DequeArena[T], f func(T)) {
	d.ensureForwards(a)
	d.list.ForEach(a, f)
}

// ForEachUnordered calls f for each element in whatever order the deque is
// currently oriented, without mutating arena state.
func (d Deque[T]) ForEachUnordered(a *DequeArena[T], f func(T)) {
	d.list.ForEach(a, f)
}

// EqualsWith reports element-wise equality under eq, independent of how
// either deque is oriented.
func (d Deque[T]) EqualsWith(a *DequeArena[T], other Deque[T], eq func(a, b T) bool) bool {
	x, y := d, other
	x.ensureForwards(a)
	y.ensureForwards(a)
	return equalsRevCells(a, x.list.head, y.list.head, eq)
}

// CompareWith lexicographically compares two deques under cmp, independent
// of orientation.
func (d Deque[T]) CompareWith(a *DequeArena[T], other Deque[T], cmp func(a, b T) int) int {
	x, y := d, other
	x.ensureForwards(a)
	y.ensureForwards(a)
	return compareRevCells(a, x.list.head, y.list.head, cmp)
}

// equalsRevCells and compareRevCells walk reversible cells the same way the
// List methods walk plain cells.
func equalsRevCells[T any](a *DequeArena[T], x, y Handle[reversibleCell[T]], eq func(a, b T) bool) bool {
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

func compareRevCells[T any](a *DequeArena[T], x, y Handle[reversibleCell[T]], cmp func(a, b T) int) int {
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
