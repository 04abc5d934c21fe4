// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

import (
	"cmp"
	"iter"

	"github.com/benbjohnson/immutable"
)

// Set is a sorted set that starts out as an inline [ArraySet] and promotes
// itself to a heap-allocated sorted tree the first time an insert runs
// into the inline capacity. Promotion is one-way and transparent.
type Set[T any] struct {
	cmp      func(T, T) int
	capacity int

	// inline is the initial representation. Nil once promoted.
	inline *ArraySet[T]

	// heap is the promoted representation.
	heap *immutable.SortedMap[T, struct{}]
}

// NewSet returns an empty set ordered by the natural order of T that holds
// up to capacity elements inline before promoting. Panics if capacity is
// negative.
func NewSet[T cmp.Ordered](capacity int) *Set[T] {
	return NewSetFunc(capacity, cmp.Compare[T])
}

// NewSetFunc is NewSet with a caller-supplied strict total order over
// elements. Panics if capacity is negative or compare is nil.
func NewSetFunc[T any](capacity int, compare func(T, T) int) *Set[T] {
	return &Set[T]{
		cmp:      compare,
		capacity: capacity,
		inline:   NewArraySetFunc(capacity, compare),
	}
}

// Promoted reports whether the set has moved to its heap representation.
func (s *Set[T]) Promoted() bool { return s.heap != nil }

// Len returns the number of elements in the set.
func (s *Set[T]) Len() int {
	if s.heap != nil {
		return s.heap.Len()
	}
	return s.inline.Len()
}

// IsEmpty reports whether the set holds no elements.
func (s *Set[T]) IsEmpty() bool { return s.Len() == 0 }

// Cap returns the inline capacity the set was constructed with. It is the
// promotion threshold, not a bound.
func (s *Set[T]) Cap() int { return s.capacity }

// Clear removes all elements. A promoted set stays promoted.
func (s *Set[T]) Clear() {
	if s.heap != nil {
		s.heap = immutable.NewSortedMap[T, struct{}](comparerFunc[T](s.cmp))
		return
	}
	s.inline.Clear()
}

// Has reports whether the element is in the set.
func (s *Set[T]) Has(elem T) bool {
	if s.heap != nil {
		_, found := s.heap.Get(elem)
		return found
	}
	return s.inline.Has(elem)
}

// Get returns the stored element that compares equal to elem. With a
// custom compare function this retrieves the set's canonical instance.
func (s *Set[T]) Get(elem T) (stored T, found bool) {
	if s.heap == nil {
		return s.inline.Get(elem)
	}
	for candidate := range s.heapElems(true, elem) {
		if s.cmp(candidate, elem) == 0 {
			return candidate, true
		}
		break
	}
	return stored, false
}

// Insert adds the element, reporting whether it was newly added. Insert
// never fails: when the inline representation is full the set promotes
// and the insert lands in the heap representation.
func (s *Set[T]) Insert(elem T) (added bool) {
	if s.heap == nil {
		added, err := s.inline.TryInsert(elem)
		if err == nil {
			return added
		}
		s.promote()
	}
	if _, found := s.heap.Get(elem); found {
		return false
	}
	s.heap = s.heap.Set(elem, struct{}{})
	return true
}

// promote moves every inline element into a freshly built heap tree and
// drops the inline representation.
func (s *Set[T]) promote() {
	heap := immutable.NewSortedMap[T, struct{}](comparerFunc[T](s.cmp))
	inline := s.inline
	s.inline = nil
	for i := range inline.size {
		heap = heap.Set(inline.slots[i], struct{}{})
	}
	inline.Clear()
	s.heap = heap
}

// Delete removes the element, reporting whether it was present.
func (s *Set[T]) Delete(elem T) bool {
	if s.heap != nil {
		if _, found := s.heap.Get(elem); !found {
			return false
		}
		s.heap = s.heap.Delete(elem)
		return true
	}
	return s.inline.Delete(elem)
}

// InsertSeq inserts every element of the sequence.
func (s *Set[T]) InsertSeq(seq iter.Seq[T]) {
	for elem := range seq {
		s.Insert(elem)
	}
}

// heapElems iterates the promoted tree in ascending order, starting at
// [from] when seek is set. The only place the tree's iterator is consumed.
func (s *Set[T]) heapElems(seek bool, from T) iter.Seq[T] {
	return func(yield func(T) bool) {
		it := s.heap.Iterator()
		if seek {
			it.Seek(from)
		} else {
			it.First()
		}
		for !it.Done() {
			elem, _, _ := it.Next()
			if !yield(elem) {
				return
			}
		}
	}
}

// All returns a sequence of the elements in ascending order. The sequence
// reads the set live: it can be iterated multiple times, but the set must
// not be modified during an iteration.
func (s *Set[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if s.heap == nil {
			s.inline.All()(yield)
			return
		}
		var zero T
		s.heapElems(false, zero)(yield)
	}
}

// LowerBound returns a sequence of the elements equal to or greater than
// elem, in ascending order.
func (s *Set[T]) LowerBound(elem T) iter.Seq[T] {
	return func(yield func(T) bool) {
		if s.heap == nil {
			s.inline.LowerBound(elem)(yield)
			return
		}
		s.heapElems(true, elem)(yield)
	}
}

// Slice returns the elements as a new slice in ascending order.
func (s *Set[T]) Slice() []T {
	out := make([]T, 0, s.Len())
	for elem := range s.All() {
		out = append(out, elem)
	}
	return out
}

// Clone returns an independent copy. A promoted set's tree is shared
// structurally, which is safe: the tree is persistent and the set never
// updates elements in place.
func (s *Set[T]) Clone() *Set[T] {
	c := &Set[T]{cmp: s.cmp, capacity: s.capacity}
	if s.heap == nil {
		c.inline = s.inline.Clone()
		return c
	}
	c.heap = s.heap
	return c
}

// Equal reports whether the two sets hold the same elements under this
// set's ordering, regardless of their representation state.
func (s *Set[T]) Equal(other *Set[T]) bool {
	if s.Len() != other.Len() {
		return false
	}
	next, stop := iter.Pull(other.All())
	defer stop()
	for elem := range s.All() {
		otherElem, ok := next()
		if !ok || s.cmp(elem, otherElem) != 0 {
			return false
		}
	}
	return true
}
