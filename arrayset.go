// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

import (
	"cmp"
	"iter"
	"slices"
)

// ArraySet is a sorted set holding at most Cap() elements inline in a
// single backing array allocated at construction. Elements are kept in
// strictly ascending order and never duplicated.
type ArraySet[T any] struct {
	cmp func(T, T) int

	// slots is the backing array; its length is the fixed capacity.
	slots []T

	// size is the length of the occupied, sorted prefix of [slots].
	size int
}

// NewArraySet returns an empty set with the given fixed capacity, ordered
// by the natural order of T. Panics if capacity is negative.
func NewArraySet[T cmp.Ordered](capacity int) *ArraySet[T] {
	return NewArraySetFunc(capacity, cmp.Compare[T])
}

// NewArraySetFunc returns an empty set with the given fixed capacity,
// ordered by [compare], which must define a strict total order over
// elements. Panics if capacity is negative or compare is nil.
func NewArraySetFunc[T any](capacity int, compare func(T, T) int) *ArraySet[T] {
	if capacity < 0 {
		panic("tinymap: negative capacity")
	}
	if compare == nil {
		panic("tinymap: nil compare function")
	}
	return &ArraySet[T]{
		cmp:   compare,
		slots: make([]T, capacity),
	}
}

func (s *ArraySet[T]) find(elem T) (index int, found bool) {
	return slices.BinarySearchFunc(s.slots[:s.size], elem, s.cmp)
}

// Len returns the number of elements in the set.
func (s *ArraySet[T]) Len() int { return s.size }

// IsEmpty reports whether the set holds no elements.
func (s *ArraySet[T]) IsEmpty() bool { return s.size == 0 }

// Cap returns the fixed capacity the set was constructed with.
func (s *ArraySet[T]) Cap() int { return len(s.slots) }

// Clear removes all elements. The backing array is retained.
func (s *ArraySet[T]) Clear() {
	clear(s.slots[:s.size])
	s.size = 0
}

// Has reports whether the element is in the set.
func (s *ArraySet[T]) Has(elem T) bool {
	_, found := s.find(elem)
	return found
}

// Get returns the stored element that compares equal to elem. With a
// custom compare function this retrieves the set's canonical instance.
func (s *ArraySet[T]) Get(elem T) (stored T, found bool) {
	i, ok := s.find(elem)
	if !ok {
		return stored, false
	}
	return s.slots[i], true
}

// TryInsert adds the element, reporting whether it was newly added (false
// means it was already present and the set is unchanged). A full set
// rejects the insert with an error wrapping [ErrCapacityExceeded]; as with
// [ArrayMap.TryInsert] the capacity check precedes the lookup, so a full
// set rejects even elements it already contains.
func (s *ArraySet[T]) TryInsert(elem T) (added bool, err error) {
	if s.size == len(s.slots) {
		return false, capacityError(len(s.slots))
	}
	i, found := s.find(elem)
	if found {
		return false, nil
	}
	copy(s.slots[i+1:s.size+1], s.slots[i:s.size])
	s.slots[i] = elem
	s.size++
	return true, nil
}

// Insert is TryInsert with capacity exhaustion treated as a contract
// violation: it panics with the capacity error.
func (s *ArraySet[T]) Insert(elem T) (added bool) {
	added, err := s.TryInsert(elem)
	if err != nil {
		panic(err)
	}
	return added
}

// Delete removes the element, reporting whether it was present. The slot
// vacated at the end of the prefix is zeroed.
func (s *ArraySet[T]) Delete(elem T) bool {
	i, found := s.find(elem)
	if !found {
		return false
	}
	copy(s.slots[i:s.size-1], s.slots[i+1:s.size])
	s.size--
	var zero T
	s.slots[s.size] = zero
	return true
}

// InsertSeq inserts every element of the sequence. It stops at the first
// capacity rejection and returns that error; elements already inserted are
// kept.
func (s *ArraySet[T]) InsertSeq(seq iter.Seq[T]) error {
	for elem := range seq {
		if _, err := s.TryInsert(elem); err != nil {
			return err
		}
	}
	return nil
}

// All returns a sequence of the elements in ascending order. The sequence
// reads the set live: it can be iterated multiple times, but the set must
// not be modified during an iteration.
func (s *ArraySet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := range s.size {
			if !yield(s.slots[i]) {
				return
			}
		}
	}
}

// LowerBound returns a sequence of the elements equal to or greater than
// elem, in ascending order.
func (s *ArraySet[T]) LowerBound(elem T) iter.Seq[T] {
	return func(yield func(T) bool) {
		i, _ := s.find(elem)
		for ; i < s.size; i++ {
			if !yield(s.slots[i]) {
				return
			}
		}
	}
}

// Slice returns the elements as a new slice in ascending order.
func (s *ArraySet[T]) Slice() []T {
	return slices.Clone(s.slots[:s.size:s.size])
}

// Clone returns an independent copy of the set with the same capacity.
func (s *ArraySet[T]) Clone() *ArraySet[T] {
	return &ArraySet[T]{
		cmp:   s.cmp,
		slots: slices.Clone(s.slots),
		size:  s.size,
	}
}

// Equal reports whether the two sets hold the same elements under this
// set's ordering.
func (s *ArraySet[T]) Equal(other *ArraySet[T]) bool {
	if s.size != other.size {
		return false
	}
	for i := range s.size {
		if s.cmp(s.slots[i], other.slots[i]) != 0 {
			return false
		}
	}
	return true
}
