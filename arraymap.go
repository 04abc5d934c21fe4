// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

// Package tinymap provides sorted associative containers that store their
// elements inline in a fixed-capacity array: [ArrayMap] and [ArraySet]
// never allocate after construction and reject inserts beyond their
// capacity, while the hybrid [Map] and [Set] start out inline and promote
// to a heap-allocated sorted tree the first time an insert would not fit.
//
// Lookups are binary searches and inserts and deletes shift the elements
// around them, so the containers trade O(n) mutation for contiguous,
// allocation-free storage. At the small sizes they are meant for (a
// handful up to a few dozen elements) this is typically faster than a
// pointer-chasing tree.
//
// None of the containers are safe for concurrent use; callers that share
// one across goroutines must synchronize around it.
package tinymap

import (
	"cmp"
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// slot is one storage cell of the backing array. Cells at or beyond the
// occupied prefix hold zero values so that removed elements do not keep
// their referents alive.
type slot[K, V any] struct {
	key   K
	value V
}

// ArrayMap is a sorted map holding at most Cap() key-value pairs inline in
// a single backing array allocated at construction. Keys are kept in
// strictly ascending order, so iteration is a plain forward scan.
type ArrayMap[K, V any] struct {
	cmp func(K, K) int

	// slots is the backing array; its length is the fixed capacity and is
	// never changed after construction.
	slots []slot[K, V]

	// size is the length of the occupied, sorted prefix of [slots].
	size int
}

// NewArrayMap returns an empty map with the given fixed capacity, ordered
// by the natural order of K. Panics if capacity is negative.
func NewArrayMap[K cmp.Ordered, V any](capacity int) *ArrayMap[K, V] {
	return NewArrayMapFunc[K, V](capacity, cmp.Compare[K])
}

// NewArrayMapFunc returns an empty map with the given fixed capacity,
// ordered by [compare], which must define a strict total order over keys.
// Panics if capacity is negative or compare is nil.
func NewArrayMapFunc[K, V any](capacity int, compare func(K, K) int) *ArrayMap[K, V] {
	if capacity < 0 {
		panic("tinymap: negative capacity")
	}
	if compare == nil {
		panic("tinymap: nil compare function")
	}
	return &ArrayMap[K, V]{
		cmp:   compare,
		slots: make([]slot[K, V], capacity),
	}
}

// find binary searches the occupied prefix. It returns the index of the
// key, or the index at which the key would need to be inserted to keep the
// prefix sorted. Every other operation is built on this.
func (m *ArrayMap[K, V]) find(key K) (index int, found bool) {
	return slices.BinarySearchFunc(m.slots[:m.size], key, func(s slot[K, V], k K) int {
		return m.cmp(s.key, k)
	})
}

// Len returns the number of pairs in the map.
func (m *ArrayMap[K, V]) Len() int { return m.size }

// IsEmpty reports whether the map holds no pairs.
func (m *ArrayMap[K, V]) IsEmpty() bool { return m.size == 0 }

// Cap returns the fixed capacity the map was constructed with.
func (m *ArrayMap[K, V]) Cap() int { return len(m.slots) }

// Clear removes all pairs. The backing array is retained.
func (m *ArrayMap[K, V]) Clear() {
	clear(m.slots[:m.size])
	m.size = 0
}

// Has reports whether the key is present.
func (m *ArrayMap[K, V]) Has(key K) bool {
	_, found := m.find(key)
	return found
}

// Get returns the value stored for the key.
func (m *ArrayMap[K, V]) Get(key K) (value V, found bool) {
	i, ok := m.find(key)
	if !ok {
		return value, false
	}
	return m.slots[i].value, true
}

// GetPtr returns a pointer to the value stored for the key, or nil if the
// key is absent. The pointer is valid only until the next call that
// inserts into or deletes from the map.
func (m *ArrayMap[K, V]) GetPtr(key K) *V {
	i, ok := m.find(key)
	if !ok {
		return nil
	}
	return &m.slots[i].value
}

// MustGet returns the value stored for the key and panics if the key is
// absent.
func (m *ArrayMap[K, V]) MustGet(key K) V {
	value, found := m.Get(key)
	if !found {
		panic(fmt.Sprintf("tinymap: no entry for key %v", key))
	}
	return value
}

// TryInsert inserts the pair, returning the previous value if the key was
// already present. A full map rejects the insert with an error wrapping
// [ErrCapacityExceeded] and is left unchanged; the capacity check happens
// before the key lookup, so a full map rejects even inserts that would
// only have replaced an existing value.
func (m *ArrayMap[K, V]) TryInsert(key K, value V) (old V, hadOld bool, err error) {
	if m.size == len(m.slots) {
		return old, false, capacityError(len(m.slots))
	}
	i, found := m.find(key)
	if found {
		old, hadOld = m.slots[i].value, true
		m.slots[i].value = value
		return old, hadOld, nil
	}
	m.placeAt(i, key, value)
	return old, false, nil
}

// Insert is TryInsert with capacity exhaustion treated as a contract
// violation: it panics with the capacity error. Use TryInsert to handle
// full maps gracefully, or [Map] to grow past the capacity instead.
func (m *ArrayMap[K, V]) Insert(key K, value V) (old V, hadOld bool) {
	old, hadOld, err := m.TryInsert(key, value)
	if err != nil {
		panic(err)
	}
	return old, hadOld
}

// placeAt opens slot [i] by shifting [i, size) one position right and
// stores the pair there. The caller must have checked capacity and
// computed i with find.
func (m *ArrayMap[K, V]) placeAt(i int, key K, value V) *V {
	copy(m.slots[i+1:m.size+1], m.slots[i:m.size])
	m.slots[i] = slot[K, V]{key: key, value: value}
	m.size++
	return &m.slots[i].value
}

// Delete removes the key and returns the value it held. The slot vacated
// at the end of the prefix is zeroed so the value's referents are released.
func (m *ArrayMap[K, V]) Delete(key K) (old V, hadOld bool) {
	i, found := m.find(key)
	if !found {
		return old, false
	}
	old = m.slots[i].value
	copy(m.slots[i:m.size-1], m.slots[i+1:m.size])
	m.size--
	m.slots[m.size] = slot[K, V]{}
	return old, true
}

// InsertSeq inserts every pair of the sequence. It stops at the first
// capacity rejection and returns that error; pairs already inserted are
// kept.
func (m *ArrayMap[K, V]) InsertSeq(seq iter.Seq2[K, V]) error {
	for k, v := range seq {
		if _, _, err := m.TryInsert(k, v); err != nil {
			return err
		}
	}
	return nil
}

// All returns a sequence of the pairs in ascending key order. The sequence
// reads the map live: it can be iterated multiple times, but the map must
// not be structurally modified during an iteration.
func (m *ArrayMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.size {
			if !yield(m.slots[i].key, m.slots[i].value) {
				return
			}
		}
	}
}

// Keys returns a sequence of the keys in ascending order.
func (m *ArrayMap[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for i := range m.size {
			if !yield(m.slots[i].key) {
				return
			}
		}
	}
}

// Values returns a sequence of the values, ordered by their keys.
func (m *ArrayMap[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for i := range m.size {
			if !yield(m.slots[i].value) {
				return
			}
		}
	}
}

// AllPtrs is All with pointers to the stored values, for updating values
// in place during iteration. Inserting or deleting while iterating is
// undefined, as with All.
func (m *ArrayMap[K, V]) AllPtrs() iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		for i := range m.size {
			if !yield(m.slots[i].key, &m.slots[i].value) {
				return
			}
		}
	}
}

// LowerBound returns a sequence of the pairs whose key is equal to or
// greater than the given key, in ascending key order.
func (m *ArrayMap[K, V]) LowerBound(key K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		i, _ := m.find(key)
		for ; i < m.size; i++ {
			if !yield(m.slots[i].key, m.slots[i].value) {
				return
			}
		}
	}
}

// Clone returns an independent copy of the map with the same capacity.
func (m *ArrayMap[K, V]) Clone() *ArrayMap[K, V] {
	return &ArrayMap[K, V]{
		cmp:   m.cmp,
		slots: slices.Clone(m.slots),
		size:  m.size,
	}
}

// SlowEqual reports whether the two maps hold equal pairs. Values are
// compared with reflect.DeepEqual, which makes this slow.
func (m *ArrayMap[K, V]) SlowEqual(other *ArrayMap[K, V]) bool {
	if m.size != other.size {
		return false
	}
	for i := range m.size {
		if m.cmp(m.slots[i].key, other.slots[i].key) != 0 ||
			!reflect.DeepEqual(m.slots[i].value, other.slots[i].value) {
			return false
		}
	}
	return true
}
