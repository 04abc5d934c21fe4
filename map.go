// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

import (
	"cmp"
	"fmt"
	"iter"
	"reflect"

	"github.com/benbjohnson/immutable"
)

// Map is a sorted map that starts out as an inline [ArrayMap] and promotes
// itself to a heap-allocated sorted tree the first time an insert runs
// into the inline capacity. Promotion is one-way and transparent: the
// operations behave identically in both states, inserts never fail, and
// iteration stays in ascending key order.
type Map[K, V any] struct {
	cmp      func(K, K) int
	capacity int

	// inline is the initial representation. Nil once promoted.
	inline *ArrayMap[K, V]

	// heap is the promoted representation. Values are boxed so they can
	// be updated in place and handed out by pointer; the Map holds the
	// only reference to the tree, so writing through a box is not
	// observable anywhere else.
	heap *immutable.SortedMap[K, *V]
}

// NewMap returns an empty map ordered by the natural order of K that holds
// up to capacity pairs inline before promoting. Panics if capacity is
// negative.
func NewMap[K cmp.Ordered, V any](capacity int) *Map[K, V] {
	return NewMapFunc[K, V](capacity, cmp.Compare[K])
}

// NewMapFunc is NewMap with a caller-supplied strict total order over
// keys. Panics if capacity is negative or compare is nil.
func NewMapFunc[K, V any](capacity int, compare func(K, K) int) *Map[K, V] {
	return &Map[K, V]{
		cmp:      compare,
		capacity: capacity,
		inline:   NewArrayMapFunc[K, V](capacity, compare),
	}
}

// comparerFunc adapts an ordering function to immutable.Comparer.
type comparerFunc[K any] func(K, K) int

func (f comparerFunc[K]) Compare(a, b K) int { return f(a, b) }

// Promoted reports whether the map has moved to its heap representation.
func (m *Map[K, V]) Promoted() bool { return m.heap != nil }

// Len returns the number of pairs in the map.
func (m *Map[K, V]) Len() int {
	if m.heap != nil {
		return m.heap.Len()
	}
	return m.inline.Len()
}

// IsEmpty reports whether the map holds no pairs.
func (m *Map[K, V]) IsEmpty() bool { return m.Len() == 0 }

// Cap returns the inline capacity the map was constructed with. It is the
// promotion threshold, not a bound: a promoted map's Len may exceed it.
func (m *Map[K, V]) Cap() int { return m.capacity }

// Clear removes all pairs. A promoted map stays promoted.
func (m *Map[K, V]) Clear() {
	if m.heap != nil {
		m.heap = immutable.NewSortedMap[K, *V](comparerFunc[K](m.cmp))
		return
	}
	m.inline.Clear()
}

// Has reports whether the key is present.
func (m *Map[K, V]) Has(key K) bool {
	if m.heap != nil {
		_, found := m.heap.Get(key)
		return found
	}
	return m.inline.Has(key)
}

// Get returns the value stored for the key.
func (m *Map[K, V]) Get(key K) (value V, found bool) {
	if m.heap != nil {
		box, ok := m.heap.Get(key)
		if !ok {
			return value, false
		}
		return *box, true
	}
	return m.inline.Get(key)
}

// GetPtr returns a pointer to the value stored for the key, or nil if the
// key is absent. The pointer is valid only until the next call that
// inserts into or deletes from the map.
func (m *Map[K, V]) GetPtr(key K) *V {
	if m.heap != nil {
		box, ok := m.heap.Get(key)
		if !ok {
			return nil
		}
		return box
	}
	return m.inline.GetPtr(key)
}

// MustGet returns the value stored for the key and panics if the key is
// absent.
func (m *Map[K, V]) MustGet(key K) V {
	value, found := m.Get(key)
	if !found {
		panic(fmt.Sprintf("tinymap: no entry for key %v", key))
	}
	return value
}

// Insert inserts the pair, returning the previous value if the key was
// already present. Insert never fails: when the inline representation is
// full — even if the key exists inline and this is a replacement — the
// map promotes and the insert lands in the heap representation.
func (m *Map[K, V]) Insert(key K, value V) (old V, hadOld bool) {
	if m.heap == nil {
		old, hadOld, err := m.inline.TryInsert(key, value)
		if err == nil {
			return old, hadOld
		}
		m.promote()
	}
	if box, ok := m.heap.Get(key); ok {
		old, hadOld = *box, true
		*box = value
		return old, hadOld
	}
	m.heap = m.heap.Set(key, &value)
	return old, false
}

// promote moves every inline pair into a freshly built heap tree and
// drops the inline representation. Callers complete the triggering insert
// against [heap] afterwards, so from the outside the insert is a single
// indivisible operation.
func (m *Map[K, V]) promote() {
	heap := immutable.NewSortedMap[K, *V](comparerFunc[K](m.cmp))
	inline := m.inline
	m.inline = nil
	for i := range inline.size {
		value := inline.slots[i].value
		heap = heap.Set(inline.slots[i].key, &value)
	}
	inline.Clear()
	m.heap = heap
}

// Delete removes the key and returns the value it held.
func (m *Map[K, V]) Delete(key K) (old V, hadOld bool) {
	if m.heap != nil {
		box, ok := m.heap.Get(key)
		if !ok {
			return old, false
		}
		m.heap = m.heap.Delete(key)
		return *box, true
	}
	return m.inline.Delete(key)
}

// Entry looks the key up once and returns a cursor for deferred
// get-or-insert against this map. A vacant insert through the entry
// promotes when the inline representation is full, like [Map.Insert].
func (m *Map[K, V]) Entry(key K) *Entry[K, V] {
	if m.heap != nil {
		box, found := m.heap.Get(key)
		return &Entry[K, V]{owner: m, key: key, occupied: found, box: box}
	}
	e := m.inline.Entry(key)
	e.owner = m
	return e
}

// entryInsert completes a vacant entry's deferred insert, reusing the
// entry's precomputed position while inline and promoting when full.
func (m *Map[K, V]) entryInsert(e *Entry[K, V], value V) *V {
	if m.heap == nil {
		p, err := m.inline.tryPlaceAt(e.index, e.key, value)
		if err == nil {
			e.occupied = true
			return p
		}
		m.promote()
	}
	box := &value
	m.heap = m.heap.Set(e.key, box)
	e.arr = nil
	e.box = box
	e.occupied = true
	return box
}

// InsertSeq inserts every pair of the sequence.
func (m *Map[K, V]) InsertSeq(seq iter.Seq2[K, V]) {
	for k, v := range seq {
		m.Insert(k, v)
	}
}

// heapPairs iterates the promoted tree in ascending key order, starting
// at [from] when seek is set. The only place the tree's iterator is
// consumed.
func (m *Map[K, V]) heapPairs(seek bool, from K) iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		it := m.heap.Iterator()
		if seek {
			it.Seek(from)
		} else {
			it.First()
		}
		for !it.Done() {
			k, box, _ := it.Next()
			if !yield(k, box) {
				return
			}
		}
	}
}

// All returns a sequence of the pairs in ascending key order. The
// sequence reads the map live: it can be iterated multiple times, but the
// map must not be modified during an iteration.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m.heap == nil {
			m.inline.All()(yield)
			return
		}
		var zero K
		for k, box := range m.heapPairs(false, zero) {
			if !yield(k, *box) {
				return
			}
		}
	}
}

// Keys returns a sequence of the keys in ascending order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values returns a sequence of the values, ordered by their keys.
func (m *Map[K, V]) Values() iter.Seq[V] {
	return func(yield func(V) bool) {
		for _, v := range m.All() {
			if !yield(v) {
				return
			}
		}
	}
}

// AllPtrs is All with pointers to the stored values, for updating values
// in place during iteration.
func (m *Map[K, V]) AllPtrs() iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		if m.heap == nil {
			m.inline.AllPtrs()(yield)
			return
		}
		var zero K
		m.heapPairs(false, zero)(yield)
	}
}

// LowerBound returns a sequence of the pairs whose key is equal to or
// greater than the given key, in ascending key order.
func (m *Map[K, V]) LowerBound(key K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m.heap == nil {
			m.inline.LowerBound(key)(yield)
			return
		}
		for k, box := range m.heapPairs(true, key) {
			if !yield(k, *box) {
				return
			}
		}
	}
}

// Clone returns an independent copy: updating values through one map's
// pointers is never visible in the other.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{cmp: m.cmp, capacity: m.capacity}
	if m.heap == nil {
		c.inline = m.inline.Clone()
		return c
	}
	heap := immutable.NewSortedMap[K, *V](comparerFunc[K](m.cmp))
	var zero K
	for k, box := range m.heapPairs(false, zero) {
		value := *box
		heap = heap.Set(k, &value)
	}
	c.heap = heap
	return c
}

// SlowEqual reports whether the two maps hold equal pairs, regardless of
// their representation state. Values are compared with reflect.DeepEqual,
// which makes this slow.
func (m *Map[K, V]) SlowEqual(other *Map[K, V]) bool {
	if m.Len() != other.Len() {
		return false
	}
	next, stop := iter.Pull2(other.All())
	defer stop()
	for k, v := range m.All() {
		otherK, otherV, ok := next()
		if !ok || m.cmp(k, otherK) != 0 || !reflect.DeepEqual(v, otherV) {
			return false
		}
	}
	return true
}
