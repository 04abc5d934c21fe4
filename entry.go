// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

// Entry is a cursor over the outcome of a single key lookup in an
// [ArrayMap] or a [Map], for get-or-insert patterns without a second
// search:
//
//	count.Entry(word).AndModify(func(n *int) { *n++ }).OrInsert(1)
//
// An entry is either occupied (the key was found) or vacant (it holds the
// key and the position at which it would be inserted). It is valid only
// until the owning container's next inserting or deleting call; using it
// after that is undefined.
type Entry[K, V any] struct {
	// arr is the inline map the lookup ran against. Nil when the entry
	// was obtained from an already-promoted [Map].
	arr *ArrayMap[K, V]

	// owner is set when the entry was obtained through [Map.Entry] and
	// routes vacant inserts so they can promote.
	owner *Map[K, V]

	key      K
	index    int
	occupied bool

	// box holds the value when the entry is occupied in a promoted [Map].
	box *V
}

// Entry looks the key up once and returns a cursor for deferred
// get-or-insert against this map.
func (m *ArrayMap[K, V]) Entry(key K) *Entry[K, V] {
	i, found := m.find(key)
	return &Entry[K, V]{arr: m, key: key, index: i, occupied: found}
}

// tryPlaceAt inserts at a position previously computed by find, checking
// capacity but repeating no search.
func (m *ArrayMap[K, V]) tryPlaceAt(i int, key K, value V) (*V, error) {
	if m.size == len(m.slots) {
		return nil, capacityError(len(m.slots))
	}
	return m.placeAt(i, key, value), nil
}

// Key returns the key the entry was obtained for, in either state.
func (e *Entry[K, V]) Key() K { return e.key }

func (e *Entry[K, V]) ptr() *V {
	if e.box != nil {
		return e.box
	}
	return &e.arr.slots[e.index].value
}

// AndModify applies fn to the stored value if the entry is occupied, and
// returns the entry for chaining.
func (e *Entry[K, V]) AndModify(fn func(*V)) *Entry[K, V] {
	if e.occupied {
		fn(e.ptr())
	}
	return e
}

// OrInsert returns a pointer to the stored value, inserting def first if
// the entry is vacant. Inserting into a full [ArrayMap] panics with the
// capacity error, matching [ArrayMap.Insert]; entries from a [Map] promote
// instead and never panic.
func (e *Entry[K, V]) OrInsert(def V) *V {
	p, err := e.orInsert(func() V { return def })
	if err != nil {
		panic(err)
	}
	return p
}

// OrTryInsert is OrInsert with capacity exhaustion returned as an error
// instead of a panic. The container is unchanged on error. For entries
// obtained from a [Map] the error is always nil.
func (e *Entry[K, V]) OrTryInsert(def V) (*V, error) {
	return e.orInsert(func() V { return def })
}

// OrInsertWith is OrInsert with the default computed lazily: fn runs only
// if the entry is vacant.
func (e *Entry[K, V]) OrInsertWith(fn func() V) *V {
	p, err := e.orInsert(fn)
	if err != nil {
		panic(err)
	}
	return p
}

// OrTryInsertWith is OrInsertWith with capacity exhaustion returned as an
// error instead of a panic. fn still runs only if the entry is vacant, and
// the container is unchanged on error.
func (e *Entry[K, V]) OrTryInsertWith(fn func() V) (*V, error) {
	return e.orInsert(fn)
}

// OrDefault is OrInsert with the zero value of V.
func (e *Entry[K, V]) OrDefault() *V {
	p, err := e.orInsert(func() V { var zero V; return zero })
	if err != nil {
		panic(err)
	}
	return p
}

func (e *Entry[K, V]) orInsert(fn func() V) (*V, error) {
	if e.occupied {
		return e.ptr(), nil
	}
	if e.owner != nil {
		return e.owner.entryInsert(e, fn()), nil
	}
	p, err := e.arr.tryPlaceAt(e.index, e.key, fn())
	if err != nil {
		return nil, err
	}
	e.occupied = true
	return p, nil
}
