// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package tinymap

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapInline(t *testing.T) {
	m := NewMap[int, string](4)

	assert.True(t, m.IsEmpty())
	assert.Equal(t, 4, m.Cap())
	assert.False(t, m.Promoted())

	for i, k := range []int{30, 10, 40, 20} {
		old, hadOld := m.Insert(k, "v")
		assert.False(t, hadOld, "insert %d", i)
		assert.Equal(t, "", old)
	}
	assert.False(t, m.Promoted(), "fits inline up to the capacity")
	assert.Equal(t, 4, m.Len())
	assert.Equal(t, []int{10, 20, 30, 40}, slices.Collect(m.Keys()))

	v, ok := m.Get(20)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	old, hadOld := m.Delete(20)
	assert.True(t, hadOld)
	assert.Equal(t, "v", old)
	assert.Equal(t, 3, m.Len())
	assert.False(t, m.Promoted(), "deleting never changes the representation")
}

func TestMapPromotion(t *testing.T) {
	m := NewMap[int, string](4)
	for _, k := range []int{1, 2, 3, 4} {
		m.Insert(k, "inline")
	}
	require.False(t, m.Promoted())

	// The insert that does not fit promotes and still succeeds.
	old, hadOld := m.Insert(5, "heap")
	assert.False(t, hadOld)
	assert.Equal(t, "", old)
	assert.True(t, m.Promoted())
	assert.Equal(t, 5, m.Len())
	assert.Equal(t, 4, m.Cap(), "Cap still reports the inline capacity")

	// All pairs survived the move, in order.
	assert.Equal(t, []int{1, 2, 3, 4, 5}, slices.Collect(m.Keys()))
	for _, k := range []int{1, 2, 3, 4} {
		assert.Equal(t, "inline", m.MustGet(k))
	}
	assert.Equal(t, "heap", m.MustGet(5))

	// Promotion is one-way: deleting below the capacity does not demote.
	m.Delete(5)
	m.Delete(4)
	assert.True(t, m.Promoted())
	assert.Equal(t, 3, m.Len())
}

func TestMapPromotesOnReplaceWhenFull(t *testing.T) {
	m := NewMap[int, string](2)
	m.Insert(1, "a")
	m.Insert(2, "b")
	require.False(t, m.Promoted())

	// The capacity check runs before the lookup, so replacing an existing
	// key in a full inline map promotes rather than updating in place.
	old, hadOld := m.Insert(1, "a2")
	assert.True(t, hadOld)
	assert.Equal(t, "a", old)
	assert.True(t, m.Promoted())
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "a2", m.MustGet(1))
	assert.Equal(t, "b", m.MustGet(2))
}

// TestMapPromotionReleasesInlineSlots verifies that promotion leaves no
// references behind in the abandoned inline array.
func TestMapPromotionReleasesInlineSlots(t *testing.T) {
	m := NewMap[int, *string](2)
	m.Insert(1, new(string))
	m.Insert(2, new(string))

	inline := m.inline
	m.Insert(3, new(string))
	require.True(t, m.Promoted())
	require.Nil(t, m.inline)

	assert.Equal(t, 0, inline.size)
	for i := range inline.slots {
		assert.Nil(t, inline.slots[i].value, "slot %d released", i)
	}

	// The moved values are still reachable through the map.
	for _, k := range []int{1, 2, 3} {
		assert.NotNil(t, m.MustGet(k))
	}
}

func TestMapZeroCapacity(t *testing.T) {
	m := NewMap[string, int](0)
	assert.False(t, m.Promoted())

	m.Insert("a", 1)
	assert.True(t, m.Promoted(), "the first insert already promotes")
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 0, m.Cap())
}

func TestMapGetPtrAcrossStates(t *testing.T) {
	m := NewMap[string, int](2)
	m.Insert("a", 1)

	p := m.GetPtr("a")
	require.NotNil(t, p)
	*p = 10
	assert.Equal(t, 10, m.MustGet("a"))
	assert.Nil(t, m.GetPtr("missing"))

	m.Insert("b", 2)
	m.Insert("c", 3)
	require.True(t, m.Promoted())

	p = m.GetPtr("a")
	require.NotNil(t, p)
	*p = 100
	assert.Equal(t, 100, m.MustGet("a"))
	assert.Nil(t, m.GetPtr("missing"))
}

func TestMapUpdateAcrossStates(t *testing.T) {
	m := NewMap[string, int](2)
	m.Insert("a", 1)

	old, hadOld := m.Insert("a", 2)
	assert.True(t, hadOld)
	assert.Equal(t, 1, old)
	assert.Equal(t, 1, m.Len())

	m.Insert("b", 1)
	m.Insert("c", 1)
	require.True(t, m.Promoted())

	old, hadOld = m.Insert("c", 9)
	assert.True(t, hadOld)
	assert.Equal(t, 1, old)
	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 9, m.MustGet("c"))
}

func TestMapIteratorsAcrossStates(t *testing.T) {
	for _, promoted := range []bool{false, true} {
		capacity := 8
		if promoted {
			capacity = 2
		}
		m := NewMap[int, string](capacity)
		for _, k := range []int{40, 10, 30, 20} {
			m.Insert(k, "v")
		}
		require.Equal(t, promoted, m.Promoted())

		assert.Equal(t, []int{10, 20, 30, 40}, slices.Collect(m.Keys()), "promoted=%v", promoted)
		assert.Equal(t, []string{"v", "v", "v", "v"}, slices.Collect(m.Values()), "promoted=%v", promoted)
		assert.Equal(t, []keyValue[int, string]{
			{Key: 10, Value: "v"},
			{Key: 20, Value: "v"},
			{Key: 30, Value: "v"},
			{Key: 40, Value: "v"},
		}, pairsOf(m.All()), "promoted=%v", promoted)

		// Early break.
		var first int
		for k := range m.Keys() {
			first = k
			break
		}
		assert.Equal(t, 10, first)

		// Sequences can be ranged more than once.
		keys := m.Keys()
		assert.Equal(t, slices.Collect(keys), slices.Collect(keys))

		// In-place updates through AllPtrs.
		for k, v := range m.AllPtrs() {
			if k >= 30 {
				*v = "big"
			}
		}
		assert.Equal(t, []string{"v", "v", "big", "big"}, slices.Collect(m.Values()), "promoted=%v", promoted)

		// LowerBound.
		lower := func(from int) (keys []int) {
			for k := range m.LowerBound(from) {
				keys = append(keys, k)
			}
			return keys
		}
		assert.Equal(t, []int{10, 20, 30, 40}, lower(0), "promoted=%v", promoted)
		assert.Equal(t, []int{20, 30, 40}, lower(20), "promoted=%v", promoted)
		assert.Equal(t, []int{30, 40}, lower(21), "promoted=%v", promoted)
		assert.Nil(t, lower(41), "promoted=%v", promoted)
	}
}

func TestMapClearStaysPromoted(t *testing.T) {
	m := NewMap[int, int](2)
	m.Insert(1, 1)
	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Promoted(), "clearing an inline map keeps it inline")

	for i := range 3 {
		m.Insert(i, i)
	}
	require.True(t, m.Promoted())
	m.Clear()
	assert.Equal(t, 0, m.Len())
	assert.True(t, m.Promoted(), "clearing a promoted map keeps it promoted")

	// The emptied heap tree iterates and seeks without yielding anything.
	lower := func(from int) (keys []int) {
		for k := range m.LowerBound(from) {
			keys = append(keys, k)
		}
		return keys
	}
	assert.Empty(t, slices.Collect(m.Keys()))
	assert.Nil(t, lower(0))

	m.Insert(7, 7)
	assert.Equal(t, 7, m.MustGet(7))
	assert.Equal(t, []int{7}, lower(7))
	assert.Nil(t, lower(8), "lower bound past the last key")
}

func TestMapCloneIndependent(t *testing.T) {
	m := NewMap[int, string](2)
	m.Insert(1, "a")

	// Inline clone.
	c := m.Clone()
	c.Insert(1, "changed")
	c.Insert(2, "b")
	assert.Equal(t, "a", m.MustGet(1))
	assert.Equal(t, 1, m.Len())

	// Promoted clone: values are re-boxed, so pointer writes into the
	// original stay invisible in the clone.
	for i := range 4 {
		m.Insert(10+i, "x")
	}
	require.True(t, m.Promoted())
	c = m.Clone()
	assert.True(t, c.Promoted())
	require.True(t, m.SlowEqual(c))

	*m.GetPtr(10) = "mutated"
	assert.Equal(t, "x", c.MustGet(10))
	assert.False(t, m.SlowEqual(c))
}

func TestMapSlowEqualAcrossStates(t *testing.T) {
	inline := NewMap[int, string](8)
	promoted := NewMap[int, string](1)
	for _, k := range []int{1, 2, 3} {
		inline.Insert(k, "v")
		promoted.Insert(k, "v")
	}
	require.False(t, inline.Promoted())
	require.True(t, promoted.Promoted())

	assert.True(t, inline.SlowEqual(promoted), "representation does not matter")
	assert.True(t, promoted.SlowEqual(inline))

	promoted.Insert(4, "v")
	assert.False(t, inline.SlowEqual(promoted))

	inline.Insert(4, "other")
	assert.False(t, inline.SlowEqual(promoted), "same keys, different values")
}

func TestMapMustGetPanics(t *testing.T) {
	m := NewMap[int, int](1)
	m.Insert(1, 1)
	m.Insert(2, 2)
	require.True(t, m.Promoted())

	assert.PanicsWithValue(t, "tinymap: no entry for key 42", func() {
		m.MustGet(42)
	})
}

func TestMapInsertSeq(t *testing.T) {
	m := NewMap[int, int](2)
	m.InsertSeq(func(yield func(int, int) bool) {
		for i := range 5 {
			if !yield(i, i*i) {
				return
			}
		}
	})
	assert.Equal(t, 5, m.Len())
	assert.True(t, m.Promoted())
	assert.Equal(t, 16, m.MustGet(4))
}
