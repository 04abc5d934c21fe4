package tinymap

import (
	"cmp"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetInline(t *testing.T) {
	s := NewSet[int](4)

	assert.True(t, s.IsEmpty())
	assert.Equal(t, 4, s.Cap())
	assert.False(t, s.Promoted())

	assert.True(t, s.Insert(2))
	assert.True(t, s.Insert(1))
	assert.False(t, s.Insert(2), "duplicate insert is a no-op")
	assert.False(t, s.Promoted())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{1, 2}, s.Slice())

	assert.True(t, s.Has(1))
	assert.True(t, s.Delete(1))
	assert.False(t, s.Delete(1))
	assert.False(t, s.Promoted(), "deleting never changes the representation")
}

func TestSetPromotion(t *testing.T) {
	s := NewSet[int](4)
	for _, e := range []int{4, 1, 3, 2} {
		require.True(t, s.Insert(e))
	}
	require.False(t, s.Promoted())

	assert.True(t, s.Insert(5), "the insert that does not fit promotes and still succeeds")
	assert.True(t, s.Promoted())
	assert.Equal(t, 5, s.Len())
	assert.Equal(t, 4, s.Cap(), "Cap still reports the inline capacity")
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Slice())

	// Promotion is one-way.
	s.Delete(5)
	s.Delete(4)
	s.Delete(3)
	assert.True(t, s.Promoted())
	assert.Equal(t, []int{1, 2}, s.Slice())
}

func TestSetPromotesOnDuplicateWhenFull(t *testing.T) {
	s := NewSet[int](2)
	s.Insert(1)
	s.Insert(2)
	require.False(t, s.Promoted())

	// The capacity check runs before the lookup, so inserting an element a
	// full inline set already contains promotes instead of answering from
	// the array.
	assert.False(t, s.Insert(1), "still a duplicate after promotion")
	assert.True(t, s.Promoted())
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []int{1, 2}, s.Slice())
}

func TestSetZeroCapacity(t *testing.T) {
	s := NewSet[string](0)
	assert.True(t, s.Insert("a"), "the first insert already promotes")
	assert.True(t, s.Promoted())
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.Cap())
}

func TestSetGetCanonicalAcrossStates(t *testing.T) {
	compare := func(a, b string) int {
		return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
	}

	s := NewSetFunc(2, compare)
	s.Insert("Foo")

	stored, found := s.Get("FOO")
	assert.True(t, found)
	assert.Equal(t, "Foo", stored)

	s.Insert("Bar")
	s.Insert("Baz")
	require.True(t, s.Promoted())

	stored, found = s.Get("BAR")
	assert.True(t, found)
	assert.Equal(t, "Bar", stored)

	_, found = s.Get("nope")
	assert.False(t, found)
}

func TestSetIteratorsAcrossStates(t *testing.T) {
	for _, promoted := range []bool{false, true} {
		capacity := 8
		if promoted {
			capacity = 2
		}
		s := NewSet[int](capacity)
		for _, e := range []int{40, 10, 30, 20} {
			s.Insert(e)
		}
		require.Equal(t, promoted, s.Promoted())

		assert.Equal(t, []int{10, 20, 30, 40}, slices.Collect(s.All()), "promoted=%v", promoted)

		var first int
		for e := range s.All() {
			first = e
			break
		}
		assert.Equal(t, 10, first)

		lower := func(from int) (elems []int) {
			for e := range s.LowerBound(from) {
				elems = append(elems, e)
			}
			return elems
		}
		assert.Equal(t, []int{10, 20, 30, 40}, lower(0), "promoted=%v", promoted)
		assert.Equal(t, []int{20, 30, 40}, lower(20), "promoted=%v", promoted)
		assert.Equal(t, []int{30, 40}, lower(21), "promoted=%v", promoted)
		assert.Nil(t, lower(41), "promoted=%v", promoted)
	}
}

func TestSetClearStaysPromoted(t *testing.T) {
	s := NewSet[int](2)
	s.Insert(1)
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Promoted())

	for i := range 3 {
		s.Insert(i)
	}
	require.True(t, s.Promoted())
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Promoted(), "clearing a promoted set keeps it promoted")

	s.Insert(7)
	assert.True(t, s.Has(7))
}

func TestSetCloneIndependent(t *testing.T) {
	s := NewSet[int](2)
	s.Insert(1)

	c := s.Clone()
	c.Insert(2)
	assert.Equal(t, 1, s.Len(), "inline clone mutations do not leak back")

	for i := range 4 {
		s.Insert(10 + i)
	}
	require.True(t, s.Promoted())

	c = s.Clone()
	assert.True(t, c.Promoted())
	require.True(t, s.Equal(c))

	c.Insert(99)
	assert.False(t, s.Has(99), "promoted clone mutations do not leak back")
	s.Delete(10)
	assert.True(t, c.Has(10))
}

func TestSetEqualAcrossStates(t *testing.T) {
	inline := NewSet[int](8)
	promoted := NewSet[int](1)
	for _, e := range []int{1, 2, 3} {
		inline.Insert(e)
		promoted.Insert(e)
	}
	require.False(t, inline.Promoted())
	require.True(t, promoted.Promoted())

	assert.True(t, inline.Equal(promoted), "representation does not matter")
	assert.True(t, promoted.Equal(inline))

	promoted.Insert(4)
	assert.False(t, inline.Equal(promoted))
}

func TestSetInsertSeq(t *testing.T) {
	s := NewSet[int](2)
	s.InsertSeq(slices.Values([]int{5, 3, 1, 3, 2, 4}))
	assert.True(t, s.Promoted())
	assert.Equal(t, []int{1, 2, 3, 4, 5}, s.Slice())
}
