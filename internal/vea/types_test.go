package vea

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtentEndAdjacentOverlaps(t *testing.T) {
	a := Extent{Off: 10, Cnt: 5} // [10, 15)
	b := Extent{Off: 15, Cnt: 5} // [15, 20)
	require.Equal(t, uint64(15), a.End())
	require.True(t, a.Adjacent(b))
	require.False(t, b.Adjacent(a))
	require.False(t, a.Overlaps(b))

	c := Extent{Off: 12, Cnt: 5} // [12, 17), overlaps a
	require.True(t, a.Overlaps(c))
	require.True(t, c.Overlaps(a))
}

func TestAgeFrozenSentinel(t *testing.T) {
	var a Age
	require.False(t, a.IsFrozen())
	require.True(t, AgeFrozen.IsFrozen())
}

func TestReservedListTotalBlocks(t *testing.T) {
	l := ReservedList{Items: []Reserved{{Cnt: 3}, {Cnt: 7}}}
	require.Equal(t, uint32(10), l.TotalBlocks())
}
