package vea

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLargeHeapRootIsMax(t *testing.T) {
	lh := newLargeHeap()
	extents := []*Extent{
		{Off: 0, Cnt: 50},
		{Off: 100, Cnt: 200},
		{Off: 400, Cnt: 10},
		{Off: 500, Cnt: 150},
	}
	for _, e := range extents {
		lh.push(e)
	}
	require.Equal(t, uint32(200), lh.peek().Cnt)
	require.Equal(t, lh.max(), lh.peek().Cnt)

	got := lh.popRoot()
	require.Equal(t, uint32(200), got.Cnt)
	require.Equal(t, uint32(150), lh.peek().Cnt)
	require.Equal(t, 3, lh.len())
}

func TestLargeHeapRemoveByIdentity(t *testing.T) {
	lh := newLargeHeap()
	a := &Extent{Off: 0, Cnt: 50}
	b := &Extent{Off: 100, Cnt: 200}
	lh.push(a)
	lh.push(b)

	require.True(t, lh.remove(b))
	require.Equal(t, 1, lh.len())
	require.Equal(t, uint32(50), lh.peek().Cnt)
	require.False(t, lh.remove(b))
}

func TestLargeHeapEmpty(t *testing.T) {
	lh := newLargeHeap()
	require.Nil(t, lh.peek())
	require.Nil(t, lh.popRoot())
	require.Equal(t, uint32(0), lh.max())
}
