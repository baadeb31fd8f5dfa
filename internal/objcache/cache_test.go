package objcache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daos-stack/voscore/internal/kvtree"
)

func newTestCache(t *testing.T) (*Cache, *int) {
	calls := 0
	c, err := New(4, func(Key, uint64, bool) (*kvtree.ObjectNode, error) {
		calls++
		return kvtree.NewObjectNode(), nil
	})
	require.NoError(t, err)
	return c, &calls
}

func TestHoldResolvesOnceAndRefCounts(t *testing.T) {
	c, calls := newTestCache(t)
	oid := kvtree.OID{Hi: 1, Lo: 2}

	h1, err := c.Hold(1, oid, 10, true)
	require.NoError(t, err)
	h2, err := c.Hold(1, oid, 10, true)
	require.NoError(t, err)
	require.Same(t, h1, h2)
	require.Equal(t, 1, *calls)

	c.Release(h1)
	c.Release(h2)
}

func TestReleaseToZeroMovesIntoLRUAndReusesOnNextHold(t *testing.T) {
	c, calls := newTestCache(t)
	oid := kvtree.OID{Hi: 1, Lo: 2}

	h, err := c.Hold(1, oid, 10, true)
	require.NoError(t, err)
	c.Release(h)

	h2, err := c.Hold(1, oid, 10, true)
	require.NoError(t, err)
	require.Same(t, h, h2)
	require.Equal(t, 1, *calls, "resolve must not be called again once the handle survives in the LRU")
	c.Release(h2)
}

func TestEvictForcesRemovalRegardlessOfRefcount(t *testing.T) {
	c, calls := newTestCache(t)
	oid := kvtree.OID{Hi: 1, Lo: 2}

	h, err := c.Hold(1, oid, 10, true)
	require.NoError(t, err)
	c.Evict(1, oid)

	h2, err := c.Hold(1, oid, 10, true)
	require.NoError(t, err)
	require.NotSame(t, h, h2)
	require.Equal(t, 2, *calls)
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	c, calls := newTestCache(t)
	oidA := kvtree.OID{Hi: 1, Lo: 1}
	oidB := kvtree.OID{Hi: 1, Lo: 2}

	ha, err := c.Hold(1, oidA, 10, true)
	require.NoError(t, err)
	hb, err := c.Hold(1, oidB, 10, true)
	require.NoError(t, err)
	require.NotSame(t, ha, hb)
	require.Equal(t, 2, *calls)
	c.Release(ha)
	c.Release(hb)
}
