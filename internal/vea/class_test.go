package vea

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizeClassesFirstFitAndAgeOrder(t *testing.T) {
	sc := newSizeClasses(64)
	sc.insert(&Extent{Off: 0, Cnt: 4, Age: 30})
	sc.insert(&Extent{Off: 10, Cnt: 4, Age: 10})
	sc.insert(&Extent{Off: 20, Cnt: 4, Age: 20})

	require.True(t, sc.checkAgeOrder())

	// firstFit within the bucket must return the oldest (front) entry that
	// actually satisfies the requested block count.
	e := sc.firstFit(4)
	require.NotNil(t, e)
	require.Equal(t, Age(10), e.Age)
}

func TestSizeClassesBucketForAndOverflow(t *testing.T) {
	sc := newSizeClasses(16)
	require.GreaterOrEqual(t, sc.bucketFor(1), 0)
	require.Equal(t, len(sc.buckets)-1, sc.bucketFor(16))
	require.Equal(t, -1, sc.bucketFor(17))
}

func TestSizeClassesRemove(t *testing.T) {
	sc := newSizeClasses(64)
	e := &Extent{Off: 0, Cnt: 4, Age: 1}
	sc.insert(e)
	require.True(t, sc.remove(e))
	require.Nil(t, sc.firstFit(4))
	require.False(t, sc.remove(e))
}

func TestSizeClassesFirstFitSkipsUndersized(t *testing.T) {
	sc := newSizeClasses(64)
	sc.insert(&Extent{Off: 0, Cnt: 2, Age: 1})
	e := sc.firstFit(4)
	// bucketFor(4) starts at the bucket whose upperBound >= 4; the cnt=2
	// entry lives in a smaller bucket and must not be returned.
	require.Nil(t, e)
}
