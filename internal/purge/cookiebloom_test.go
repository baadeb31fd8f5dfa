package purge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCookieBloomNeverFalseNegative(t *testing.T) {
	b, err := NewCookieBloom(1000, 0.01)
	require.NoError(t, err)

	added := []uint64{1, 2, 3, 42, 1000000, 7}
	for _, c := range added {
		b.Add(c)
	}
	for _, c := range added {
		require.True(t, b.MaybeContains(c), "a bloom filter must never false-negative an added member")
	}
}

func TestCookieBloomAbsentCookieLikelyReportsFalse(t *testing.T) {
	b, err := NewCookieBloom(1000, 0.01)
	require.NoError(t, err)
	b.Add(1)
	b.Add(2)

	require.False(t, b.MaybeContains(999999), "with a low false-positive rate and few entries, an unrelated cookie should read as absent")
}

func TestNewCookieBloomRejectsInvalidParameters(t *testing.T) {
	_, err := NewCookieBloom(0, 0.01)
	require.Error(t, err)
}
