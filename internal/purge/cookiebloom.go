package purge

import (
	"fmt"
	"hash"

	"github.com/steakknife/bloomfilter"
)

// CookieBloom is a probabilistic pre-filter over the cookies ever written
// into a container, used to short-circuit Discard without ever touching the
// key trees when a cookie provably never wrote anything. Grounded on the
// teacher's core/state/pruner/bloom.go StateBloom, which adapts the same
// steakknife/bloomfilter package to a "have we possibly seen this key"
// membership pre-check ahead of an expensive authoritative lookup.
type CookieBloom struct {
	filter *bloomfilter.Filter
}

// cookieHasher adapts a uint64 cookie to the hash.Hash64 shape
// bloomfilter.Filter expects, mirroring stateBloomHasher.
type cookieHasher uint64

func (h cookieHasher) Write(p []byte) (int, error) { return len(p), nil }
func (h cookieHasher) Sum(b []byte) []byte         { return b }
func (h cookieHasher) Reset()                      {}
func (h cookieHasher) Size() int                   { return 8 }
func (h cookieHasher) BlockSize() int               { return 8 }
func (h cookieHasher) Sum64() uint64                { return uint64(h) }

var _ hash.Hash64 = cookieHasher(0)

// NewCookieBloom builds an empty filter sized for entries expected cookies
// at the given false-positive rate.
func NewCookieBloom(entries uint64, falsePositiveRate float64) (*CookieBloom, error) {
	f, err := bloomfilter.NewOptimal(entries, falsePositiveRate)
	if err != nil {
		return nil, fmt.Errorf("purge: cookie bloom: %w", err)
	}
	return &CookieBloom{filter: f}, nil
}

// Add records that cookie has written into the container.
func (b *CookieBloom) Add(cookie uint64) {
	b.filter.Add(cookieHasher(cookie))
}

// MaybeContains reports whether cookie might have written into the
// container. False means "definitely not" (safe to short-circuit); true
// means "check the authoritative cookie_max_epoch map".
func (b *CookieBloom) MaybeContains(cookie uint64) bool {
	return b.filter.Contains(cookieHasher(cookie))
}
