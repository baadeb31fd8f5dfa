package vea

import "container/list"

// classBucket is one size-class LRU: extents whose block count is at most
// upperBound, kept ordered by ascending age (oldest, smallest age, at the
// front) per testable property 3. Grounded on vea_internal.h's vfc_lrus /
// vfc_sizes and vea_free.c's blkcnt_to_lru age-ordered insertion. Modeled
// with container/list rather than an intrusive list: no *list.Element is
// ever returned outside this file, satisfying the Design Notes'
// "arena-index + sibling indices, no raw node pointers" requirement from
// the caller's point of view.
type classBucket struct {
	upperBound uint32
	l          *list.List // Value: *Extent
}

// sizeClasses is the array of size-class LRUs, indexed ascending by
// upperBound, covering block counts up to largeThresh; anything larger
// belongs in the max-heap instead.
type sizeClasses struct {
	buckets     []*classBucket
	largeThresh uint32
}

// newSizeClasses builds buckets with power-of-two upper bounds
//1,2,4,...,largeThresh, the smallest granularity that still keeps the
// number of buckets logarithmic in largeThresh.
func newSizeClasses(largeThresh uint32) *sizeClasses {
	sc := &sizeClasses{largeThresh: largeThresh}
	for bound := uint32(1); bound < largeThresh; bound *= 2 {
		sc.buckets = append(sc.buckets, &classBucket{upperBound: bound, l: list.New()})
	}
	sc.buckets = append(sc.buckets, &classBucket{upperBound: largeThresh, l: list.New()})
	return sc
}

// bucketFor returns the smallest-fitting bucket index for cnt, or -1 if cnt
// exceeds every bucket (belongs in the large heap instead).
func (sc *sizeClasses) bucketFor(cnt uint32) int {
	for i, b := range sc.buckets {
		if b.upperBound >= cnt {
			return i
		}
	}
	return -1
}

// insert places e into the bucket whose upperBound is the smallest one
// covering e.Cnt, keeping the bucket's list sorted ascending by age.
func (sc *sizeClasses) insert(e *Extent) {
	idx := sc.bucketFor(e.Cnt)
	if idx < 0 {
		idx = len(sc.buckets) - 1
	}
	b := sc.buckets[idx]
	for el := b.l.Front(); el != nil; el = el.Next() {
		if el.Value.(*Extent).Age >= e.Age {
			b.l.InsertBefore(e, el)
			return
		}
	}
	b.l.PushBack(e)
}

// remove deletes e from whichever bucket holds it, by identity.
func (sc *sizeClasses) remove(e *Extent) bool {
	for _, b := range sc.buckets {
		for el := b.l.Front(); el != nil; el = el.Next() {
			if el.Value.(*Extent) == e {
				b.l.Remove(el)
				return true
			}
		}
	}
	return false
}

// firstFit scans buckets from the smallest fitting class upward and, within
// each, takes the head (oldest) entry whose Cnt is actually >= blkCnt
// (bucket membership is an upper bound on Cnt, not an exact match).
func (sc *sizeClasses) firstFit(blkCnt uint32) *Extent {
	start := sc.bucketFor(blkCnt)
	if start < 0 {
		return nil
	}
	for i := start; i < len(sc.buckets); i++ {
		for el := sc.buckets[i].l.Front(); el != nil; el = el.Next() {
			e := el.Value.(*Extent)
			if e.Cnt >= blkCnt {
				return e
			}
		}
	}
	return nil
}

// checkAgeOrder validates testable property 3 for every bucket: used by
// tests, not by production call paths.
func (sc *sizeClasses) checkAgeOrder() bool {
	for _, b := range sc.buckets {
		var prev *Extent
		for el := b.l.Front(); el != nil; el = el.Next() {
			e := el.Value.(*Extent)
			if prev != nil && prev.Age > e.Age {
				return false
			}
			prev = e
		}
	}
	return true
}
