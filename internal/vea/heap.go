package vea

import "container/heap"

// extentHeap is a max-heap of large free extents (blk_cnt > LargeThresh),
// ranked by block count. Shaped after the teacher's iteratorHeap
// (core/state/snapshot/iterator_heap.go): a plain slice implementing
// container/heap.Interface, with Push/Pop only ever called through the
// package-level heap.Push/heap.Pop/heap.Fix/heap.Remove helpers so no raw
// slice index ever escapes this file.
type extentHeap []*Extent

func (h extentHeap) Len() int { return len(h) }

// Less orders by descending block count, so Pop/heap[0] is always the
// largest extent (a max-heap).
func (h extentHeap) Less(i, j int) bool { return h[i].Cnt > h[j].Cnt }

func (h extentHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *extentHeap) Push(x interface{}) {
	*h = append(*h, x.(*Extent))
}

func (h *extentHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// largeHeap wraps extentHeap with the package's own push/pop/peek/remove
// vocabulary, matching vfc_heap in vea_internal.h.
type largeHeap struct {
	h extentHeap
}

func newLargeHeap() *largeHeap {
	return &largeHeap{h: extentHeap{}}
}

func (lh *largeHeap) push(e *Extent) {
	heap.Push(&lh.h, e)
}

// peek returns the current root (largest extent) without removing it, or
// nil if the heap is empty.
func (lh *largeHeap) peek() *Extent {
	if len(lh.h) == 0 {
		return nil
	}
	return lh.h[0]
}

// popRoot removes and returns the current root.
func (lh *largeHeap) popRoot() *Extent {
	if len(lh.h) == 0 {
		return nil
	}
	return heap.Pop(&lh.h).(*Extent)
}

// remove deletes e from the heap by identity, used when an extent that was
// indexed in the heap gets merged/re-carved by a path other than popRoot.
func (lh *largeHeap) remove(e *Extent) bool {
	for i, cand := range lh.h {
		if cand == e {
			heap.Remove(&lh.h, i)
			return true
		}
	}
	return false
}

func (lh *largeHeap) len() int { return len(lh.h) }

// max returns the largest block count currently in the heap, 0 if empty —
// used by the TestableProperty "max_heap.root.cnt == max(e.cnt for e in heap)".
func (lh *largeHeap) max() uint32 {
	var m uint32
	for _, e := range lh.h {
		if e.Cnt > m {
			m = e.Cnt
		}
	}
	return m
}
