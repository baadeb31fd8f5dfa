package vea

import "github.com/daos-stack/voscore/internal/kvtree"

// offsetIndex is the free-offset tree (or the aggregate-offset tree, reused
// for the quarantine): an offset-ordered index of *Extent providing the
// LE/GE neighbor probes merge_free_ext needs. Backed by kvtree.Tree, which
// itself wraps google/btree's generic BTreeG.
type offsetIndex struct {
	t *kvtree.Tree[uint64, *Extent]
}

func newOffsetIndex() *offsetIndex {
	return &offsetIndex{t: kvtree.New[uint64, *Extent](func(a, b uint64) bool { return a < b })}
}

func (oi *offsetIndex) insert(e *Extent) { oi.t.Update(e.Off, e) }

func (oi *offsetIndex) delete(off uint64) bool { return oi.t.Delete(off) }

func (oi *offsetIndex) get(off uint64) (*Extent, bool) { return oi.t.Get(off) }

func (oi *offsetIndex) len() int { return oi.t.Len() }

// le returns the extent with the largest Off <= off, if any.
func (oi *offsetIndex) le(off uint64) (*Extent, bool) {
	h := kvtree.Prepare(oi.t)
	if _, err := h.Probe(kvtree.ProbeLE, off); err != nil {
		return nil, false
	}
	_, e, err := h.Fetch()
	if err != nil {
		return nil, false
	}
	return e, true
}

// ge returns the extent with the smallest Off >= off, if any.
func (oi *offsetIndex) ge(off uint64) (*Extent, bool) {
	h := kvtree.Prepare(oi.t)
	if _, err := h.Probe(kvtree.ProbeGE, off); err != nil {
		return nil, false
	}
	_, e, err := h.Fetch()
	if err != nil {
		return nil, false
	}
	return e, true
}

// all returns every extent in offset order; only used by tests and the
// invariant checker.
func (oi *offsetIndex) all() []*Extent {
	var out []*Extent
	h := kvtree.Prepare(oi.t)
	_, err := h.Probe(kvtree.ProbeFirst, 0)
	for err == nil {
		_, e, ferr := h.Fetch()
		if ferr != nil {
			break
		}
		out = append(out, e)
		err = h.Next()
	}
	return out
}

// mergeResult is the outcome of mergeFreeExt: the (possibly widened) extent
// plus the donor extents that were absorbed into it and must also be
// removed from whichever heap/size-class index held them.
type mergeResult struct {
	merged   Extent
	absorbed []*Extent
}

// mergeFreeExt implements merge_free_ext from vea_free.c: probe the LE
// neighbor, then the GE neighbor (using the possibly-already-widened
// extent), absorbing each if adjacent. Any detected overlap is always
// ErrCorrupt. Adjacency under noMerge is also ErrCorrupt (the caller
// asserted no merge would be needed).
func mergeFreeExt(idx *offsetIndex, ext Extent, noMerge bool) (mergeResult, error) {
	res := mergeResult{merged: ext}

	if le, ok := idx.le(res.merged.Off); ok && le.Off != res.merged.Off {
		if le.Overlaps(res.merged) {
			return mergeResult{}, ErrCorrupt
		}
		if le.Adjacent(res.merged) {
			if noMerge {
				return mergeResult{}, ErrCorrupt
			}
			res.merged = Extent{Off: le.Off, Cnt: le.Cnt + res.merged.Cnt, Age: le.Age}
			res.absorbed = append(res.absorbed, le)
		}
	}
	if ge, ok := idx.ge(res.merged.End()); ok {
		if res.merged.Overlaps(*ge) {
			return mergeResult{}, ErrCorrupt
		}
		if res.merged.Adjacent(*ge) {
			if noMerge {
				return mergeResult{}, ErrCorrupt
			}
			res.merged = Extent{Off: res.merged.Off, Cnt: res.merged.Cnt + ge.Cnt, Age: res.merged.Age}
			res.absorbed = append(res.absorbed, ge)
		}
	}
	return res, nil
}
