package vea

import (
	"fmt"

	"github.com/daos-stack/voscore/internal/metrics"
	"github.com/daos-stack/voscore/internal/txn"
)

// carve removes donor from every allocatable index, computes the carved
// range and residual, and reinserts the residual (if any) with donor's
// original age preserved (NO_GEN_AGE semantics). fromEnd selects whether
// the carved range comes from the tail of donor (the "dividable" large
// path, preserving a large contiguous head for future large requests) or
// from its start (every other path).
func (s *Space) carve(donor *Extent, blkCnt uint32, fromEnd bool) (Reserved, error) {
	s.offset.delete(donor.Off)
	s.declassify(donor)

	var carvedOff uint64
	var residual *Extent
	if fromEnd {
		carvedOff = donor.End() - uint64(blkCnt)
		if donor.Cnt > blkCnt {
			residual = &Extent{Off: donor.Off, Cnt: donor.Cnt - blkCnt, Age: donor.Age}
		}
	} else {
		carvedOff = donor.Off
		if donor.Cnt > blkCnt {
			residual = &Extent{Off: donor.Off + uint64(blkCnt), Cnt: donor.Cnt - blkCnt, Age: donor.Age}
		}
	}
	if residual != nil {
		if err := s.compoundFree(*residual, 0); err != nil {
			return Reserved{}, err
		}
	}
	return Reserved{Off: carvedOff, Cnt: blkCnt, DonorAge: donor.Age}, nil
}

// Reserve implements the five-step fallback chain from §4.2. hint may be
// nil (no locality preference).
func (s *Space) Reserve(blkCnt uint32, hint *Hint) (ReservedList, error) {
	if blkCnt == 0 {
		return ReservedList{}, fmt.Errorf("vea: reserve: %w: blkCnt must be > 0", ErrInvalid)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.ReserveCalls.Inc(1)

	// Step 1: hinted path.
	if hint != nil {
		if donor, ok := s.offset.get(hint.LastOff); ok && donor.Cnt >= blkCnt {
			r, err := s.carve(donor, blkCnt, false)
			if err != nil {
				return ReservedList{}, err
			}
			hint.LastOff = r.Off + uint64(r.Cnt)
			hint.Seq++
			metrics.BlocksReserved.Mark(int64(blkCnt))
			return ReservedList{Items: []Reserved{r}}, nil
		}
	}

	// Step 2: large path.
	if root := s.heap.peek(); root != nil && root.Cnt >= blkCnt && !root.Age.IsFrozen() {
		dividable := root.Cnt > 2*s.largeThresh
		r, err := s.carve(root, blkCnt, dividable)
		if err != nil {
			return ReservedList{}, err
		}
		if hint != nil {
			hint.LastOff = r.Off + uint64(r.Cnt)
			hint.Seq++
		}
		metrics.BlocksReserved.Mark(int64(blkCnt))
		return ReservedList{Items: []Reserved{r}}, nil
	}

	// Step 3: size-class path.
	if donor := s.classes.firstFit(blkCnt); donor != nil {
		r, err := s.carve(donor, blkCnt, false)
		if err != nil {
			return ReservedList{}, err
		}
		if hint != nil {
			hint.LastOff = r.Off + uint64(r.Cnt)
			hint.Seq++
		}
		metrics.BlocksReserved.Mark(int64(blkCnt))
		return ReservedList{Items: []Reserved{r}}, nil
	}

	// Step 4: vector fallback — repeat step 3 with decreasing chunk sizes
	// until the request is satisfied.
	var items []Reserved
	remaining := blkCnt
	chunk := s.largeThresh
	if chunk == 0 || chunk > remaining {
		chunk = remaining
	}
	for remaining > 0 && chunk > 0 {
		want := chunk
		if want > remaining {
			want = remaining
		}
		donor := s.classes.firstFit(want)
		if donor == nil {
			chunk /= 2
			continue
		}
		got := want
		if donor.Cnt < got {
			got = donor.Cnt
		}
		r, err := s.carve(donor, got, false)
		if err != nil {
			s.rollbackPartial(items)
			return ReservedList{}, err
		}
		items = append(items, r)
		remaining -= got
	}
	if remaining == 0 {
		if hint != nil && len(items) > 0 {
			last := items[len(items)-1]
			hint.LastOff = last.Off + uint64(last.Cnt)
			hint.Seq++
		}
		metrics.BlocksReserved.Mark(int64(blkCnt))
		return ReservedList{Items: items}, nil
	}

	// Step 5: failure. Unwind any partial vector carves before reporting
	// OUT_OF_SPACE, since a failed reserve must leave all state unchanged.
	s.rollbackPartial(items)
	metrics.OutOfSpace.Inc(1)
	return ReservedList{}, ErrOutOfSpace
}

// rollbackPartial reinstates already-carved items, used when a vector
// reservation cannot ultimately be satisfied in full.
func (s *Space) rollbackPartial(items []Reserved) {
	for _, it := range items {
		_ = s.compoundFree(Extent{Off: it.Off, Cnt: it.Cnt, Age: it.DonorAge}, 0)
	}
}

// Cancel reinstates every reserved extent and rolls the hint back to its
// pre-reserve value. Callable outside a transaction.
func (s *Space) Cancel(hint *Hint, preReserve Hint, list ReservedList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.CancelCalls.Inc(1)
	for _, it := range list.Items {
		if err := s.compoundFree(Extent{Off: it.Off, Cnt: it.Cnt, Age: it.DonorAge}, NoMergeRequired); err != nil {
			return err
		}
	}
	if hint != nil {
		*hint = preReserve
	}
	return nil
}

// Publish must run inside the caller's transaction: it deletes/trims the
// persistent free records matching every reserved extent and installs the
// hint transactionally via tx.Add so an abort restores the prior persistent
// state (the caller must still call Cancel separately to unwind the
// in-memory indexes, per §7).
func (s *Space) Publish(tx *txn.Tx, hint *Hint, newHint Hint, list ReservedList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.PublishCalls.Inc(1)

	for _, it := range list.Items {
		if err := s.trimPersistent(tx, it.Off, it.Cnt); err != nil {
			return err
		}
	}
	if hint != nil {
		prior := *hint
		if err := tx.Add(func() { *hint = newHint }, func() { *hint = prior }); err != nil {
			return err
		}
	}
	return nil
}

// trimPersistent removes [off, off+cnt) from the persistent free map,
// splitting the covering record into up to two residual records, all
// logged on tx so an abort restores the original record.
func (s *Space) trimPersistent(tx *txn.Tx, off uint64, cnt uint32) error {
	covering, ok := s.persistent.le(off)
	if !ok || covering.End() < off+uint64(cnt) {
		return fmt.Errorf("vea: publish: %w: no persistent free record covers [%d,%d)", ErrCorrupt, off, off+uint64(cnt))
	}
	prior := *covering
	hasHead := prior.Off < off
	hasTail := prior.End() > off+uint64(cnt)
	tailOff := off + uint64(cnt)

	apply := func() {
		s.persistent.delete(prior.Off)
		if hasHead {
			s.persistent.insert(&Extent{Off: prior.Off, Cnt: uint32(off - prior.Off), Age: AgeFrozen})
		}
		if hasTail {
			s.persistent.insert(&Extent{Off: tailOff, Cnt: uint32(prior.End() - tailOff), Age: AgeFrozen})
		}
	}
	undo := func() {
		if hasHead {
			s.persistent.delete(prior.Off)
		}
		if hasTail {
			s.persistent.delete(tailOff)
		}
		s.persistent.insert(&Extent{Off: prior.Off, Cnt: prior.Cnt, Age: AgeFrozen})
	}
	return tx.Add(apply, undo)
}
