package purge

import (
	"fmt"

	"github.com/daos-stack/voscore/internal/kvtree"
	"github.com/daos-stack/voscore/internal/metrics"
)

// Aggregate implements C6's aggregate(coh, oid, epr_lo, epr_hi, credits,
// anchor) -> (finished, credits_left). anchor is mutated in place so the
// caller can persist it and resume a later call exactly where this one left
// off.
func (c *Context) Aggregate(credits int, anchor *Anchor) (finished bool, creditsLeft int, err error) {
	metrics.AggregateCalls.Inc(1)

	if c.OID == NilOID {
		if c.EprHi > c.Container.PurgedEpoch {
			c.Container.PurgedEpoch = c.EprHi
		}
		return true, credits, nil
	}
	if c.EprHi < c.EprLo {
		return false, credits, fmt.Errorf("purge: aggregate: %w: epr_hi < epr_lo", ErrInvalid)
	}
	if isOIDAggregated(anchor, c.OID) {
		return true, credits, nil
	}
	if c.Container.PurgedEpoch >= c.EprHi {
		return true, credits, nil
	}

	mode := epochMode(c.EprLo, c.EprHi)

	objHandle, err := c.holdObject(true)
	if err != nil {
		return false, credits, fmt.Errorf("purge: aggregate: hold object: %w", err)
	}

	dkeys := kvtree.Prepare(objHandle.Node.Dkeys)
	var dkeyErr error
	var dkeyOp kvtree.ProbeOp = kvtree.ProbeFirst
	if anchor.isSet(SetDKEY) {
		dkeyOp = kvtree.ProbeGE
	}
	startDKey := anchor.DKey

	dkeyFinishedAll := true
	for {
		var dkey string
		if dkeyOp == kvtree.ProbeFirst {
			dkey, dkeyErr = dkeys.Probe(kvtree.ProbeFirst, "")
		} else {
			dkey, dkeyErr = dkeys.Probe(kvtree.ProbeGE, startDKey)
		}
		if dkeyErr != nil {
			anchor.clear(SetDKEY)
			anchor.set(CompleteDKEY)
			break
		}

		_, dnode, ferr := dkeys.Fetch()
		if ferr != nil {
			anchor.clear(SetDKEY)
			anchor.set(CompleteDKEY)
			break
		}

		subFinished, empty, walkErr := c.walkAkeys(dnode, mode, anchor, &credits)
		if walkErr != nil {
			c.releaseObject(objHandle)
			return false, credits, walkErr
		}
		if subFinished && empty {
			tx := beginDeleteTx()
			dkeys.Probe(kvtree.ProbeEQ, dkey)
			_ = dkeys.Delete()
			_ = tx.Commit()
		}
		// Pause here only if the akey walk itself paused (credits ran out
		// mid-subtree); a dkey whose akeys all finished must advance to the
		// next dkey even if that exhausted the last credit, or a dkey whose
		// sole akey finishes exactly as credits hit zero would never be able
		// to move past it on resume.
		if !subFinished {
			anchor.DKey = dkey
			anchor.set(SetDKEY)
			dkeyFinishedAll = false
			break
		}
		startDKey = dkey
		dkeyOp = kvtree.ProbeGE
		anchor.clear(SetAKEY)
		anchor.clear(CompleteAKEY)
		anchor.clear(SetVALUE)
		anchor.clear(CompleteVALUE)

		// Advance past dkey on the next loop iteration: probe GE on the
		// same key would refetch it, so step to strict-next via Next().
		if err := dkeys.Next(); err != nil {
			anchor.clear(SetDKEY)
			anchor.set(CompleteDKEY)
			break
		}
		next, _, ferr2 := dkeys.Fetch()
		if ferr2 != nil {
			anchor.clear(SetDKEY)
			anchor.set(CompleteDKEY)
			break
		}
		startDKey = next
	}
	dkeys.Finish()

	finished = dkeyFinishedAll
	if finished {
		anchor.set(CompleteOBJ)
		c.evictObject()
	}
	c.releaseObject(objHandle)
	return finished, credits, nil
}

// walkAkeys processes every akey of one dkey, deleting fully-aggregated
// empty akeys, and reports whether the dkey's scan reached its end
// (subFinished) and whether the dkey's akey tree ended up empty.
func (c *Context) walkAkeys(dnode *kvtree.DkeyNode, mode EpochMode, anchor *Anchor, credits *int) (subFinished bool, empty bool, err error) {
	akeys := kvtree.Prepare(dnode.Akeys)
	defer akeys.Finish()

	startAKey := anchor.AKey
	op := kvtree.ProbeFirst
	if anchor.isSet(SetAKEY) {
		op = kvtree.ProbeGE
	}

	for {
		var akey string
		var perr error
		if op == kvtree.ProbeFirst {
			akey, perr = akeys.Probe(kvtree.ProbeFirst, "")
		} else {
			akey, perr = akeys.Probe(kvtree.ProbeGE, startAKey)
		}
		if perr != nil {
			anchor.clear(SetAKEY)
			anchor.set(CompleteAKEY)
			return true, dnode.Akeys.Empty(), nil
		}
		_, anode, ferr := akeys.Fetch()
		if ferr != nil {
			anchor.clear(SetAKEY)
			anchor.set(CompleteAKEY)
			return true, dnode.Akeys.Empty(), nil
		}

		if *credits <= 0 {
			anchor.AKey = akey
			anchor.set(SetAKEY)
			return false, false, nil
		}

		if walkErr := c.collapseValues(anode, mode, anchor, credits); walkErr != nil {
			return false, false, walkErr
		}
		// Pause here only if collapseValues itself paused mid-akey; if it
		// ran to completion exactly as credits hit zero, fall through and
		// advance to the next akey instead of re-entering this exhausted
		// one on resume (which would loop forever re-walking its single
		// surviving max-epoch entry).
		if anchor.isSet(SetVALUE) {
			anchor.AKey = akey
			anchor.set(SetAKEY)
			return false, false, nil
		}
		if anode.Values.Empty() {
			tx := beginDeleteTx()
			akeys.Probe(kvtree.ProbeEQ, akey)
			_ = akeys.Delete()
			_ = tx.Commit()
		}

		if err := akeys.Next(); err != nil {
			anchor.clear(SetAKEY)
			anchor.set(CompleteAKEY)
			return true, dnode.Akeys.Empty(), nil
		}
		next, _, ferr2 := akeys.Fetch()
		if ferr2 != nil {
			anchor.clear(SetAKEY)
			anchor.set(CompleteAKEY)
			return true, dnode.Akeys.Empty(), nil
		}
		startAKey = next
		op = kvtree.ProbeGE
	}
}

// collapseValues implements the VALUE-level body of the per-level loop:
// find the max-epoch entry within [eprLo, eprHi] (the max-iterator) and
// delete every other in-range entry, preserving invariant 6 ("aggregation
// never deletes the single most-recent version visible at the upper
// bound"). The max-epoch entry is computed once at the start of every call,
// in every EpochMode, including a call that resumes from a saved VALUE
// anchor; mode does not change what is deleted.
func (c *Context) collapseValues(anode *kvtree.AkeyNode, mode EpochMode, anchor *Anchor, credits *int) error {
	values := kvtree.Prepare(anode.Values)
	defer values.Finish()

	maxEpoch, ok := maxEpochInRange(anode, c.EprLo, c.EprHi)
	if !ok {
		// No entries in range at all; nothing to collapse. Mark this level
		// complete explicitly so callers never mistake a never-visited akey
		// for a paused one.
		anchor.clear(SetVALUE)
		anchor.set(CompleteVALUE)
		return nil
	}

	start := c.EprLo
	if anchor.isSet(SetVALUE) {
		start = anchor.ValueEpoch
	}

	ep, perr := values.Probe(kvtree.ProbeGE, start)
	for perr == nil && ep <= c.EprHi {
		if *credits <= 0 {
			anchor.ValueEpoch = ep
			anchor.set(SetVALUE)
			return nil
		}
		if ep != maxEpoch {
			tx := beginDeleteTx()
			values.Probe(kvtree.ProbeEQ, ep)
			_ = values.Delete()
			_ = tx.Commit()
			*credits--
			metrics.ValuesDeleted.Mark(1)
			// mode does not affect the delete decision: maxEpoch was
			// computed once, above, and cannot change mid-akey since
			// deletes never touch the max entry.
			_ = mode
			// ep's entry is already gone, so a GE probe at ep lands on the
			// next surviving epoch, if any.
			nextEp, nerr := values.Probe(kvtree.ProbeGE, ep)
			if nerr != nil {
				break
			}
			ep, perr = nextEp, nil
			continue
		}
		*credits--
		nerr := values.Next()
		if nerr != nil {
			break
		}
		ep, _, perr = fetchEpoch(values)
		if perr != nil {
			break
		}
	}
	anchor.clear(SetVALUE)
	anchor.set(CompleteVALUE)
	return nil
}

func fetchEpoch(h *kvtree.Handle[uint64, kvtree.ValueEntry]) (uint64, kvtree.ValueEntry, error) {
	return h.Fetch()
}

// maxEpochInRange scans the akey's value tree descending from eprHi and
// returns the highest epoch <= eprHi and >= eprLo, if any.
func maxEpochInRange(anode *kvtree.AkeyNode, eprLo, eprHi uint64) (uint64, bool) {
	h := kvtree.Prepare(anode.Values)
	ep, err := h.Probe(kvtree.ProbeLE, eprHi)
	if err != nil {
		return 0, false
	}
	if ep < eprLo {
		return 0, false
	}
	return ep, true
}
