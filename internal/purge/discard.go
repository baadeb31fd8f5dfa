package purge

import (
	"fmt"

	"github.com/daos-stack/voscore/internal/kvtree"
	"github.com/daos-stack/voscore/internal/metrics"
)

// Discard implements C7's discard(coh, oid, cookie, epr, credits, anchor) ->
// (finished, credits_left). Unlike Aggregate, discard deletes every value in
// [EprLo, EprHi] whose cookie matches, newest or not, carries no
// max-iterator, and
// consults CookieBloom plus the container's cookie->max-epoch map to
// short-circuit objects that provably hold nothing written under cookie.
// Shares the same recursive OBJ->DKEY->AKEY->VALUE shell as Aggregate.
func (c *Context) Discard(cookie uint64, credits int, anchor *Anchor, bloom *CookieBloom) (finished bool, creditsLeft int, err error) {
	metrics.DiscardCalls.Inc(1)

	if c.OID == NilOID {
		return true, credits, nil
	}
	if c.EprHi < c.EprLo {
		return false, credits, fmt.Errorf("purge: discard: %w: epr_hi < epr_lo", ErrInvalid)
	}

	if isOIDAggregated(anchor, c.OID) {
		return true, credits, nil
	}

	if bloom != nil && !bloom.MaybeContains(cookie) {
		metrics.BloomShortCircuits.Inc(1)
		anchor.set(CompleteOBJ)
		return true, credits, nil
	}
	if maxEp, ok := c.Container.MaxEpochForCookie(cookie); ok {
		if maxEp < c.EprLo {
			// The cookie's highest epoch is below the range being
			// discarded, so every entry it ever wrote is below the range
			// too. A high-water mark above EprHi does NOT short-circuit:
			// the cookie may still have written an earlier, in-range entry
			// that this discard must still delete.
			anchor.set(CompleteOBJ)
			return true, credits, nil
		}
	}

	objHandle, err := c.holdObject(true)
	if err != nil {
		return false, credits, fmt.Errorf("purge: discard: hold object: %w", err)
	}

	dkeys := kvtree.Prepare(objHandle.Node.Dkeys)
	startDKey := anchor.DKey
	op := kvtree.ProbeFirst
	if anchor.isSet(SetDKEY) {
		op = kvtree.ProbeGE
	}

	dkeyFinishedAll := true
	for {
		var dkey string
		var dkeyErr error
		if op == kvtree.ProbeFirst {
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

		subFinished, empty, walkErr := c.discardAkeys(dnode, cookie, anchor, &credits)
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
		// Pause here only if the akey walk itself paused; a dkey whose
		// akeys all finished must advance even if that exhausted the last
		// credit, or it could never be stepped past on resume.
		if !subFinished {
			anchor.DKey = dkey
			anchor.set(SetDKEY)
			dkeyFinishedAll = false
			break
		}
		anchor.clear(SetAKEY)
		anchor.clear(CompleteAKEY)
		anchor.clear(SetVALUE)
		anchor.clear(CompleteVALUE)

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
		op = kvtree.ProbeGE
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

// discardAkeys walks one dkey's akeys, deleting every value entry whose
// cookie matches within [eprLo, eprHi], with no max-iterator exemption.
func (c *Context) discardAkeys(dnode *kvtree.DkeyNode, cookie uint64, anchor *Anchor, credits *int) (subFinished bool, empty bool, err error) {
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

		if walkErr := c.discardValues(anode, cookie, anchor, credits); walkErr != nil {
			return false, false, walkErr
		}
		// Pause here only if discardValues itself paused mid-akey; otherwise
		// fall through to the next akey even with credits at zero.
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

// discardValues deletes every value entry in [eprLo, eprHi] whose cookie
// matches, regardless of its epoch's position relative to any max: discard
// has no "preserve the latest visible version" rule, since the whole point
// is to erase one cookie's writes.
func (c *Context) discardValues(anode *kvtree.AkeyNode, cookie uint64, anchor *Anchor, credits *int) error {
	values := kvtree.Prepare(anode.Values)
	defer values.Finish()

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
		_, entry, ferr := values.Fetch()
		if ferr != nil {
			break
		}
		if entry.Cookie == cookie {
			tx := beginDeleteTx()
			values.Probe(kvtree.ProbeEQ, ep)
			_ = values.Delete()
			_ = tx.Commit()
			*credits--
			metrics.ValuesDeleted.Mark(1)

			nextEp, nerr := values.Probe(kvtree.ProbeGE, ep)
			if nerr != nil {
				break
			}
			ep, perr = nextEp, nil
			continue
		}
		*credits--
		if nerr := values.Next(); nerr != nil {
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
