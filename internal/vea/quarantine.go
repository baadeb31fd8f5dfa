package vea

import (
	"context"

	"github.com/daos-stack/voscore/internal/config"
	"github.com/daos-stack/voscore/internal/metrics"
	"github.com/daos-stack/voscore/internal/txn"
)

const migrateCallbackKey = "vea.migrateEndCB"

// Free implements C5's free(blk_off, blk_cnt): write the freed range to the
// persistent map with age=Frozen, quarantine it in the aggregate LRU, and
// register migrateEndCB on tx's StageNone stage (idempotent per tx).
func (s *Space) Free(tx *txn.Tx, cfg config.Config, blkOff uint64, blkCnt uint32) error {
	s.mu.Lock()
	metrics.FreeCalls.Inc(1)
	ext := Extent{Off: blkOff, Cnt: blkCnt}
	if err := s.persistentFree(ext); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.aggregatedFree(ext); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	tx.AddCallback(txn.StageNone, migrateCallbackKey, func() {
		s.migrateEndCB(cfg)
	})
	return nil
}

// migrateEndCB runs only after a successful commit (txn.StageNone never
// fires on abort). It implements vea_free.c's migrate_end_cb exactly: the
// LRU scan (which never yields) stamps lastMigrate before any unmap call,
// so a second migrate racing during a yielding Unmap sees entries that have
// already left every visible index — see DESIGN.md's open-question #3.
func (s *Space) migrateEndCB(cfg config.Config) {
	s.drainQuarantine(context.Background(), cfg, false)
}

// Migrate is the forced-migration entry point for callers outside a
// transaction (§4.3's "forced migration" path), with identical semantics
// to migrateEndCB. If force is true the MIGRATE_INTERVAL_MS gate is
// bypassed, useful for tests and for an explicit maintenance sweep.
func (s *Space) Migrate(ctx context.Context, cfg config.Config, force bool) {
	s.drainQuarantine(ctx, cfg, force)
}

type quarantineEntry struct {
	ext        Extent
	needsUnmap bool
}

func (s *Space) drainQuarantine(ctx context.Context, cfg config.Config, force bool) {
	metrics.MigrateCalls.Inc(1)

	s.mu.Lock()
	now := s.clk.NowMS()
	if !force && now < s.lastMigrateMS+cfg.MigrateIntervalMS {
		s.mu.Unlock()
		return
	}

	var pending []quarantineEntry
	var el = s.aggLRU.Front()
	for el != nil {
		next := el.Next()
		e := el.Value.(*Extent)
		if force || now >= uint64(e.Age)+cfg.MigrateIntervalMS {
			s.aggLRU.Remove(el)
			s.aggOffset.delete(e.Off)
			if s.dev != nil {
				pending = append(pending, quarantineEntry{ext: *e, needsUnmap: true})
			} else {
				if err := s.compoundFree(Extent{Off: e.Off, Cnt: e.Cnt}, GenAge); err != nil {
					log.Error("migrate: compoundFree failed", "off", e.Off, "cnt", e.Cnt, "err", err)
				}
			}
		}
		el = next
	}
	// The scan above never yields; stamp lastMigrate now, before any unmap
	// call, exactly as migrate_end_cb does.
	s.lastMigrateMS = now
	s.mu.Unlock()

	for _, pe := range pending {
		if s.dev != nil {
			byteOff := pe.ext.Off * uint64(s.hdr.BlkSz)
			byteCnt := uint64(pe.ext.Cnt) * uint64(s.hdr.BlkSz)
			if err := s.dev.Unmap(ctx, byteOff, byteCnt); err != nil {
				log.Error("migrate: unmap failed", "off", pe.ext.Off, "cnt", pe.ext.Cnt, "err", err)
				continue
			}
			metrics.BlocksUnmapped.Mark(int64(pe.ext.Cnt))
		}
		s.mu.Lock()
		if err := s.compoundFree(Extent{Off: pe.ext.Off, Cnt: pe.ext.Cnt}, GenAge); err != nil {
			log.Error("migrate: compoundFree after unmap failed", "off", pe.ext.Off, "cnt", pe.ext.Cnt, "err", err)
		}
		s.mu.Unlock()
	}
}
