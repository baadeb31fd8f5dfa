// Package metrics registers the allocator and purge engine's operational
// counters and meters on top of rcrowley/go-metrics, mirroring the registered
// Counter/Meter idiom used throughout the teacher's stack.
package metrics

import "github.com/rcrowley/go-metrics"

var (
	ReserveCalls  = metrics.NewRegisteredCounter("vea/reserve/calls", nil)
	CancelCalls   = metrics.NewRegisteredCounter("vea/cancel/calls", nil)
	PublishCalls  = metrics.NewRegisteredCounter("vea/publish/calls", nil)
	FreeCalls     = metrics.NewRegisteredCounter("vea/free/calls", nil)
	MigrateCalls  = metrics.NewRegisteredCounter("vea/migrate/calls", nil)
	OutOfSpace    = metrics.NewRegisteredCounter("vea/reserve/outofspace", nil)

	BlocksReserved = metrics.NewRegisteredMeter("vea/blocks/reserved", nil)
	BlocksUnmapped = metrics.NewRegisteredMeter("vea/blocks/unmapped", nil)

	AggregateCalls  = metrics.NewRegisteredCounter("purge/aggregate/calls", nil)
	DiscardCalls    = metrics.NewRegisteredCounter("purge/discard/calls", nil)
	ValuesDeleted   = metrics.NewRegisteredMeter("purge/values/deleted", nil)
	BloomShortCircuits = metrics.NewRegisteredCounter("purge/discard/bloom_short_circuits", nil)
)
