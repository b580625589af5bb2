package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	pricesResolved  atomic.Uint64
	resolveFailures atomic.Uint64
	alertsSent      atomic.Uint64
	sendFailures    atomic.Uint64
	baselinesSeeded atomic.Uint64
	storeFallbacks  atomic.Uint64
	commandsHandled atomic.Uint64

	// Gauges
	cyclesCompleted atomic.Uint64
	trackedSymbols  atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordPriceResolved records one successful symbol resolution.
func (m *Metrics) RecordPriceResolved() {
	m.pricesResolved.Add(1)
}

// RecordResolveFailure records a symbol with no resolvable price this cycle.
func (m *Metrics) RecordResolveFailure() {
	m.resolveFailures.Add(1)
}

// RecordAlertSent records one confirmed notification delivery.
func (m *Metrics) RecordAlertSent() {
	m.alertsSent.Add(1)
}

// RecordSendFailure records a failed notification delivery.
func (m *Metrics) RecordSendFailure() {
	m.sendFailures.Add(1)
}

// RecordBaselineSeeded records a first-observation baseline write.
func (m *Metrics) RecordBaselineSeeded() {
	m.baselinesSeeded.Add(1)
}

// RecordStoreFallback records a write that fell through to the file store.
func (m *Metrics) RecordStoreFallback() {
	m.storeFallbacks.Add(1)
}

// RecordCommandHandled records one processed chat command.
func (m *Metrics) RecordCommandHandled() {
	m.commandsHandled.Add(1)
}

// RecordCycle records one completed polling cycle over the given symbol set.
func (m *Metrics) RecordCycle(symbols int) {
	m.cyclesCompleted.Add(1)
	m.trackedSymbols.Store(int32(symbols))
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	PricesResolved  uint64
	ResolveFailures uint64
	AlertsSent      uint64
	SendFailures    uint64
	BaselinesSeeded uint64
	StoreFallbacks  uint64
	CommandsHandled uint64
	CyclesCompleted uint64
	TrackedSymbols  int32
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		PricesResolved:  m.pricesResolved.Load(),
		ResolveFailures: m.resolveFailures.Load(),
		AlertsSent:      m.alertsSent.Load(),
		SendFailures:    m.sendFailures.Load(),
		BaselinesSeeded: m.baselinesSeeded.Load(),
		StoreFallbacks:  m.storeFallbacks.Load(),
		CommandsHandled: m.commandsHandled.Load(),
		CyclesCompleted: m.cyclesCompleted.Load(),
		TrackedSymbols:  m.trackedSymbols.Load(),
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.pricesResolved.Store(0)
	m.resolveFailures.Store(0)
	m.alertsSent.Store(0)
	m.sendFailures.Store(0)
	m.baselinesSeeded.Store(0)
	m.storeFallbacks.Store(0)
	m.commandsHandled.Store(0)
	m.cyclesCompleted.Store(0)
	m.trackedSymbols.Store(0)
}
