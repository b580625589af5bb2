package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"pricealert_go/internal/domain"
	"pricealert_go/internal/event"
	"pricealert_go/internal/infra"
)

// Evaluator consumes one cycle's resolved prices.
type Evaluator interface {
	Evaluate(ctx context.Context, config domain.ConfigSnapshot, states domain.StateSnapshot, prices map[string]domain.Quote)
}

// Scheduler owns the watch configuration and alert state. It is the only
// goroutine that mutates them: command handlers post mutations to the inbox
// and the loop applies them between polling work.
type Scheduler struct {
	resolver  *Resolver
	evaluator Evaluator
	configs   domain.ConfigStore
	states    domain.StateStore

	inbox       chan event.Mutation
	interval    time.Duration
	symbolPause time.Duration

	config domain.ConfigSnapshot
	state  domain.StateSnapshot
}

// NewScheduler wires the polling loop. interval is the cycle period,
// symbolPause the gap between symbol resolutions inside one cycle.
func NewScheduler(resolver *Resolver, evaluator Evaluator, configs domain.ConfigStore, states domain.StateStore, interval, symbolPause time.Duration) *Scheduler {
	return &Scheduler{
		resolver:    resolver,
		evaluator:   evaluator,
		configs:     configs,
		states:      states,
		inbox:       make(chan event.Mutation, 64),
		interval:    interval,
		symbolPause: symbolPause,
	}
}

// Inbox is where command handlers post mutations.
func (s *Scheduler) Inbox() chan<- event.Mutation {
	return s.inbox
}

// Run loads the persisted snapshots and polls until the context ends.
// It MUST be the only goroutine touching s.config and s.state.
func (s *Scheduler) Run(ctx context.Context) error {
	var err error
	s.config, err = s.configs.LoadConfig(ctx)
	if err != nil {
		return err
	}
	s.state, err = s.states.LoadState(ctx)
	if err != nil {
		return err
	}

	slog.Info("⏰ scheduler started",
		slog.Duration("interval", s.interval),
		slog.Int("users", len(s.config)))

	for {
		s.runCycle(ctx)
		if err := s.sleepAndDrain(ctx, s.interval); err != nil {
			slog.Info("scheduler stopped")
			return nil
		}
	}
}

// runCycle resolves every tracked symbol once and feeds the results to the
// evaluator. The symbol union means ten users watching BTC cost one fetch.
func (s *Scheduler) runCycle(ctx context.Context) {
	s.drainInbox(ctx)

	union := s.config.SymbolUnion()
	if len(union) == 0 {
		return
	}

	symbols := make([]string, 0, len(union))
	for sym := range union {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	prices := make(map[string]domain.Quote, len(symbols))
	for i, symbol := range symbols {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && s.symbolPause > 0 {
			if err := s.sleepAndDrain(ctx, s.symbolPause); err != nil {
				return
			}
		}

		quote, err := s.resolver.Resolve(ctx, symbol)
		if err != nil {
			slog.Warn("no price this cycle",
				slog.String("symbol", symbol),
				slog.Any("error", err))
			continue
		}
		prices[symbol] = quote
	}

	s.evaluator.Evaluate(ctx, s.config, s.state, prices)
	infra.GlobalMetrics.RecordCycle(len(symbols))

	if snap := infra.GlobalMetrics.Snapshot(); snap.CyclesCompleted%12 == 0 {
		slog.Info("📊 metrics",
			slog.Uint64("cycles", snap.CyclesCompleted),
			slog.Uint64("resolved", snap.PricesResolved),
			slog.Uint64("resolve_failures", snap.ResolveFailures),
			slog.Uint64("alerts", snap.AlertsSent),
			slog.Uint64("send_failures", snap.SendFailures),
			slog.Uint64("store_fallbacks", snap.StoreFallbacks))
	}
}

// sleepAndDrain waits out d while still answering inbox mutations, so /add
// replies stay snappy even mid-cycle. Returns an error only on cancellation.
func (s *Scheduler) sleepAndDrain(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case m := <-s.inbox:
			s.apply(ctx, m)
		}
	}
}

func (s *Scheduler) drainInbox(ctx context.Context) {
	for {
		select {
		case m := <-s.inbox:
			s.apply(ctx, m)
		default:
			return
		}
	}
}

// apply executes one mutation against the owned snapshots and persists the
// change before answering, so a confirmed reply is never lost to a crash.
func (s *Scheduler) apply(ctx context.Context, m event.Mutation) {
	switch ev := m.(type) {
	case event.WatchUpsert:
		_, existed := s.config[ev.UserID][ev.Asset.Symbol]
		s.config.Upsert(ev.UserID, ev.Asset)
		err := s.configs.UpsertWatch(ctx, ev.UserID, ev.Asset)
		if err != nil {
			slog.Error("watch upsert persist failed",
				slog.String("user", ev.UserID),
				slog.String("symbol", ev.Asset.Symbol),
				slog.Any("error", err))
		}
		ev.Reply <- event.UpsertResult{Created: !existed, Asset: ev.Asset, Err: err}

	case event.WatchRemove:
		removed := s.config.Remove(ev.UserID, ev.Symbol)
		var err error
		if !removed {
			err = domain.ErrUnknownSymbol
		}
		if removed {
			if states, ok := s.state[ev.UserID]; ok {
				delete(states, ev.Symbol)
				if len(states) == 0 {
					delete(s.state, ev.UserID)
				}
			}
			err = s.configs.RemoveWatch(ctx, ev.UserID, ev.Symbol)
			if err != nil {
				slog.Error("watch remove persist failed",
					slog.String("user", ev.UserID),
					slog.String("symbol", ev.Symbol),
					slog.Any("error", err))
			}
		}
		ev.Reply <- event.RemoveResult{Removed: removed, Err: err}

	case event.WatchListQuery:
		ev.Reply <- event.ListResult{Watches: s.config.Clone()[ev.UserID]}

	default:
		slog.Warn("unknown mutation dropped")
	}
}
