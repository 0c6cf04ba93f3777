// Package monitor runs the poll loop: fetch the current Hacktivity page,
// filter out already-seen reports, notify the new ones oldest-first, and
// advance the persisted cursor.
package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"h1mon/internal/cursor"
	"h1mon/internal/feed"
	logx "h1mon/pkg/logx"
)

// Fetcher is the feed client seam (see internal/feed).
type Fetcher interface {
	FetchRecent(ctx context.Context) ([]feed.Report, error)
}

// Notifier is the delivery seam (see internal/notify).
type Notifier interface {
	Notify(ctx context.Context, r feed.Report) error
}

// Monitor owns the cycle logic. There is exactly one writer of the cursor
// (the loop itself), so no locking is needed around store access; the mutex
// only guards live schedule swaps from config reload.
type Monitor struct {
	fetcher  Fetcher
	store    cursor.Store
	notifier Notifier
	log      logx.Logger

	mu    sync.Mutex
	sched Schedule
}

func New(fetcher Fetcher, store cursor.Store, notifier Notifier, sched Schedule, log logx.Logger) *Monitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Monitor{
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
		sched:    sched,
		log:      log,
	}
}

// SetSchedule swaps the poll schedule; it takes effect after the current sleep.
func (m *Monitor) SetSchedule(s Schedule) {
	m.mu.Lock()
	old := m.sched
	m.sched = s
	m.mu.Unlock()
	if old.String() != s.String() {
		m.log.Info("schedule updated", logx.String("schedule", s.String()))
	}
}

func (m *Monitor) schedule() Schedule {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sched
}

// RunCycle executes one fetch-filter-notify-persist pass.
//
// Every failure mode is recoverable: the error is logged here with enough
// context to diagnose, the cursor never advances past an undelivered report,
// and the next cycle retries from the same point.
func (m *Monitor) RunCycle(ctx context.Context) error {
	reports, err := m.fetcher.FetchRecent(ctx)
	if err != nil {
		m.log.Error("fetch failed; skipping cycle", logx.Err(err))
		return err
	}
	if len(reports) == 0 {
		m.log.Debug("feed returned no reports")
		return nil
	}

	last, ok, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, cursor.ErrCorrupt) {
			m.log.Error("cursor state corrupt; skipping cycle without overwriting", logx.Err(err))
		} else {
			m.log.Error("cursor load failed; skipping cycle", logx.Err(err))
		}
		return err
	}

	if !ok {
		return m.firstRun(ctx, reports)
	}

	cur, err := feed.ParseID(last)
	if err != nil {
		// validID should make this unreachable; treat it like corruption.
		m.log.Error("cursor state corrupt; skipping cycle without overwriting", logx.Err(err))
		return err
	}

	pending := newerThan(reports, cur)
	if len(pending) == 0 {
		m.log.Debug("no new disclosures", logx.String("cursor", last))
		return nil
	}
	m.log.Info("new disclosures found", logx.Int("count", len(pending)), logx.String("cursor", last))

	// Deliver oldest-first so notifications arrive in chronological order.
	// The cursor is persisted after each success, so a delivery failure or a
	// crash mid-cycle duplicates at most the single report that failed.
	for _, r := range pending {
		if err := m.notifier.Notify(ctx, r); err != nil {
			m.log.Error("delivery failed; halting cycle",
				logx.String("report_id", r.ID), logx.Err(err))
			return err
		}
		if err := m.store.Save(ctx, r.ID); err != nil {
			m.log.Error("cursor save failed; halting cycle",
				logx.String("report_id", r.ID), logx.Err(err))
			return err
		}
	}
	return nil
}

// firstRun handles the no-cursor case: notify the single newest report only,
// so a fresh install never floods the channel with the whole page.
func (m *Monitor) firstRun(ctx context.Context, reports []feed.Report) error {
	newest := reports[0]
	m.log.Info("first run: notifying newest disclosure only",
		logx.String("report_id", newest.ID))

	// Notify before saving: if delivery fails the cursor stays absent and the
	// next cycle retries, which is the same at-least-once guarantee as the
	// steady state.
	if err := m.notifier.Notify(ctx, newest); err != nil {
		m.log.Error("delivery failed; halting cycle",
			logx.String("report_id", newest.ID), logx.Err(err))
		return err
	}
	if err := m.store.Save(ctx, newest.ID); err != nil {
		m.log.Error("cursor save failed; halting cycle",
			logx.String("report_id", newest.ID), logx.Err(err))
		return err
	}
	return nil
}

// newerThan returns the reports with ids strictly greater than cur, in
// ascending (oldest-first) delivery order.
func newerThan(reports []feed.Report, cur uint64) []feed.Report {
	out := make([]feed.Report, 0, len(reports))
	for _, r := range reports {
		n, err := feed.ParseID(r.ID)
		if err != nil {
			continue // feed validated ids already
		}
		if n > cur {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := feed.ParseID(out[i].ID)
		b, _ := feed.ParseID(out[j].ID)
		return a < b
	})
	return out
}

// Run executes cycles on the configured schedule until ctx is done.
// Cycles never overlap: one runs to completion before the next sleep starts,
// and the sleep is interruptible by ctx cancellation.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor started", logx.String("schedule", m.schedule().String()))

	// First cycle immediately; subsequent ones follow the schedule.
	m.cycle(ctx)

	for {
		next := m.schedule().Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			m.log.Info("monitor stopped")
			return
		case <-timer.C:
		}
		m.cycle(ctx)
	}
}

func (m *Monitor) cycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	started := time.Now()
	if err := m.RunCycle(ctx); err != nil {
		// Already logged with context; a bad cycle never crashes the loop.
		return
	}
	m.log.Debug("cycle complete", logx.Duration("took", time.Since(started)))
}
