package monitor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"h1mon/internal/cursor"
	"h1mon/internal/feed"
	logx "h1mon/pkg/logx"
)

type fakeFetcher struct {
	reports []feed.Report
	err     error
	calls   int
}

func (f *fakeFetcher) FetchRecent(ctx context.Context) ([]feed.Report, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.reports, nil
}

type memStore struct {
	id      string
	ok      bool
	loadErr error
	saveErr error
	saves   []string
}

func (s *memStore) Load(ctx context.Context) (string, bool, error) {
	if s.loadErr != nil {
		return "", false, s.loadErr
	}
	return s.id, s.ok, nil
}

func (s *memStore) Save(ctx context.Context, id string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.id = id
	s.ok = true
	s.saves = append(s.saves, id)
	return nil
}

func (s *memStore) Close() error { return nil }

type fakeNotifier struct {
	delivered []string
	failID    string
	failErr   error
}

func (n *fakeNotifier) Notify(ctx context.Context, r feed.Report) error {
	if n.failID != "" && r.ID == n.failID {
		if n.failErr != nil {
			return n.failErr
		}
		return fmt.Errorf("delivery refused for %s", r.ID)
	}
	n.delivered = append(n.delivered, r.ID)
	return nil
}

// page builds a feed page newest-first, the client's normalized order.
func page(ids ...int) []feed.Report {
	out := make([]feed.Report, 0, len(ids))
	for _, id := range ids {
		out = append(out, feed.Report{
			ID:       fmt.Sprintf("%d", id),
			Program:  "acme",
			Severity: "High",
			Title:    fmt.Sprintf("report %d", id),
			URL:      fmt.Sprintf("https://hackerone.com/reports/%d", id),
		})
	}
	return out
}

func newTestMonitor(f *fakeFetcher, s *memStore, n *fakeNotifier) *Monitor {
	sched, _ := ParseSchedule("10m")
	return New(f, s, n, sched, logx.Nop())
}

func TestCycleIdempotent(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{id: "7", ok: true}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	for i := 0; i < 2; i++ {
		if err := m.RunCycle(context.Background()); err != nil {
			t.Fatalf("cycle %d: unexpected error: %v", i, err)
		}
	}
	if len(notifier.delivered) != 0 {
		t.Fatalf("expected zero deliveries, got %v", notifier.delivered)
	}
	if len(store.saves) != 0 || store.id != "7" {
		t.Fatalf("cursor changed: saves=%v id=%s", store.saves, store.id)
	}
}

func TestCycleDeliversOldestFirst(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{id: "4", ok: true}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"5", "6", "7"}
	if len(notifier.delivered) != len(want) {
		t.Fatalf("delivered = %v, want %v", notifier.delivered, want)
	}
	for i := range want {
		if notifier.delivered[i] != want[i] {
			t.Fatalf("delivered = %v, want %v", notifier.delivered, want)
		}
	}
	if store.id != "7" {
		t.Fatalf("cursor = %s, want 7", store.id)
	}
}

func TestCycleAtMostOneGap(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{id: "4", ok: true}
	notifier := &fakeNotifier{failID: "6"}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); err == nil {
		t.Fatal("expected delivery error")
	}
	if store.id != "5" {
		t.Fatalf("cursor = %s, want 5 (last successful delivery)", store.id)
	}

	// Next cycle re-attempts 6 and 7, not starting from 7.
	notifier.failID = ""
	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("retry cycle: unexpected error: %v", err)
	}
	want := []string{"5", "6", "7"}
	if len(notifier.delivered) != len(want) {
		t.Fatalf("delivered = %v, want %v", notifier.delivered, want)
	}
	for i := range want {
		if notifier.delivered[i] != want[i] {
			t.Fatalf("delivered = %v, want %v", notifier.delivered, want)
		}
	}
	if store.id != "7" {
		t.Fatalf("cursor = %s, want 7", store.id)
	}
}

func TestFirstRunNotifiesNewestOnly(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.delivered) != 1 || notifier.delivered[0] != "7" {
		t.Fatalf("delivered = %v, want exactly [7]", notifier.delivered)
	}
	if store.id != "7" {
		t.Fatalf("cursor = %s, want 7", store.id)
	}

	// 5 and 6 are never retroactively notified.
	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("second cycle: unexpected error: %v", err)
	}
	if len(notifier.delivered) != 1 {
		t.Fatalf("delivered = %v, want only the first-run notification", notifier.delivered)
	}
}

func TestFirstRunDeliveryFailureLeavesCursorAbsent(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{}
	notifier := &fakeNotifier{failID: "7"}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); err == nil {
		t.Fatal("expected delivery error")
	}
	if store.ok {
		t.Fatalf("cursor initialized despite failed delivery: %s", store.id)
	}

	// Next cycle retries the same first-run policy.
	notifier.failID = ""
	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("retry cycle: unexpected error: %v", err)
	}
	if len(notifier.delivered) != 1 || notifier.delivered[0] != "7" {
		t.Fatalf("delivered = %v, want [7]", notifier.delivered)
	}
}

func TestCorruptCursorSkipsCycle(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{loadErr: &cursor.StoreError{
		Op:   "load",
		Path: "state.txt",
		Err:  fmt.Errorf("%w: %q", cursor.ErrCorrupt, "garbage"),
	}}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	err := m.RunCycle(context.Background())
	if !errors.Is(err, cursor.ErrCorrupt) {
		t.Fatalf("expected corrupt-state error, got %v", err)
	}
	if len(notifier.delivered) != 0 || len(store.saves) != 0 {
		t.Fatalf("corrupt state must not trigger deliveries or saves: %v %v",
			notifier.delivered, store.saves)
	}
}

func TestFetchErrorSkipsCycle(t *testing.T) {
	t.Parallel()
	fetchErr := &feed.FetchError{Op: "status", Status: 503}
	fetcher := &fakeFetcher{err: fetchErr}
	store := &memStore{id: "4", ok: true}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if len(notifier.delivered) != 0 || len(store.saves) != 0 {
		t.Fatal("fetch failure must not trigger deliveries or cursor movement")
	}
	if store.id != "4" {
		t.Fatalf("cursor = %s, want unchanged 4", store.id)
	}
}

func TestEmptyFeedIsANoop(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{}
	store := &memStore{id: "4", ok: true}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(notifier.delivered) != 0 || len(store.saves) != 0 {
		t.Fatal("empty feed must not notify or move the cursor")
	}
}

func TestCursorSaveFailureHaltsCycle(t *testing.T) {
	t.Parallel()
	fetcher := &fakeFetcher{reports: page(7, 6, 5)}
	store := &memStore{id: "4", ok: true, saveErr: errors.New("disk full")}
	notifier := &fakeNotifier{}
	m := newTestMonitor(fetcher, store, notifier)

	if err := m.RunCycle(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	// Only the first report was attempted before the halt.
	if len(notifier.delivered) != 1 || notifier.delivered[0] != "5" {
		t.Fatalf("delivered = %v, want [5]", notifier.delivered)
	}
}
