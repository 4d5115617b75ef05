package listing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/simcoach/simcoach/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type row struct {
	ID   string
	Name string
}

func matchName(r row, search string) bool {
	return strings.Contains(strings.ToLower(r.Name), strings.ToLower(search))
}

// manualTimers captures debounce callbacks so tests fire them explicitly.
// The returned timers never fire on their own.
type manualTimers struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualTimers) AfterFunc(_ time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return time.AfterFunc(time.Hour, func() {})
}

func (m *manualTimers) fireLast(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	if len(m.fns) == 0 {
		m.mu.Unlock()
		t.Fatal("no debounce timer scheduled")
	}
	f := m.fns[len(m.fns)-1]
	m.mu.Unlock()
	f()
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

// harness bundles a controller with an update channel and call counters.
type harness struct {
	controller *Controller[row]
	updates    chan State[row]
	timers     *manualTimers
	fetchCalls atomic.Int64
	failFetch  atomic.Bool
	queries    struct {
		mu   sync.Mutex
		list []Query
	}
}

func newHarness(t *testing.T, rows map[int][]row, total int) *harness {
	t.Helper()
	h := &harness{
		updates: make(chan State[row], 16),
		timers:  &manualTimers{},
	}
	fetch := func(_ context.Context, q Query) (Page[row], error) {
		h.fetchCalls.Add(1)
		h.queries.mu.Lock()
		h.queries.list = append(h.queries.list, q)
		h.queries.mu.Unlock()
		if h.failFetch.Load() {
			return Page[row]{}, errors.New("backend unavailable")
		}
		return Page[row]{
			Rows:       rows[q.Page],
			Page:       q.Page,
			PageSize:   q.PageSize,
			TotalCount: total,
		}, nil
	}
	controller, err := New(Config[row]{
		Fetch:     fetch,
		Match:     matchName,
		Logger:    testutil.DiscardLogger(),
		PageSize:  2,
		AfterFunc: h.timers.AfterFunc,
		OnUpdate:  func(s State[row]) { h.updates <- s },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.controller = controller
	t.Cleanup(controller.Close)
	return h
}

func (h *harness) nextUpdate(t *testing.T) State[row] {
	t.Helper()
	select {
	case s := <-h.updates:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for controller update")
		return State[row]{}
	}
}

var pages = map[int][]row{
	1: {{ID: "1", Name: "Alice"}, {ID: "2", Name: "Bob"}},
	2: {{ID: "3", Name: "Carol"}, {ID: "4", Name: "Alan"}},
}

func TestLoad(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.controller.Load(context.Background())
	state := h.nextUpdate(t)

	if !state.Loaded || state.Loading {
		t.Errorf("state = {loaded: %v, loading: %v}, want loaded and idle", state.Loaded, state.Loading)
	}
	if len(state.Rows) != 2 {
		t.Fatalf("len(Rows) = %d, want 2", len(state.Rows))
	}
	if state.TotalCount != 4 {
		t.Errorf("TotalCount = %d, want 4", state.TotalCount)
	}
	if state.Page != 1 {
		t.Errorf("Page = %d, want 1", state.Page)
	}
}

func TestSetPage(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.controller.Load(context.Background())
	h.nextUpdate(t)

	h.controller.SetPage(context.Background(), 2)
	state := h.nextUpdate(t)

	if state.Page != 2 {
		t.Errorf("Page = %d, want 2", state.Page)
	}
	if len(state.Rows) != 2 || state.Rows[0].Name != "Carol" {
		t.Errorf("Rows = %v, want page 2 rows", state.Rows)
	}

	// Requesting the current page again is a no-op.
	calls := h.fetchCalls.Load()
	h.controller.SetPage(context.Background(), 2)
	if got := h.fetchCalls.Load(); got != calls {
		t.Errorf("fetchCalls = %d, want %d (no refetch for same page)", got, calls)
	}
}

func TestSearch_DebouncedAndClientSide(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.controller.Load(context.Background())
	h.nextUpdate(t)
	h.controller.SetPage(context.Background(), 2)
	h.nextUpdate(t)

	// Two keystrokes inside the debounce window schedule two timers; only
	// the latest text matters when one fires.
	h.controller.Search(context.Background(), "a")
	h.controller.Search(context.Background(), "al")
	if h.timers.count() != 2 {
		t.Fatalf("timers scheduled = %d, want 2", h.timers.count())
	}

	calls := h.fetchCalls.Load()
	h.timers.fireLast(t)
	state := h.nextUpdate(t)

	if h.fetchCalls.Load() != calls+1 {
		t.Errorf("fetchCalls = %d, want %d (one fetch per committed search)", h.fetchCalls.Load(), calls+1)
	}
	if state.Search != "al" {
		t.Errorf("Search = %q, want %q", state.Search, "al")
	}
	if state.Page != 1 {
		t.Errorf("Page = %d, want 1 (search resets pagination)", state.Page)
	}
	// Filtering is client-side over the fetched page: only Alice matches
	// "al" on page 1 (Alan lives on page 2 and is out of reach).
	if len(state.Rows) != 1 || state.Rows[0].Name != "Alice" {
		t.Errorf("Rows = %v, want [Alice]", state.Rows)
	}
	// The server total is untouched by the client-side filter.
	if state.TotalCount != 4 {
		t.Errorf("TotalCount = %d, want 4", state.TotalCount)
	}
}

func TestSearch_CancelledOnClose(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.controller.Load(context.Background())
	h.nextUpdate(t)

	h.controller.Search(context.Background(), "alice")
	calls := h.fetchCalls.Load()
	h.controller.Close()

	// Even if the captured callback fires after teardown, nothing happens.
	h.timers.fireLast(t)
	if got := h.fetchCalls.Load(); got != calls {
		t.Errorf("fetchCalls = %d, want %d (no fetch after Close)", got, calls)
	}
	select {
	case s := <-h.updates:
		t.Errorf("unexpected update after Close: %+v", s)
	default:
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	release := make(chan struct{})
	h := &harness{
		updates: make(chan State[row], 16),
		timers:  &manualTimers{},
	}
	fetch := func(_ context.Context, q Query) (Page[row], error) {
		if q.Page == 1 {
			// The first fetch resolves only after the second one landed.
			<-release
		}
		return Page[row]{Rows: pages[q.Page], Page: q.Page, PageSize: q.PageSize, TotalCount: 4}, nil
	}
	controller, err := New(Config[row]{
		Fetch:     fetch,
		Match:     matchName,
		Logger:    testutil.DiscardLogger(),
		PageSize:  2,
		AfterFunc: h.timers.AfterFunc,
		OnUpdate:  func(s State[row]) { h.updates <- s },
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.controller = controller

	controller.Load(context.Background())
	controller.SetPage(context.Background(), 2)

	state := h.nextUpdate(t)
	if state.Page != 2 || state.Rows[0].Name != "Carol" {
		t.Fatalf("first applied update = %+v, want page 2", state)
	}

	close(release)
	controller.Close() // drains the stale fetch

	final := controller.State()
	if final.Page != 2 || len(final.Rows) != 2 || final.Rows[0].Name != "Carol" {
		t.Errorf("stale page 1 response overwrote page 2 state: %+v", final)
	}
	select {
	case s := <-h.updates:
		t.Errorf("stale response produced an update: %+v", s)
	default:
	}
}

func TestFetchErrorKeepsPreviousRows(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.controller.Load(context.Background())
	h.nextUpdate(t)

	h.failFetch.Store(true)
	h.controller.SetPage(context.Background(), 2)
	state := h.nextUpdate(t)

	if state.Err == nil {
		t.Error("Err = nil, want fetch error recorded")
	}
	if len(state.Rows) != 2 || state.Rows[0].Name != "Alice" {
		t.Errorf("Rows = %v, want previous page 1 rows kept", state.Rows)
	}

	// A later successful fetch clears the error.
	h.failFetch.Store(false)
	h.controller.Refresh(context.Background())
	state = h.nextUpdate(t)
	if state.Err != nil {
		t.Errorf("Err = %v, want nil after recovery", state.Err)
	}
}

func TestFirstLoadError(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.failFetch.Store(true)
	h.controller.Load(context.Background())
	state := h.nextUpdate(t)

	if state.Err == nil {
		t.Error("Err = nil, want first-load error")
	}
	if len(state.Rows) != 0 {
		t.Errorf("Rows = %v, want empty on failed first load", state.Rows)
	}
	if state.Loaded {
		t.Error("Loaded = true, want false after failed first load")
	}
}

func TestStatusChangeResetsPage(t *testing.T) {
	h := newHarness(t, pages, 4)

	h.controller.Load(context.Background())
	h.nextUpdate(t)
	h.controller.SetPage(context.Background(), 2)
	h.nextUpdate(t)

	h.controller.SetStatus(context.Background(), "closed")
	state := h.nextUpdate(t)

	if state.Status != "closed" {
		t.Errorf("Status = %q, want closed", state.Status)
	}
	if state.Page != 1 {
		t.Errorf("Page = %d, want 1 after status change", state.Page)
	}

	h.queries.mu.Lock()
	last := h.queries.list[len(h.queries.list)-1]
	h.queries.mu.Unlock()
	if last.Status != "closed" || last.Page != 1 {
		t.Errorf("last query = %+v, want {Status: closed, Page: 1}", last)
	}
}
