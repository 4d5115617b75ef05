// Package listing drives server-paginated, client-filtered lists with
// debounced search. The same controller backs users, modules and chat
// history; only the fetch function and the search predicate differ.
//
// Search is applied client-side against the rows of the currently fetched
// page, not against the full dataset. The server fetch is scoped by status,
// page and page size only; search text never reaches it. Searching across
// pages therefore requires paging manually. This is a known limitation of
// the backing endpoints, kept here so the controller matches what they
// actually support.
package listing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/simcoach/simcoach/internal/log"
)

// DefaultDebounce is the pause after the last keystroke before a search
// takes effect.
const DefaultDebounce = 300 * time.Millisecond

// Query scopes a server fetch. Search deliberately does not appear here.
type Query struct {
	Status   string
	Page     int // 1-based
	PageSize int
}

// Page is one fetched page of rows.
type Page[T any] struct {
	Rows       []T
	Page       int
	PageSize   int
	TotalCount int
}

// FetchFunc loads one page from the backend.
type FetchFunc[T any] func(ctx context.Context, q Query) (Page[T], error)

// MatchFunc reports whether a row matches the search text. Nil disables
// client-side filtering.
type MatchFunc[T any] func(row T, search string) bool

// State is a snapshot of the controller for rendering. Rows holds the
// visible rows after the search filter; TotalCount is the server-side
// total for the active status filter.
type State[T any] struct {
	Rows       []T
	Page       int
	PageSize   int
	TotalCount int
	Status     string
	Search     string
	Loading    bool
	Loaded     bool
	Err        error
}

// Config contains all parameters for a list controller.
type Config[T any] struct {
	Fetch  FetchFunc[T]
	Match  MatchFunc[T]
	Logger log.Logger

	// Status and PageSize set the initial query scope.
	Status   string
	PageSize int

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// AfterFunc schedules the debounce callback. Nil means time.AfterFunc;
	// tests inject a manual trigger.
	AfterFunc func(d time.Duration, f func()) *time.Timer

	// OnUpdate, when set, is called after every applied state change with
	// a snapshot. It runs outside the controller's lock.
	OnUpdate func(State[T])
}

func (cfg Config[T]) validate() error {
	if cfg.Fetch == nil {
		return errors.New("fetch function is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.PageSize < 0 {
		return fmt.Errorf("page size must not be negative, got %d", cfg.PageSize)
	}
	return nil
}

// Controller owns the filter, pagination and search state of one list and
// reconciles it with fetch results. Fetches run asynchronously; a
// generation counter discards responses that arrive after a newer fetch
// was triggered, so rapid filter changes can never regress the view.
type Controller[T any] struct {
	fetch     FetchFunc[T]
	match     MatchFunc[T]
	logger    log.Logger
	debounce  time.Duration
	afterFunc func(time.Duration, func()) *time.Timer
	onUpdate  func(State[T])

	mu            sync.Mutex
	closed        bool
	generation    uint64
	timer         *time.Timer
	pendingSearch string
	fetched       []T // current page rows before the search filter
	state         State[T]

	inflight sync.WaitGroup
}

// New creates a list controller. Call Load to issue the first fetch.
func New[T any](cfg Config[T]) (*Controller[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid listing config: %w", err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	afterFunc := cfg.AfterFunc
	if afterFunc == nil {
		afterFunc = time.AfterFunc
	}
	pageSize := cfg.PageSize
	if pageSize == 0 {
		pageSize = 10
	}
	return &Controller[T]{
		fetch:     cfg.Fetch,
		match:     cfg.Match,
		logger:    cfg.Logger,
		debounce:  debounce,
		afterFunc: afterFunc,
		onUpdate:  cfg.OnUpdate,
		state: State[T]{
			Page:     1,
			PageSize: pageSize,
			Status:   cfg.Status,
		},
	}, nil
}

// State returns a snapshot safe to read concurrently with updates.
func (c *Controller[T]) State() State[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Load issues the initial fetch.
func (c *Controller[T]) Load(ctx context.Context) {
	c.startFetch(ctx)
}

// Refresh re-fetches the current page.
func (c *Controller[T]) Refresh(ctx context.Context) {
	c.startFetch(ctx)
}

// SetStatus changes the status filter, resets to page 1 and re-fetches.
func (c *Controller[T]) SetStatus(ctx context.Context, status string) {
	c.mu.Lock()
	if c.closed || c.state.Status == status {
		c.mu.Unlock()
		return
	}
	c.state.Status = status
	c.state.Page = 1
	c.mu.Unlock()
	c.startFetch(ctx)
}

// SetPage moves to a page and re-fetches. Pages below 1 are clamped.
func (c *Controller[T]) SetPage(ctx context.Context, page int) {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	if c.closed || c.state.Page == page {
		c.mu.Unlock()
		return
	}
	c.state.Page = page
	c.mu.Unlock()
	c.startFetch(ctx)
}

// SetPageSize changes the page size, resets to page 1 and re-fetches.
func (c *Controller[T]) SetPageSize(ctx context.Context, size int) {
	if size < 1 {
		return
	}
	c.mu.Lock()
	if c.closed || c.state.PageSize == size {
		c.mu.Unlock()
		return
	}
	c.state.PageSize = size
	c.state.Page = 1
	c.mu.Unlock()
	c.startFetch(ctx)
}

// Search schedules a debounced search. Typing again before the debounce
// fires replaces the pending text; only the last value takes effect. When
// it fires the page resets to 1 and the current page is re-fetched, then
// filtered client-side.
func (c *Controller[T]) Search(ctx context.Context, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pendingSearch = text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.afterFunc(c.debounce, func() {
		c.commitSearch(ctx)
	})
}

func (c *Controller[T]) commitSearch(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.state.Search = c.pendingSearch
	c.state.Page = 1
	c.mu.Unlock()
	c.startFetch(ctx)
}

// Close tears the controller down: the pending debounce is cancelled so no
// update fires after teardown, and in-flight fetches are drained. Their
// results are discarded.
func (c *Controller[T]) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
	c.inflight.Wait()
}

func (c *Controller[T]) startFetch(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.generation++
	gen := c.generation
	q := Query{
		Status:   c.state.Status,
		Page:     c.state.Page,
		PageSize: c.state.PageSize,
	}
	c.state.Loading = true
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		page, err := c.fetch(ctx, q)
		c.apply(gen, q, page, err)
	}()
}

// apply installs a fetch result unless a newer fetch has been triggered or
// the controller is closed. On error the previous rows stay visible; only
// a failed first load yields an empty list.
func (c *Controller[T]) apply(gen uint64, q Query, page Page[T], err error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}

	c.state.Loading = false
	if err != nil {
		c.logger.Warn("list fetch failed",
			"status", q.Status, "page", q.Page, "error", err)
		c.state.Err = err
	} else {
		c.fetched = page.Rows
		c.state.TotalCount = page.TotalCount
		c.state.Err = nil
		c.state.Loaded = true
		c.state.Rows = c.filterLocked()
	}

	snapshot := c.snapshotLocked()
	onUpdate := c.onUpdate
	c.mu.Unlock()

	if onUpdate != nil {
		onUpdate(snapshot)
	}
}

func (c *Controller[T]) filterLocked() []T {
	if c.state.Search == "" || c.match == nil {
		return c.fetched
	}
	rows := make([]T, 0, len(c.fetched))
	for _, row := range c.fetched {
		if c.match(row, c.state.Search) {
			rows = append(rows, row)
		}
	}
	return rows
}

func (c *Controller[T]) snapshotLocked() State[T] {
	snapshot := c.state
	snapshot.Rows = slices.Clone(c.state.Rows)
	return snapshot
}
