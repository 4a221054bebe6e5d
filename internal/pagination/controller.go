package pagination

import (
	"context"
	"errors"
	"log"
	"sync"
)

// DefaultPageSize is used when the caller does not override the limit.
const DefaultPageSize = 20

// ErrInvalidPageSize is returned for page sizes <= 0. This is a caller bug,
// so it fails fast instead of clamping.
var ErrInvalidPageSize = errors.New("pagination: page size must be positive")

// Controller owns the pagination state for exactly one list view: the cursor
// history, the current filters and limit, and the request epoch used to
// discard stale responses. Each mounted view owns its own instance; instances
// are never shared across independently filtered views.
//
// All navigation is cursor-stack based. Moving forward pushes the server's
// next cursor; moving backward pops and replays a previously visited cursor.
// The client-side history is authoritative for "where have I been" — the
// server's prev_cursor is only trusted for a single hop and is not used at
// all once history exists, which avoids drift if server-side ordering shifts
// between visits.
type Controller[T any] struct {
	mu sync.Mutex

	ctx      context.Context
	identity string
	query    QueryFunc[T]
	cache    *Cache[T]
	logger   *log.Logger
	onChange func()

	limit   int
	filters Filters

	// cursorStack always holds at least the first-page sentinel at index 0.
	// currentPage == len(cursorStack).
	cursorStack []string

	// epoch increments on every state change that invalidates in-flight
	// requests. A fetch result is applied only if its captured epoch still
	// matches; there is no network-level cancellation.
	epoch uint64

	loading      bool
	nextInFlight bool

	page          Page[T]
	havePage      bool
	err           error
	totalEstimate int
}

// Option configures a Controller at construction time.
type Option[T any] func(*Controller[T])

// WithPageSize overrides the default page size.
func WithPageSize[T any](n int) Option[T] {
	return func(c *Controller[T]) { c.limit = n }
}

// WithFilters sets the initial filter set.
func WithFilters[T any](f Filters) Option[T] {
	return func(c *Controller[T]) { c.filters = f }
}

// WithCache lets several controllers share one request-dedup cache.
func WithCache[T any](cache *Cache[T]) Option[T] {
	return func(c *Controller[T]) { c.cache = cache }
}

// WithLogger sets the operational logger.
func WithLogger[T any](logger *log.Logger) Option[T] {
	return func(c *Controller[T]) { c.logger = logger }
}

// WithOnChange registers a callback invoked after every applied state
// transition (a fetch starting, landing, or failing). UI callers use it to
// schedule a redraw; the callback runs outside the controller's lock.
func WithOnChange[T any](fn func()) Option[T] {
	return func(c *Controller[T]) { c.onChange = fn }
}

// New constructs a controller for one list view and immediately fetches the
// first page. The identity scopes cache keys (e.g. workspace id + resource
// name); the query adapter performs the actual page fetches.
func New[T any](ctx context.Context, identity string, query QueryFunc[T], opts ...Option[T]) (*Controller[T], error) {
	if query == nil {
		return nil, errors.New("pagination: query adapter is required")
	}

	c := &Controller[T]{
		ctx:           ctx,
		identity:      identity,
		query:         query,
		limit:         DefaultPageSize,
		cursorStack:   []string{FirstPageCursor},
		totalEstimate: -1,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.limit <= 0 {
		return nil, ErrInvalidPageSize
	}
	if c.cache == nil {
		c.cache = NewCache[T]()
	}
	if c.logger == nil {
		c.logger = log.New(log.Writer(), "[pagination] ", log.LstdFlags)
	}

	c.mu.Lock()
	c.epoch++
	c.fetchLocked()
	c.mu.Unlock()
	return c, nil
}

// Snapshot is the read-only view handed to callers: page data, request
// lifecycle state, and derived display metadata.
type Snapshot[T any] struct {
	Data      []T
	IsLoading bool
	Err       error

	CurrentPage     int
	HasNextPage     bool
	HasPreviousPage bool

	// TotalEstimate is the latest successful response's estimate, passed
	// through unmodified; -1 until the first page lands.
	TotalEstimate int
	StartItem     int
	EndItem       int
	PageSize      int
}

// Snapshot returns the current state. Data keeps its last-known-good value
// while a fetch is loading or after one fails, so views never flash empty.
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	currentPage := len(c.cursorStack)
	startItem := (currentPage-1)*c.limit + 1
	endItem := startItem + len(c.page.Items) - 1

	return Snapshot[T]{
		Data:            c.page.Items,
		IsLoading:       c.loading,
		Err:             c.err,
		CurrentPage:     currentPage,
		HasNextPage:     c.havePage && c.page.HasMore && c.page.NextCursor != FirstPageCursor,
		HasPreviousPage: currentPage > 1,
		TotalEstimate:   c.totalEstimate,
		StartItem:       startItem,
		EndItem:         endItem,
		PageSize:        c.limit,
	}
}

// Filters returns the filter set the current cursor stack was derived from.
func (c *Controller[T]) Filters() Filters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filters
}

// GoToNextPage pushes the current page's next cursor and fetches it. It is a
// no-op when there is no next page or while a navigation fetch is already in
// flight: navigation is not queued.
func (c *Controller[T]) GoToNextPage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.havePage || !c.page.HasMore || c.page.NextCursor == FirstPageCursor {
		return
	}
	if c.loading || c.nextInFlight {
		return
	}

	c.cursorStack = append(c.cursorStack, c.page.NextCursor)
	c.epoch++
	c.nextInFlight = true
	c.fetchLocked()
}

// GoToPreviousPage pops the cursor stack and re-requests the cursor now on
// top, replaying client-side history instead of the server's prev_cursor.
// On page 1 it is a no-op.
func (c *Controller[T]) GoToPreviousPage() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cursorStack) <= 1 {
		return
	}

	c.cursorStack = c.cursorStack[:len(c.cursorStack)-1]
	c.epoch++
	c.nextInFlight = false
	c.fetchLocked()
}

// GoToFirstPage resets the cursor stack to the sentinel and fetches the first
// page. Callers invoke it after mutating the search term or other filter
// inputs that live outside SetFilters.
func (c *Controller[T]) GoToFirstPage() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetToFirstLocked()
}

// SetFilters replaces the filter set. Cursors are not portable across filter
// sets, so any change resets to the first page. Setting an equal filter set
// is a no-op.
func (c *Controller[T]) SetFilters(f Filters) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f.Equal(c.filters) {
		return
	}
	c.filters = f
	c.resetToFirstLocked()
}

// SetPageSize changes the limit. Page boundaries differ between limits, so
// cursors from the old limit are unusable and the controller resets to the
// first page. A size <= 0 is rejected.
func (c *Controller[T]) SetPageSize(n int) error {
	if n <= 0 {
		return ErrInvalidPageSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if n == c.limit {
		return nil
	}
	c.limit = n
	c.resetToFirstLocked()
	return nil
}

// Refresh drops every cached page for this controller's query identity and
// refetches the current page. Callers use it after a batch of record
// mutations completes; the controller itself never observes mutations and
// never patches cached pages optimistically.
func (c *Controller[T]) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.InvalidatePrefix(c.identity + "|")
	c.epoch++
	c.nextInFlight = false
	c.fetchLocked()
}

func (c *Controller[T]) resetToFirstLocked() {
	c.cursorStack = c.cursorStack[:1]
	c.epoch++
	c.nextInFlight = false
	c.fetchLocked()
}

// fetchLocked issues the fetch for the cursor currently on top of the stack.
// The caller must hold the lock and must have bumped the epoch already. The
// result is applied only if the captured epoch is still current when it
// resolves; a superseded result is silently discarded, which stands in for
// cancellation since in-flight remote calls cannot be aborted.
func (c *Controller[T]) fetchLocked() {
	epoch := c.epoch
	forward := c.nextInFlight
	req := PageRequest{
		Cursor:  c.cursorStack[len(c.cursorStack)-1],
		Limit:   c.limit,
		Filters: c.filters,
	}
	key := requestKey(c.identity, req)
	c.loading = true

	go func() {
		page, err := c.cache.Do(c.ctx, key, func(ctx context.Context) (Page[T], error) {
			return c.query(ctx, req)
		})

		c.mu.Lock()
		if epoch != c.epoch {
			c.mu.Unlock()
			return
		}
		c.loading = false
		c.nextInFlight = false
		if err != nil {
			if forward {
				// The pushed cursor never landed; pop it so the page index
				// keeps describing the data still on screen. The epoch check
				// above guarantees it is still on top of the stack.
				c.cursorStack = c.cursorStack[:len(c.cursorStack)-1]
			}
			// Stale-while-error: keep the last good page visible.
			c.err = err
			c.logger.Printf("fetch failed for %s: %v", key, err)
		} else {
			c.err = nil
			c.page = page
			c.havePage = true
			c.totalEstimate = page.TotalEstimate
		}
		fn := c.onChange
		c.mu.Unlock()

		if fn != nil {
			fn()
		}
	}()

	if c.onChange != nil {
		// Loading-state transition is observable too; deliver it off-lock.
		go c.onChange()
	}
}
