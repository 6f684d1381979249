// Package session orchestrates the user-facing operations: debounced query
// input, store readiness tracking, and refresh of sources and results after
// imports and deletions.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/importer"
	"sheetsearch/internal/search"
	"sheetsearch/internal/storage"
)

// StoreState tracks readiness of the backing store.
type StoreState int

const (
	StoreUninit StoreState = iota
	StoreProbing
	StoreReady
	StoreFailed
)

// String returns the lowercase name of the state.
func (s StoreState) String() string {
	switch s {
	case StoreUninit:
		return "uninit"
	case StoreProbing:
		return "probing"
	case StoreReady:
		return "ready"
	case StoreFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Searcher is the query side of the search engine.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Result, error)
}

// FileImporter is the import side of the pipeline.
type FileImporter interface {
	Import(ctx context.Context, fileName string, size int64, r io.Reader, confirm importer.Confirmer) (*importer.Result, error)
}

// Snapshot is the latest applied query result, for display.
type Snapshot struct {
	Query     string              `json:"query"`
	Rows      []storage.RowRecord `json:"rows"`
	ElapsedMs int64               `json:"elapsedMs"`
	Err       error               `json:"-"`
}

// Options tunes the controller. Zero values fall back to defaults.
type Options struct {
	Debounce      time.Duration    // Quiet period before a query dispatches (default 300ms)
	RetryAttempts int              // Store init attempts before giving up (default 5)
	RetryBackoff  time.Duration    // Base backoff between attempts, grows linearly (default 500ms)
	InitStore     func(ctx context.Context) error // Probe+prepare the store; defaults to store.Ping
}

// Controller serializes query dispatches through a debounce timer and guards
// against out-of-order result application with sequence numbers: an earlier
// slow search cannot overwrite a later fast one.
type Controller struct {
	store    storage.RecordStore
	searcher Searcher
	importer FileImporter
	opts     Options
	logger   *slog.Logger

	mu       sync.Mutex
	state    StoreState
	stateErr error
	timer    *time.Timer
	query    string
	seq      uint64 // Latest dispatched search
	results  Snapshot
	sources  []storage.SourceInfo
}

// NewController creates a session controller. The store handle is constructed
// once at startup and injected here; the controller owns its readiness.
func NewController(store storage.RecordStore, searcher Searcher, imp FileImporter, opts Options) *Controller {
	if opts.Debounce <= 0 {
		opts.Debounce = 300 * time.Millisecond
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.InitStore == nil {
		opts.InitStore = store.Ping
	}
	return &Controller{
		store:    store,
		searcher: searcher,
		importer: imp,
		opts:     opts,
		logger:   slog.Default(),
		state:    StoreUninit,
		results:  Snapshot{Rows: []storage.RowRecord{}},
	}
}

// Init probes the store with a bounded retry budget and increasing backoff.
// On success the controller becomes Ready and loads the source list; after
// the budget is exhausted it becomes Failed for the rest of the session and
// upload/search surface StorageUnavailable.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	c.state = StoreProbing
	c.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= c.opts.RetryAttempts; attempt++ {
		lastErr = c.opts.InitStore(ctx)
		if lastErr == nil {
			c.mu.Lock()
			c.state = StoreReady
			c.stateErr = nil
			c.mu.Unlock()
			c.logger.InfoContext(ctx, "store ready", "attempts", attempt)
			_ = c.refreshSources(ctx)
			return nil
		}

		c.logger.WarnContext(ctx, "store probe failed",
			"attempt", attempt, "max_attempts", c.opts.RetryAttempts, "error", lastErr)
		if attempt == c.opts.RetryAttempts {
			break
		}
		select {
		case <-time.After(c.opts.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = c.opts.RetryAttempts
		}
	}

	err := apperrors.Wrap(lastErr, apperrors.ErrStorageUnavailable)
	c.mu.Lock()
	c.state = StoreFailed
	c.stateErr = err
	c.mu.Unlock()
	c.logger.ErrorContext(ctx, "store unavailable, session degraded", "error", lastErr)
	return err
}

// State returns the store readiness state and, when Failed, its error.
func (c *Controller) State() (StoreState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.stateErr
}

// ready returns nil when operations may touch the store.
func (c *Controller) ready() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StoreReady {
		if c.stateErr != nil {
			return c.stateErr
		}
		return apperrors.ErrStorageUnavailable
	}
	return nil
}

// SetQuery records new input and (re)starts the debounce timer. The last
// keystroke within the quiet period wins; earlier in-flight searches are not
// cancelled but their results are discarded by the sequence guard.
func (c *Controller) SetQuery(text string) {
	c.mu.Lock()
	c.query = text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, func() {
		_, _ = c.dispatch(context.Background(), text)
	})
	c.mu.Unlock()
}

// SearchNow bypasses the debounce (for callers that already batched their
// input, like an HTTP request) but still participates in sequencing.
func (c *Controller) SearchNow(ctx context.Context, text string) (search.Result, error) {
	c.mu.Lock()
	c.query = text
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()
	return c.dispatch(ctx, text)
}

// dispatch runs one sequence-numbered search and applies the result only if
// no later dispatch has happened in the meantime.
func (c *Controller) dispatch(ctx context.Context, text string) (search.Result, error) {
	if err := c.ready(); err != nil {
		c.mu.Lock()
		c.results = Snapshot{Query: text, Rows: []storage.RowRecord{}, Err: err}
		c.mu.Unlock()
		return search.Result{Rows: []storage.RowRecord{}}, err
	}

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	res, err := c.searcher.Search(ctx, text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		// A later dispatch superseded this one; drop the stale result.
		return res, err
	}
	c.results = Snapshot{Query: text, Rows: res.Rows, ElapsedMs: res.ElapsedMs, Err: err}
	return res, err
}

// Results returns the latest applied result snapshot.
func (c *Controller) Results() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.results
}

// Upload imports one file. overwrite answers the conflict confirmation for
// this call. On success the source list refreshes and, if the displayed
// results reference the affected source, the current query re-runs.
func (c *Controller) Upload(ctx context.Context, fileName string, size int64, r io.Reader, overwrite bool) (*importer.Result, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	res, err := c.importer.Import(ctx, fileName, size, r, importer.AutoConfirm(overwrite))
	if err != nil {
		return nil, err
	}

	_ = c.refreshSources(ctx)
	c.rerunIfReferenced(ctx, res.SourceID)
	return res, nil
}

// Delete removes one source. On success the source list refreshes and, if
// the displayed results reference it, the current query re-runs.
func (c *Controller) Delete(ctx context.Context, sourceID string) error {
	if err := c.ready(); err != nil {
		return err
	}

	if err := c.store.DeleteSource(ctx, sourceID); err != nil {
		return err
	}

	_ = c.refreshSources(ctx)
	c.rerunIfReferenced(ctx, sourceID)
	return nil
}

// Sources returns the cached source list.
func (c *Controller) Sources() []storage.SourceInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]storage.SourceInfo, len(c.sources))
	copy(out, c.sources)
	return out
}

// RefreshSources reloads the source list from the store.
func (c *Controller) RefreshSources(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.refreshSources(ctx)
}

func (c *Controller) refreshSources(ctx context.Context) error {
	sources, err := c.store.ListSources(ctx)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to refresh sources", "error", err)
		return err
	}
	c.mu.Lock()
	c.sources = sources
	c.mu.Unlock()
	return nil
}

// rerunIfReferenced re-runs the current query when the displayed results
// contain rows from the affected source.
func (c *Controller) rerunIfReferenced(ctx context.Context, sourceID string) {
	c.mu.Lock()
	query := c.query
	referenced := false
	for _, row := range c.results.Rows {
		if row.SourceID == sourceID {
			referenced = true
			break
		}
	}
	c.mu.Unlock()

	if referenced && query != "" {
		_, _ = c.dispatch(ctx, query)
	}
}
