package session

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/importer"
	"sheetsearch/internal/search"
	"sheetsearch/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	require.NoError(t, storage.Migrate(context.Background(), db))

	return storage.NewStore(db)
}

// fakeSearcher records queries and can delay specific ones to simulate a
// slow earlier search racing a fast later one.
type fakeSearcher struct {
	mu     sync.Mutex
	calls  []string
	delays map[string]time.Duration
}

func (f *fakeSearcher) Search(_ context.Context, query string) (search.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	delay := f.delays[query]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	return search.Result{Rows: []storage.RowRecord{
		{ID: 1, SourceID: "fake::" + query, Fields: map[string]string{"q": query}},
	}}, nil
}

func (f *fakeSearcher) queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// fakeImporter stores a canned single-row generation under fileName::Sheet1.
type fakeImporter struct {
	store storage.RecordStore
}

func (f *fakeImporter) Import(ctx context.Context, fileName string, _ int64, _ io.Reader, _ importer.Confirmer) (*importer.Result, error) {
	sourceID := fileName + "::Sheet1"
	if err := f.store.PutSource(ctx, sourceID, []string{"Name"}, []map[string]string{{"Name": "Ann"}}); err != nil {
		return nil, err
	}
	return &importer.Result{SourceID: sourceID, SheetName: "Sheet1", Headers: []string{"Name"}, RowCount: 1}, nil
}

func readyController(t *testing.T, store storage.RecordStore, searcher Searcher, imp FileImporter, opts Options) *Controller {
	t.Helper()
	if opts.RetryAttempts == 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBackoff == 0 {
		opts.RetryBackoff = time.Millisecond
	}
	ctrl := NewController(store, searcher, imp, opts)
	require.NoError(t, ctrl.Init(context.Background()))
	return ctrl
}

func TestDebounceLastKeystrokeWins(t *testing.T) {
	store := newTestStore(t)
	searcher := &fakeSearcher{}
	ctrl := readyController(t, store, searcher, &fakeImporter{store: store}, Options{
		Debounce: 30 * time.Millisecond,
	})

	ctrl.SetQuery("a")
	ctrl.SetQuery("ab")
	ctrl.SetQuery("abc")

	time.Sleep(120 * time.Millisecond)

	assert.Equal(t, []string{"abc"}, searcher.queries(),
		"only the last keystroke within the quiet period may dispatch")
	assert.Equal(t, "abc", ctrl.Results().Query)
}

func TestStaleResultDiscarded(t *testing.T) {
	store := newTestStore(t)
	searcher := &fakeSearcher{delays: map[string]time.Duration{"slow": 80 * time.Millisecond}}
	ctrl := readyController(t, store, searcher, &fakeImporter{store: store}, Options{
		Debounce: 5 * time.Millisecond,
	})

	ctrl.SetQuery("slow")
	time.Sleep(25 * time.Millisecond) // Let the slow search dispatch
	ctrl.SetQuery("fast")

	time.Sleep(200 * time.Millisecond) // Both searches have finished by now

	snap := ctrl.Results()
	assert.Equal(t, "fast", snap.Query,
		"the slow earlier result must not overwrite the fast later one")
	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "fake::fast", snap.Rows[0].SourceID)
}

func TestInitRetriesThenReady(t *testing.T) {
	store := newTestStore(t)
	attempts := 0
	ctrl := NewController(store, &fakeSearcher{}, &fakeImporter{store: store}, Options{
		RetryAttempts: 5,
		RetryBackoff:  time.Millisecond,
		InitStore: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("not yet")
			}
			return nil
		},
	})

	require.NoError(t, ctrl.Init(context.Background()))
	state, stateErr := ctrl.State()
	assert.Equal(t, StoreReady, state)
	assert.NoError(t, stateErr)
	assert.Equal(t, 3, attempts)
}

func TestInitExhaustionDegradesSession(t *testing.T) {
	store := newTestStore(t)
	attempts := 0
	ctrl := NewController(store, &fakeSearcher{}, &fakeImporter{store: store}, Options{
		RetryAttempts: 3,
		RetryBackoff:  time.Millisecond,
		InitStore: func(context.Context) error {
			attempts++
			return errors.New("engine gone")
		},
	})

	err := ctrl.Init(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageUnavailable))
	assert.Equal(t, 3, attempts, "retry budget is bounded")

	state, stateErr := ctrl.State()
	assert.Equal(t, StoreFailed, state)
	assert.Error(t, stateErr)

	// Degraded mode disables search and upload for the session
	_, err = ctrl.SearchNow(context.Background(), "ann")
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageUnavailable))
	_, err = ctrl.Upload(context.Background(), "x.xlsx", 0, nil, false)
	assert.True(t, apperrors.Is(err, apperrors.ErrStorageUnavailable))
	assert.True(t, apperrors.Is(ctrl.Delete(context.Background(), "x"), apperrors.ErrStorageUnavailable))
}

func TestUploadRefreshesSources(t *testing.T) {
	store := newTestStore(t)
	ctrl := readyController(t, store, &fakeSearcher{}, &fakeImporter{store: store}, Options{})

	res, err := ctrl.Upload(context.Background(), "x.xlsx", 0, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "x.xlsx::Sheet1", res.SourceID)

	sources := ctrl.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, "x.xlsx::Sheet1", sources[0].SourceID)
	assert.Equal(t, 1, sources[0].RowCount)
}

func TestDeleteRerunsReferencedQuery(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.PutSource(context.Background(), "x.xlsx::Sheet1",
		[]string{"Name"}, []map[string]string{{"Name": "Ann"}}))

	engine := search.NewEngine(store, 200, 5)
	ctrl := readyController(t, store, engine, &fakeImporter{store: store}, Options{})

	res, err := ctrl.SearchNow(context.Background(), "ann")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	require.NoError(t, ctrl.Delete(context.Background(), "x.xlsx::Sheet1"))

	assert.Empty(t, ctrl.Sources(), "deleted source must leave the list")
	snap := ctrl.Results()
	assert.Equal(t, "ann", snap.Query)
	assert.Empty(t, snap.Rows, "query must re-run and drop rows of the deleted source")
}
