// Package search answers free-text keyword queries against the record store.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/contextutil"
	"sheetsearch/internal/storage"
)

// Result holds the rows matching a query and the wall-clock time spent.
type Result struct {
	Rows      []storage.RowRecord `json:"rows"`
	ElapsedMs int64               `json:"elapsedMs"`
}

// Engine runs two-phase keyword searches: a cheap indexed prefix lookup to
// gather candidates, then an exact substring-AND filter over the bounded
// candidate set. The index cannot answer substring-anywhere matches directly,
// which is why the filter exists.
type Engine struct {
	store      storage.RecordStore
	maxResults int
	overfetch  int
	logger     *slog.Logger
}

// NewEngine creates a search engine. maxResults caps the rows returned;
// overfetch is the candidate multiplier applied before filtering.
func NewEngine(store storage.RecordStore, maxResults, overfetch int) *Engine {
	if maxResults <= 0 {
		maxResults = 200
	}
	if overfetch < 1 {
		overfetch = 5
	}
	return &Engine{
		store:      store,
		maxResults: maxResults,
		overfetch:  overfetch,
		logger:     slog.Default(),
	}
}

// Search splits query into keywords and returns rows where every keyword is a
// substring of at least one token. An empty or whitespace-only query returns
// an empty result without touching the store.
//
// The candidate limit is maxResults*overfetch. That is a heuristic: data
// where many rows share keyword prefixes but fail the substring-AND filter
// can yield fewer than the true first maxResults matches.
func (e *Engine) Search(ctx context.Context, query string) (Result, error) {
	logger := contextutil.LoggerFromContext(ctx)

	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return Result{Rows: []storage.RowRecord{}}, nil
	}

	start := time.Now()

	candidates, err := e.store.QueryByTokenPrefix(ctx, keywords, e.maxResults*e.overfetch)
	if err != nil {
		return Result{Rows: []storage.RowRecord{}}, apperrors.Wrap(err, apperrors.ErrSearchError)
	}

	rows := make([]storage.RowRecord, 0, len(candidates))
	for _, rec := range candidates {
		if matchesAllKeywords(rec.Tokens, keywords) {
			rows = append(rows, rec)
			if len(rows) == e.maxResults {
				break
			}
		}
	}

	elapsed := time.Since(start).Milliseconds()
	logger.DebugContext(ctx, "search completed",
		"keywords", len(keywords), "candidates", len(candidates), "rows", len(rows), "elapsed_ms", elapsed)

	return Result{Rows: rows, ElapsedMs: elapsed}, nil
}

// matchesAllKeywords reports whether every keyword is a substring of at least
// one token.
func matchesAllKeywords(tokens, keywords []string) bool {
	for _, kw := range keywords {
		found := false
		for _, tok := range tokens {
			if strings.Contains(tok, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
