package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/tokenize"
)

// RecordStore defines the operations of the record store.
type RecordStore interface {
	// PutSource atomically replaces all rows and metadata for sourceID with
	// the given generation. Readers never observe a partial write.
	PutSource(ctx context.Context, sourceID string, headers []string, rows []map[string]string) error
	// DeleteSource atomically deletes metadata and rows for sourceID.
	// It is a no-op when the source does not exist.
	DeleteSource(ctx context.Context, sourceID string) error
	// HasSource reports whether metadata exists for sourceID.
	HasSource(ctx context.Context, sourceID string) (bool, error)
	// ListSources returns all known sources. Order is not meaningful.
	ListSources(ctx context.Context) ([]SourceInfo, error)
	// QueryByTokenPrefix returns up to limit rows with at least one token
	// starting with at least one keyword. This is the candidate set for the
	// stricter substring filter applied by the search engine.
	QueryByTokenPrefix(ctx context.Context, keywords []string, limit int) ([]RowRecord, error)
	// RowsBySource returns up to limit rows for sourceID, oldest first.
	RowsBySource(ctx context.Context, sourceID string, limit, offset int) ([]RowRecord, error)
	// Ping verifies the backing database is reachable.
	Ping(ctx context.Context) error
}

// Store provides record store operations over SQLite.
// It implements the RecordStore interface. One Store is constructed at
// startup and passed explicitly to the components that need it.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store over an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for callers that need raw queries (tests).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping verifies the backing database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	return nil
}

// PutSource replaces the generation stored for sourceID inside one transaction:
// old rows, tokens, and metadata are deleted, then the new metadata and rows
// are inserted, each row tagged with sourceID and tokenized.
func (s *Store) PutSource(ctx context.Context, sourceID string, headers []string, rows []map[string]string) error {
	if headers == nil {
		headers = []string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	defer func() {
		_ = tx.Rollback() // No-op after commit
	}()

	if err := deleteSourceTx(ctx, tx, sourceID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sources (source_id, headers) VALUES (?, ?)",
		sourceID, string(headersJSON),
	); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}

	rowStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO rows (source_id, fields) VALUES (?, ?)")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}
	defer func() {
		_ = rowStmt.Close()
	}()

	tokenStmt, err := tx.PrepareContext(ctx,
		"INSERT INTO row_tokens (token, row_id) VALUES (?, ?)")
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}
	defer func() {
		_ = tokenStmt.Close()
	}()

	for _, fields := range rows {
		fieldsJSON, err := json.Marshal(fields)
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrTransactionError)
		}

		res, err := rowStmt.ExecContext(ctx, sourceID, string(fieldsJSON))
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrTransactionError)
		}
		rowID, err := res.LastInsertId()
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrTransactionError)
		}

		for _, token := range tokenize.Fields(fields) {
			if _, err := tokenStmt.ExecContext(ctx, token, rowID); err != nil {
				return apperrors.Wrap(err, apperrors.ErrTransactionError)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}
	return nil
}

// DeleteSource deletes metadata and all rows for sourceID in one transaction.
func (s *Store) DeleteSource(ctx context.Context, sourceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := deleteSourceTx(ctx, tx, sourceID); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransactionError)
	}
	return nil
}

// deleteSourceTx removes tokens, rows, and metadata for sourceID within tx.
func deleteSourceTx(ctx context.Context, tx *sql.Tx, sourceID string) error {
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM row_tokens WHERE row_id IN (SELECT id FROM rows WHERE source_id = ?)",
		sourceID,
	); err != nil {
		return fmt.Errorf("failed to delete tokens: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM rows WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("failed to delete rows: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sources WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("failed to delete source metadata: %w", err)
	}
	return nil
}

// HasSource reports whether metadata exists for sourceID.
func (s *Store) HasSource(ctx context.Context, sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM sources WHERE source_id = ?", sourceID,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	return true, nil
}

// ListSources returns all known sources with their headers and row counts.
func (s *Store) ListSources(ctx context.Context) ([]SourceInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.source_id, s.headers, COUNT(r.id)
		 FROM sources s LEFT JOIN rows r ON r.source_id = s.source_id
		 GROUP BY s.source_id, s.headers`)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	defer func() {
		_ = rows.Close()
	}()

	sources := make([]SourceInfo, 0)
	for rows.Next() {
		var info SourceInfo
		var headersJSON string
		if err := rows.Scan(&info.SourceID, &headersJSON, &info.RowCount); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if err := json.Unmarshal([]byte(headersJSON), &info.Headers); err != nil {
			return nil, fmt.Errorf("failed to decode headers for %s: %w", info.SourceID, err)
		}
		if info.Headers == nil {
			info.Headers = []string{}
		}
		sources = append(sources, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sources, nil
}

// QueryByTokenPrefix returns up to limit distinct rows whose token set has at
// least one token starting with at least one keyword. Keywords are lowercased
// here; tokens are stored lowercase, so the lookup is case-insensitive.
func (s *Store) QueryByTokenPrefix(ctx context.Context, keywords []string, limit int) ([]RowRecord, error) {
	if len(keywords) == 0 || limit <= 0 {
		return []RowRecord{}, nil
	}

	conditions := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords)+1)
	for _, kw := range keywords {
		conditions = append(conditions, `t.token LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(strings.ToLower(kw))+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT DISTINCT r.id, r.source_id, r.fields
		 FROM rows r JOIN row_tokens t ON t.row_id = r.id
		 WHERE %s
		 ORDER BY r.id
		 LIMIT ?`,
		strings.Join(conditions, " OR "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrSearchError)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRowRecords(rows)
}

// RowsBySource returns up to limit rows for sourceID, oldest first.
// A limit of 0 or less means no limit.
func (s *Store) RowsBySource(ctx context.Context, sourceID string, limit, offset int) ([]RowRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source_id, fields FROM rows WHERE source_id = ? ORDER BY id LIMIT ? OFFSET ?",
		sourceID, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrStorageUnavailable)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRowRecords(rows)
}

// scanRowRecords decodes (id, source_id, fields) rows. Tokens are re-derived
// from the fields so the token set a reader sees always matches a fresh
// tokenization of the fields.
func scanRowRecords(rows *sql.Rows) ([]RowRecord, error) {
	records := make([]RowRecord, 0)
	for rows.Next() {
		var rec RowRecord
		var fieldsJSON string
		if err := rows.Scan(&rec.ID, &rec.SourceID, &fieldsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields for row %d: %w", rec.ID, err)
		}
		rec.Tokens = tokenize.Fields(rec.Fields)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

// escapeLike escapes LIKE wildcards so keywords match literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
