// Package importer turns an uploaded spreadsheet into a stored source:
// validate, read, parse, resolve overwrite conflicts, store.
package importer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/contextutil"
	"sheetsearch/internal/sheet"
	"sheetsearch/internal/storage"
)

// State identifies a phase of the import pipeline.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateReading          State = "reading"
	StateParsing          State = "parsing"
	StateCheckingConflict State = "checking_conflict"
	StateConflictAwait    State = "conflict_await"
	StateStoring          State = "storing"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Progress reports a phase boundary of one import job. Percentages are for
// observability only; they carry no correctness contract.
type Progress struct {
	JobID   string `json:"jobId"`
	State   State  `json:"state"`
	Percent int    `json:"percent"`
	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress reports. May be nil.
type ProgressFunc func(Progress)

// Confirmer decides whether an existing source may be overwritten.
// Implementations range from an interactive prompt to a query parameter;
// tests supply AutoConfirm fakes.
type Confirmer interface {
	ConfirmOverwrite(ctx context.Context, sourceID string) (bool, error)
}

// ConfirmFunc adapts a function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, sourceID string) (bool, error)

// ConfirmOverwrite calls the wrapped function.
func (f ConfirmFunc) ConfirmOverwrite(ctx context.Context, sourceID string) (bool, error) {
	return f(ctx, sourceID)
}

// AutoConfirm returns a Confirmer that always answers the same way.
func AutoConfirm(answer bool) Confirmer {
	return ConfirmFunc(func(context.Context, string) (bool, error) {
		return answer, nil
	})
}

// Result describes a completed import.
type Result struct {
	SourceID  string   `json:"sourceId"`
	SheetName string   `json:"sheetName"`
	Headers   []string `json:"headers"`
	RowCount  int      `json:"rowCount"`
}

// allowed spreadsheet extensions, lowercase.
var allowedExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

// Pipeline runs imports against a record store.
type Pipeline struct {
	store    storage.RecordStore
	maxBytes int64
	progress ProgressFunc
	logger   *slog.Logger
}

// NewPipeline creates a new import pipeline. progress may be nil.
func NewPipeline(store storage.RecordStore, maxBytes int64, progress ProgressFunc) *Pipeline {
	return &Pipeline{
		store:    store,
		maxBytes: maxBytes,
		progress: progress,
		logger:   slog.Default(),
	}
}

// Import runs the full pipeline for one upload. size is the declared file
// size when known (0 means unknown; the cap is then enforced while reading).
// On any failure the previously stored generation for the source, if any,
// is left untouched.
func (p *Pipeline) Import(ctx context.Context, fileName string, size int64, r io.Reader, confirm Confirmer) (*Result, error) {
	logger := contextutil.LoggerFromContext(ctx)
	jobID := uuid.New().String()

	p.report(jobID, StateValidating, 5, "validating "+fileName)
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return nil, p.fail(jobID, apperrors.Wrap(nil, apperrors.ErrFileRejected,
			"Unsupported file extension "+ext+"; expected .xlsx or .xls."))
	}
	if size > p.maxBytes {
		return nil, p.fail(jobID, apperrors.Wrap(nil, apperrors.ErrFileRejected,
			"File exceeds the configured size limit."))
	}

	p.report(jobID, StateReading, 10, "reading file")
	data, err := io.ReadAll(io.LimitReader(r, p.maxBytes+1))
	if err != nil {
		return nil, p.fail(jobID, apperrors.Wrap(err, apperrors.ErrReadError))
	}
	if int64(len(data)) > p.maxBytes {
		return nil, p.fail(jobID, apperrors.Wrap(nil, apperrors.ErrFileRejected,
			"File exceeds the configured size limit."))
	}

	p.report(jobID, StateParsing, 30, "parsing workbook")
	sheets, err := sheet.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, p.fail(jobID, apperrors.Wrap(err, apperrors.ErrParseError))
	}

	// First sheet in file order with at least one non-empty data row wins.
	var (
		chosen  *sheet.Sheet
		headers []string
		rows    []map[string]string
	)
	for i := range sheets {
		h, r := buildRecords(sheets[i].Rows)
		if len(r) > 0 {
			chosen, headers, rows = &sheets[i], h, r
			break
		}
	}
	if chosen == nil {
		return nil, p.fail(jobID, apperrors.Wrap(nil, apperrors.ErrEmptyWorkbook))
	}

	sourceID := fileName + "::" + chosen.Name

	p.report(jobID, StateCheckingConflict, 70, "checking for existing import")
	exists, err := p.store.HasSource(ctx, sourceID)
	if err != nil {
		return nil, p.fail(jobID, err)
	}
	if exists {
		p.report(jobID, StateConflictAwait, 70, sourceID+" already exists")
		ok, err := confirm.ConfirmOverwrite(ctx, sourceID)
		if err != nil {
			return nil, p.fail(jobID, apperrors.Wrap(err, apperrors.ErrUserCancelled))
		}
		if !ok {
			return nil, p.fail(jobID, apperrors.Wrap(nil, apperrors.ErrUserCancelled))
		}
	}

	p.report(jobID, StateStoring, 80, "storing rows")
	if err := p.store.PutSource(ctx, sourceID, headers, rows); err != nil {
		return nil, p.fail(jobID, err)
	}

	p.report(jobID, StateDone, 100, "imported "+sourceID)
	logger.InfoContext(ctx, "import completed",
		"job_id", jobID, "source_id", sourceID, "rows", len(rows), "sheet", chosen.Name)

	return &Result{
		SourceID:  sourceID,
		SheetName: chosen.Name,
		Headers:   headers,
		RowCount:  len(rows),
	}, nil
}

// report emits a progress checkpoint if a ProgressFunc is configured.
func (p *Pipeline) report(jobID string, state State, percent int, message string) {
	if p.progress != nil {
		p.progress(Progress{JobID: jobID, State: state, Percent: percent, Message: message})
	}
}

// fail reports the absorbing failed state and passes the error through.
func (p *Pipeline) fail(jobID string, err error) error {
	if p.progress != nil {
		p.progress(Progress{JobID: jobID, State: StateFailed, Message: err.Error()})
	}
	return err
}
