package importer

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sheetsearch/internal/apperrors"
	"sheetsearch/internal/storage"
)

const testMaxBytes = 10 << 20

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

// workbookBytes builds a single-sheet workbook from a grid of strings.
func workbookBytes(t *testing.T, sheetName string, grid [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	require.NoError(t, f.SetSheetName("Sheet1", sheetName))

	for r, row := range grid {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheetName, cell, val))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportHappyPath(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var checkpoints []Progress
	pipeline := NewPipeline(store, testMaxBytes, func(p Progress) {
		checkpoints = append(checkpoints, p)
	})

	data := workbookBytes(t, "Sheet1", [][]string{
		{"Name", "Age"},
		{"Ann", "30"},
		{"Bo", "41"},
	})

	res, err := pipeline.Import(ctx, "x.xlsx", int64(len(data)), bytes.NewReader(data), AutoConfirm(false))
	require.NoError(t, err)

	assert.Equal(t, "x.xlsx::Sheet1", res.SourceID)
	assert.Equal(t, "Sheet1", res.SheetName)
	assert.Equal(t, []string{"Name", "Age"}, res.Headers)
	assert.Equal(t, 2, res.RowCount)

	rows, err := store.RowsBySource(ctx, "x.xlsx::Sheet1", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Ann", rows[0].Fields["Name"])

	// Progress walks the phases in order and ends at 100
	require.NotEmpty(t, checkpoints)
	assert.Equal(t, StateValidating, checkpoints[0].State)
	last := checkpoints[len(checkpoints)-1]
	assert.Equal(t, StateDone, last.State)
	assert.Equal(t, 100, last.Percent)
	for _, cp := range checkpoints {
		assert.Equal(t, checkpoints[0].JobID, cp.JobID)
	}
}

func TestImportPicksFirstSheetWithData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pipeline := NewPipeline(store, testMaxBytes, nil)

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	// Sheet1 has only a header, Sheet2 has data: Sheet2 must be chosen.
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "OnlyHeader"))
	_, err := f.NewSheet("Sheet2")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Sheet2", "A1", "Name"))
	require.NoError(t, f.SetCellValue("Sheet2", "A2", "Ann"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := pipeline.Import(ctx, "multi.xlsx", int64(buf.Len()), bytes.NewReader(buf.Bytes()), AutoConfirm(false))
	require.NoError(t, err)
	assert.Equal(t, "multi.xlsx::Sheet2", res.SourceID)
}

func TestImportValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	data := workbookBytes(t, "Sheet1", [][]string{{"Name"}, {"Ann"}})

	tests := []struct {
		name     string
		fileName string
		size     int64
		maxBytes int64
		data     []byte
		wantCode *apperrors.AppError
	}{
		{
			name:     "wrong extension",
			fileName: "x.csv",
			size:     int64(len(data)),
			maxBytes: testMaxBytes,
			data:     data,
			wantCode: apperrors.ErrFileRejected,
		},
		{
			name:     "declared size over cap",
			fileName: "x.xlsx",
			size:     testMaxBytes + 1,
			maxBytes: testMaxBytes,
			data:     data,
			wantCode: apperrors.ErrFileRejected,
		},
		{
			name:     "actual size over cap",
			fileName: "x.xlsx",
			size:     0,
			maxBytes: 16,
			data:     data,
			wantCode: apperrors.ErrFileRejected,
		},
		{
			name:     "garbage bytes",
			fileName: "x.xlsx",
			size:     4,
			maxBytes: testMaxBytes,
			data:     []byte("junk"),
			wantCode: apperrors.ErrParseError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := NewPipeline(store, tt.maxBytes, nil)
			_, err := pipeline.Import(ctx, tt.fileName, tt.size, bytes.NewReader(tt.data), AutoConfirm(true))
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, tt.wantCode),
				"got code %s, want %s", apperrors.CodeOf(err), tt.wantCode.Code)
		})
	}
}

func TestImportEmptyWorkbook(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pipeline := NewPipeline(store, testMaxBytes, nil)

	// Header row but no data rows in any sheet
	data := workbookBytes(t, "Sheet1", [][]string{{"Name", "Age"}})

	_, err := pipeline.Import(ctx, "x.xlsx", int64(len(data)), bytes.NewReader(data), AutoConfirm(true))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrEmptyWorkbook), "got code %s", apperrors.CodeOf(err))

	sources, err := store.ListSources(ctx)
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestImportOverwriteConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	pipeline := NewPipeline(store, testMaxBytes, nil)

	first := workbookBytes(t, "Sheet1", [][]string{{"Name"}, {"Ann"}})
	_, err := pipeline.Import(ctx, "x.xlsx", int64(len(first)), bytes.NewReader(first), AutoConfirm(false))
	require.NoError(t, err)

	second := workbookBytes(t, "Sheet1", [][]string{{"Name"}, {"Cara"}})

	// Declined confirmation: UserCancelled, existing data untouched
	_, err = pipeline.Import(ctx, "x.xlsx", int64(len(second)), bytes.NewReader(second), AutoConfirm(false))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUserCancelled), "got code %s", apperrors.CodeOf(err))

	rows, err := store.RowsBySource(ctx, "x.xlsx::Sheet1", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Ann", rows[0].Fields["Name"])

	// Accepted confirmation: old generation fully replaced
	_, err = pipeline.Import(ctx, "x.xlsx", int64(len(second)), bytes.NewReader(second), AutoConfirm(true))
	require.NoError(t, err)

	rows, err = store.RowsBySource(ctx, "x.xlsx::Sheet1", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Cara", rows[0].Fields["Name"])
}
