package storage

// RowRecord is one stored spreadsheet row.
type RowRecord struct {
	ID       int64             `json:"id"`       // Store-assigned, stable for the record's lifetime
	SourceID string            `json:"sourceId"` // "<fileName>::<sheetName>"
	Fields   map[string]string `json:"fields"`   // Column header -> cell text
	Tokens   []string          `json:"-"`        // Derived from Fields at read time, indexing only
}

// SourceInfo describes one imported sheet.
type SourceInfo struct {
	SourceID string   `json:"sourceId"`
	Headers  []string `json:"headers"` // Import column order, also display order
	RowCount int      `json:"rowCount"`
}
