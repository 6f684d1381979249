package session

import (
	"sort"

	"sheetsearch/internal/storage"
)

// reservedFieldKeys are bookkeeping names that must never surface as
// display headers when headers are derived from row fields.
var reservedFieldKeys = map[string]bool{
	"id":       true,
	"sourceId": true,
}

// DisplayHeaders returns the column headers to display for a source: the
// stored headers when present, otherwise keys derived from the first row's
// fields (sorted, bookkeeping keys excluded).
func DisplayHeaders(info storage.SourceInfo, rows []storage.RowRecord) []string {
	if len(info.Headers) > 0 {
		return info.Headers
	}
	if len(rows) == 0 {
		return []string{}
	}

	headers := make([]string, 0, len(rows[0].Fields))
	for key := range rows[0].Fields {
		if reservedFieldKeys[key] {
			continue
		}
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}
