package importer

// buildRecords finds the header row of a sheet grid and builds one field map
// per data row. The header row is the first row that is not entirely empty;
// rows above it are skipped. When no such row exists the sheet has zero
// headers and zero rows. Cells map to headers positionally; missing cells
// become "". Data rows that are entirely empty are skipped.
func buildRecords(grid [][]string) ([]string, []map[string]string) {
	headerIdx := -1
	for i, row := range grid {
		if !rowEmpty(row) {
			headerIdx = i
			break
		}
	}
	if headerIdx == -1 {
		return []string{}, nil
	}

	headers := make([]string, len(grid[headerIdx]))
	copy(headers, grid[headerIdx])

	var rows []map[string]string
	for _, row := range grid[headerIdx+1:] {
		if rowEmpty(row) {
			continue
		}
		fields := make(map[string]string, len(headers))
		for j, header := range headers {
			value := ""
			if j < len(row) {
				value = row[j]
			}
			fields[header] = value
		}
		rows = append(rows, fields)
	}

	return headers, rows
}

// rowEmpty reports whether every cell of the row is the empty string.
func rowEmpty(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}
