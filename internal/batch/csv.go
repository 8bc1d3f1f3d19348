package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// ResumeColumn holds the resume text in CSV input.
	ResumeColumn = "Resume_str"
	// IDColumn, when present, identifies each row in source references.
	IDColumn = "ID"
)

var (
	ErrMissingColumn = errors.New("csv is missing required column " + ResumeColumn)
	ErrNoRows        = errors.New("csv has no data rows")
	ErrInvalidLimit  = errors.New("row limit must be at least 1")
)

// ReadCSV reads up to limit rows from r into items. Every row yields an item,
// including rows with an empty resume cell. Sources are "<name>#<ID>" when an
// ID column exists and the cell is set, otherwise "<name>#row-<n>" (1-based).
// Column and limit problems are reported before any row is returned.
func ReadCSV(r io.Reader, name string, limit int) ([]Item, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	resumeIdx, idIdx := columnIndex(header, ResumeColumn), columnIndex(header, IDColumn)
	if resumeIdx < 0 {
		return nil, ErrMissingColumn
	}

	items := make([]Item, 0, limit)
	for row := 1; len(items) < limit; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		item := Item{Text: cell(record, resumeIdx), Source: rowSource(name, record, idIdx, row)}
		if strings.TrimSpace(item.Text) == "" {
			item.Diagnostic = "empty " + ResumeColumn + " cell"
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, ErrNoRows
	}
	return items, nil
}

func columnIndex(header []string, column string) int {
	fallback := -1
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == column {
			return i
		}
		if fallback < 0 && strings.EqualFold(h, column) {
			fallback = i
		}
	}
	return fallback
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func rowSource(name string, record []string, idIdx, row int) string {
	if name == "" {
		name = "csv"
	}
	if id := strings.TrimSpace(cell(record, idIdx)); id != "" {
		return name + "#" + id
	}
	return name + "#row-" + strconv.Itoa(row)
}
