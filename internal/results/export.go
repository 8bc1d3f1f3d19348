package results

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cv-parser/internal/resume"
)

// Format names an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// SkillsSeparator joins skills in the tabular export.
const SkillsSeparator = "; "

// ErrUnknownFormat is returned for export formats other than json and csv.
var ErrUnknownFormat = errors.New("unknown export format")

// CSVHeader is the fixed column order of the tabular export.
var CSVHeader = []string{"name", "email", "skills", "years_experience", "source_filename", "status", "raw_error"}

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FileName is the attachment name for the format.
func (f Format) FileName() string {
	return "extracted_resumes." + string(f)
}

// ContentType is the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/json; charset=utf-8"
}

// Export encodes records. The output depends only on the records, so equal
// inputs give byte-identical outputs.
func Export(records []resume.Record, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(records)
	case FormatCSV:
		return exportCSV(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

func exportJSON(records []resume.Record) ([]byte, error) {
	if records == nil {
		records = []resume.Record{}
	}
	out := make([]resume.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json export: %w", err)
	}
	return append(data, '\n'), nil
}

func exportCSV(records []resume.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		years := ""
		if r.YearsExperience != nil {
			years = strconv.FormatFloat(*r.YearsExperience, 'f', -1, 64)
		}
		row := []string{r.Name, r.Email, strings.Join(r.Skills, SkillsSeparator), years, r.SourceFilename, string(r.Status), r.RawError}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode csv export: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON reads a structured-record export back into records.
func DecodeJSON(data []byte) ([]resume.Record, error) {
	var records []resume.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode json export: %w", err)
	}
	for i := range records {
		if records[i].Skills == nil {
			records[i].Skills = []string{}
		}
	}
	return records, nil
}
