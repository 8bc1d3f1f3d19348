package batch

import (
	"context"
	"errors"

	"cv-parser/internal/extract"
	"cv-parser/internal/extraction"
	"cv-parser/internal/shared/metrics"
	"cv-parser/internal/shared/telemetry"
	"cv-parser/internal/shared/util"
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// DocumentExtractor converts a document into text.
type DocumentExtractor interface {
	ExtractDocument(ctx context.Context, data []byte, fileName string) (extract.Result, error)
}

// FromDocuments converts files into items in order. Files without usable
// text, including unsupported formats, become items with empty text so they
// still produce an INPUT_EMPTY record.
func FromDocuments(ctx context.Context, ex DocumentExtractor, files []File) []Item {
	items := make([]Item, 0, len(files))
	for _, f := range files {
		source := util.SourceName(f.Name)
		res, err := ex.ExtractDocument(ctx, f.Data, f.Name)
		item := Item{Source: source}
		switch {
		case errors.Is(err, extract.ErrUnsupportedFormat):
			item.Diagnostic = "unsupported file type"
		case err != nil:
			item.Diagnostic = extraction.Diagnostic("document extraction failed: "+err.Error(), "")
		case !res.Usable():
			item.Diagnostic = "no extractable text (strategy " + string(extract.StrategyNone) + ")"
		default:
			item.Text = res.Text
		}
		strategy := res.Strategy
		if strategy == "" || item.Text == "" {
			strategy = extract.StrategyNone
		}
		item.Strategy = strategy
		metrics.IncDocument(string(strategy))
		fields := map[string]any{"source": source, "strategy": string(strategy), "bytes": len(f.Data), "text_len": len(item.Text)}
		if res.Err != nil && item.Text == "" {
			fields["error"] = extraction.Diagnostic(res.Err.Error(), "")
		}
		telemetry.Debug("document.converted", fields)
		items = append(items, item)
	}
	return items
}
