package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	einopdf "github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoparser "github.com/cloudwego/eino/components/document/parser"
	"github.com/ledongthuc/pdf"
)

// Strategy names the method that produced extracted text.
type Strategy string

const (
	StrategyLayout Strategy = "LAYOUT"
	StrategyPages  Strategy = "PAGES"
	StrategyDOCX   Strategy = "DOCX"
	StrategyText   Strategy = "TEXT"
	StrategyNone   Strategy = "NONE"
)

// TextStrategy converts PDF bytes into plain text.
type TextStrategy interface {
	Name() Strategy
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Result is the outcome of extracting one document. Strategy is StrategyNone
// when no strategy produced text; Err then explains why, for diagnostics only.
type Result struct {
	Text     string
	Strategy Strategy
	Err      error
}

// Usable reports whether the result carries non-blank text.
func (r Result) Usable() bool {
	return r.Strategy != StrategyNone && strings.TrimSpace(r.Text) != ""
}

// PDFExtractor tries each strategy in order and keeps the first non-blank text.
type PDFExtractor struct {
	strategies []TextStrategy
}

// NewPDFExtractor returns the default chain: row-ordered layout text first,
// then page-by-page plain text.
func NewPDFExtractor(ctx context.Context) (*PDFExtractor, error) {
	pages, err := NewPageStrategy(ctx)
	if err != nil {
		return nil, err
	}
	return NewPDFExtractorWith(LayoutStrategy{}, pages), nil
}

// NewPDFExtractorWith builds an extractor over explicit strategies.
func NewPDFExtractorWith(strategies ...TextStrategy) *PDFExtractor {
	return &PDFExtractor{strategies: strategies}
}

// Extract never fails the caller: documents that cannot be read yield an
// empty StrategyNone result.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) Result {
	var errs []error
	for _, s := range e.strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		text, err := safeExtract(ctx, s, data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", strings.ToLower(string(s.Name())), err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			errs = append(errs, fmt.Errorf("%s: no text layer", strings.ToLower(string(s.Name()))))
			continue
		}
		return Result{Text: text, Strategy: s.Name()}
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no extraction strategy configured"))
	}
	return Result{Strategy: StrategyNone, Err: errors.Join(errs...)}
}

// PDF parsers panic on some malformed inputs; convert that into an error.
func safeExtract(ctx context.Context, s TextStrategy, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parser panic: %v", r)
		}
	}()
	if len(data) == 0 {
		return "", errors.New("empty pdf data")
	}
	return s.ExtractText(ctx, data)
}

// LayoutStrategy reads each page as visual rows, top to bottom, using
// github.com/ledongthuc/pdf.
type LayoutStrategy struct{}

func (LayoutStrategy) Name() Strategy { return StrategyLayout }

func (LayoutStrategy) ExtractText(ctx context.Context, data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, err := page.GetTextByRow()
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		for _, row := range rows {
			line := joinWords(row.Content)
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

const (
	// wordGapRatio is the horizontal gap, as a fraction of the font size,
	// above which two fragments are separate words.
	wordGapRatio = 0.15
	// sameOrigin is the tolerance for fragments that carry no advance width.
	sameOrigin = 0.5
)

// joinWords rebuilds a row from its text fragments. Kerned TJ arrays split
// one word into several fragments, so a space is inserted only where the
// geometry shows a real gap.
func joinWords(words pdf.TextHorizontal) string {
	var b strings.Builder
	var prev pdf.Text
	have := false
	for _, w := range words {
		if w.S == "" {
			continue
		}
		if have && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(w.S, " ") && wordGap(prev, w) {
			b.WriteString(" ")
		}
		b.WriteString(w.S)
		prev, have = w, true
	}
	return strings.TrimSpace(b.String())
}

func wordGap(prev, next pdf.Text) bool {
	if prev.W > 0 {
		size := prev.FontSize
		if size <= 0 {
			size = next.FontSize
		}
		gap := next.X - (prev.X + prev.W)
		if size <= 0 {
			return gap > 0
		}
		return gap > size*wordGapRatio
	}
	// Row fragments without widths share the origin of their text object.
	return next.X-prev.X > sameOrigin
}

// PageStrategy extracts basic plain text page by page with the eino PDF parser.
type PageStrategy struct {
	parser *einopdf.PDFParser
}

// NewPageStrategy builds the page-by-page parser.
func NewPageStrategy(ctx context.Context) (*PageStrategy, error) {
	p, err := einopdf.NewPDFParser(ctx, &einopdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("create eino pdf parser: %w", err)
	}
	return &PageStrategy{parser: p}, nil
}

func (s *PageStrategy) Name() Strategy { return StrategyPages }

func (s *PageStrategy) ExtractText(ctx context.Context, data []byte) (string, error) {
	docs, err := s.parser.Parse(ctx, bytes.NewReader(data), einoparser.WithURI("upload.pdf"))
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if content := strings.TrimSpace(doc.Content); content != "" {
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
