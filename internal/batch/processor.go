package batch

import (
	"context"
	"strings"
	"time"

	"cv-parser/internal/extract"
	"cv-parser/internal/extraction"
	"cv-parser/internal/resume"
	"cv-parser/internal/shared/metrics"
	"cv-parser/internal/shared/telemetry"
)

// DefaultRetryBaseDelay is the wait before the first retry; it doubles per attempt.
const DefaultRetryBaseDelay = 300 * time.Millisecond

// Item is one resume to process. Diagnostic explains an empty Text, for example
// a PDF without a text layer. Strategy is set for items converted from documents.
type Item struct {
	Text       string
	Source     string
	Diagnostic string
	Strategy   extract.Strategy
}

// Extractor is the single-resume extraction contract used by the processor.
type Extractor interface {
	Attempt(ctx context.Context, text, credential string) (resume.Record, bool, error)
}

// Sink receives each record as soon as it is produced.
type Sink interface {
	Append(rec resume.Record)
}

// ProgressFunc is called once per item after it finishes, whatever its outcome.
type ProgressFunc func(completed, total int)

// Processor runs extraction over items strictly in order, one call at a time.
type Processor struct {
	extractor  Extractor
	maxRetries int
	baseDelay  time.Duration
}

// Option customizes a Processor.
type Option func(*Processor)

// WithRetries sets how many times a transient API failure is retried.
func WithRetries(n int) Option {
	return func(p *Processor) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// WithBaseDelay sets the first retry delay.
func WithBaseDelay(d time.Duration) Option {
	return func(p *Processor) {
		if d >= 0 {
			p.baseDelay = d
		}
	}
}

// NewProcessor wraps an extractor. Retries default to one.
func NewProcessor(extractor Extractor, opts ...Option) *Processor {
	p := &Processor{extractor: extractor, maxRetries: 1, baseDelay: DefaultRetryBaseDelay}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process returns one record per item in input order. Item failures become
// records; the batch only stops early for a missing credential (before any
// call) or when ctx is cancelled between items, in which case the records
// produced so far are returned with ctx's error.
func (p *Processor) Process(ctx context.Context, items []Item, credential string, sink Sink, progress ProgressFunc) ([]resume.Record, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, extraction.ErrMissingCredential
	}

	total := len(items)
	out := make([]resume.Record, 0, total)
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			telemetry.Warn("batch.abandoned", map[string]any{"completed": i, "total": total})
			return out, err
		}

		start := time.Now()
		rec, attempts, err := p.processItem(ctx, item, credential)
		if err != nil {
			return out, err
		}
		rec = rec.WithSource(item.Source)

		metrics.IncExtraction(string(rec.Status))
		if attempts > 0 {
			metrics.ObserveExtractionDurationMs(metrics.SinceMillis(start))
		}
		fields := map[string]any{
			"index":       i,
			"status":      string(rec.Status),
			"attempts":    attempts,
			"duration_ms": time.Since(start).Milliseconds(),
			"text_len":    len(item.Text),
		}
		if item.Source != "" {
			fields["source"] = item.Source
		}
		if item.Strategy != "" {
			fields["strategy"] = string(item.Strategy)
		}
		if rec.OK() {
			telemetry.Info("batch.item", fields)
		} else {
			fields["raw_error"] = rec.RawError
			telemetry.Warn("batch.item", fields)
		}

		out = append(out, rec)
		if sink != nil {
			sink.Append(rec)
		}
		if progress != nil {
			progress(i+1, total)
		}
	}
	return out, nil
}

func (p *Processor) processItem(ctx context.Context, item Item, credential string) (resume.Record, int, error) {
	if strings.TrimSpace(item.Text) == "" {
		diag := item.Diagnostic
		if diag == "" {
			diag = "no usable text"
		}
		return resume.Failed(resume.StatusInputEmpty, extraction.Diagnostic(diag, credential)), 0, nil
	}

	rec, retryable, err := p.extractor.Attempt(ctx, item.Text, credential)
	attempts := 1
	for err == nil && retryable && rec.Status == resume.StatusAPIFailed && attempts <= p.maxRetries {
		delay := p.baseDelay << (attempts - 1)
		telemetry.Warn("batch.retry", map[string]any{
			"attempt":   attempts,
			"delay_ms":  delay.Milliseconds(),
			"source":    item.Source,
			"raw_error": rec.RawError,
		})
		if !sleep(ctx, delay) {
			return rec, attempts, nil
		}
		rec, retryable, err = p.extractor.Attempt(ctx, item.Text, credential)
		attempts++
	}
	return rec, attempts, err
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
