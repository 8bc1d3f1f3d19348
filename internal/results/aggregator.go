package results

import (
	"sync"

	"cv-parser/internal/resume"
)

// Aggregator owns the ordered ResultSet of one session. It is append-only
// until Clear.
type Aggregator struct {
	mu      sync.RWMutex
	records []resume.Record
}

// NewAggregator returns an empty ResultSet.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Append stores a copy of rec at the end of the set.
func (a *Aggregator) Append(rec resume.Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec.Clone())
}

// All returns a copy of every record in insertion order.
func (a *Aggregator) All() []resume.Record {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return cloneAll(a.records)
}

// Len reports how many records are held.
func (a *Aggregator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.records)
}

// Clear discards every record. Earlier exports are unaffected.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = nil
}

// Stats computes summary statistics over the current set.
func (a *Aggregator) Stats(topK int) Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return ComputeStats(a.records, topK)
}

// Export serializes a snapshot of the current set.
func (a *Aggregator) Export(format Format) ([]byte, error) {
	return Export(a.All(), format)
}

func cloneAll(records []resume.Record) []resume.Record {
	out := make([]resume.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
