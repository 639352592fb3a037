package predict

import (
	"sort"
	"sync"
)

// Accumulator collects one session's feature choices. Each Set overwrites
// the previous value of that field; nothing else is remembered.
type Accumulator struct {
	mu     sync.RWMutex
	fields map[string]float64
}

func NewAccumulator() *Accumulator {
	return &Accumulator{fields: make(map[string]float64)}
}

func (a *Accumulator) Set(field string, value float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fields[field] = value
}

func (a *Accumulator) Get(field string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	value, ok := a.fields[field]
	return value, ok
}

// Len is the number of distinct fields set.
func (a *Accumulator) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.fields)
}

// IsComplete reports whether at least required distinct fields are set.
// It only drives a "ready for review" hint; Predict does not consult it.
func (a *Accumulator) IsComplete(required int) bool {
	return a.Len() >= required
}

// Fields returns the names set so far, sorted.
func (a *Accumulator) Fields() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.fields))
	for name := range a.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot copies the current record.
func (a *Accumulator) Snapshot() map[string]float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	snapshot := make(map[string]float64, len(a.fields))
	for k, v := range a.fields {
		snapshot[k] = v
	}
	return snapshot
}

func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fields = make(map[string]float64)
}
