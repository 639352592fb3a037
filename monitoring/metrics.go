// Package monitoring keeps in-process counters for the service.
package monitoring

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Counter names recorded by the API.
const (
	UploadsAccepted  = "uploads_accepted_total"
	UploadsRejected  = "uploads_rejected_total"
	Predictions      = "predictions_total"
	PredictionErrors = "prediction_errors_total"
	SessionsCreated  = "sessions_created_total"
)

var help = map[string]string{
	UploadsAccepted:  "Datasets trained and installed.",
	UploadsRejected:  "Datasets refused by the loader or trainer.",
	Predictions:      "Predictions served.",
	PredictionErrors: "Prediction requests that failed.",
	SessionsCreated:  "Selection sessions opened over HTTP or WebSocket.",
}

// Metrics is a set of monotonically increasing counters plus gauges that
// are set from outside.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]float64
	gauges   map[string]float64

	startTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		startTime: time.Now(),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta float64) {
	if m == nil || delta < 0 {
		return
	}
	m.mu.Lock()
	m.counters[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) SetGauge(name string, value float64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.gauges[name] = value
	m.mu.Unlock()
}

// Value returns a counter or gauge, counters first.
func (m *Metrics) Value(name string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.counters[name]; ok {
		return v
	}
	return m.gauges[name]
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.startTime)
}

// Snapshot returns counters, gauges and runtime figures for a JSON view.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	counters := make(map[string]float64, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = v
	}
	m.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]interface{}{
		"uptime":     m.Uptime().Round(time.Second).String(),
		"counters":   counters,
		"gauges":     gauges,
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]interface{}{
			"alloc":      mem.Alloc,
			"heap_inuse": mem.HeapInuse,
			"gc_count":   mem.NumGC,
		},
	}
}

// ExportPrometheus renders the text exposition format, sorted by name.
func (m *Metrics) ExportPrometheus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var b strings.Builder
	write := func(values map[string]float64, kind string) {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			metric := "messforecast_" + name
			if h, ok := help[name]; ok {
				fmt.Fprintf(&b, "# HELP %s %s\n", metric, h)
			}
			fmt.Fprintf(&b, "# TYPE %s %s\n", metric, kind)
			fmt.Fprintf(&b, "%s %g\n", metric, values[name])
		}
	}
	write(m.counters, "counter")
	write(m.gauges, "gauge")

	fmt.Fprintf(&b, "# TYPE messforecast_uptime_seconds gauge\nmessforecast_uptime_seconds %d\n", int64(m.Uptime().Seconds()))
	return b.String()
}
