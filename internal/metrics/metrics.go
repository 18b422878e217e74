// Package metrics records operational counters of a pipeline run behind a
// small Backend interface. Concrete systems live in subpackages; components
// receive a *Recorder instead of reaching for a global.
package metrics

import (
	"sort"
	"sync"
	"time"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Metric names shared by every backend.
const (
	StepTotal       = "movies_step_total"
	StepDuration    = "movies_step_duration_seconds"
	RecordsTotal    = "movies_records_total"
	RejectedTotal   = "movies_rejected_total"
	WritesTotal     = "movies_writes_total"
	ViewErrorsTotal = "movies_view_errors_total"
)

// Backend is the minimal interface for metrics backends.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop drops everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// Recorder translates pipeline events into backend calls.
type Recorder struct {
	backend Backend
}

// NewRecorder wraps a backend; nil means Nop.
func NewRecorder(b Backend) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{backend: b}
}

// Step records latency and success/failure of one pipeline step.
func (r *Recorder) Step(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"step": step, "status": status}
	r.backend.IncCounter(StepTotal, 1, lbls)
	r.backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// Records counts records of a kind, e.g. "ingested" or "cleaned".
func (r *Recorder) Records(kind string, n int) {
	if n <= 0 {
		return
	}
	r.backend.IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// Rejected counts records removed by a cleaning stage.
func (r *Recorder) Rejected(stage string, n int) {
	if n <= 0 {
		return
	}
	r.backend.IncCounter(RejectedTotal, float64(n), Labels{"stage": stage})
}

// Write counts insert outcomes ("inserted", "skipped") per collection.
func (r *Recorder) Write(collection, outcome string, n int) {
	if n <= 0 {
		return
	}
	r.backend.IncCounter(WritesTotal, float64(n), Labels{"collection": collection, "outcome": outcome})
}

// ViewError counts a failed view operation.
func (r *Recorder) ViewError(view, op string) {
	r.backend.IncCounter(ViewErrorsTotal, 1, Labels{"view": view, "op": op})
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error {
	return r.backend.Flush()
}

// Memory keeps counter totals in process, keyed by metric name and labels.
type Memory struct {
	mu       sync.Mutex
	counters map[string]float64
	flushes  int
}

// NewMemory creates an empty in-process backend.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]float64)}
}

func (m *Memory) IncCounter(name string, delta float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key(name, labels)] += delta
}

func (m *Memory) ObserveHistogram(name string, value float64, labels Labels) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[key(name+"_count", labels)]++
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

// Counter returns the total of a counter for the exact label set.
func (m *Memory) Counter(name string, labels Labels) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key(name, labels)]
}

// Flushes returns how many times Flush was called.
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func key(name string, labels Labels) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := name
	for _, k := range keys {
		out += "|" + k + "=" + labels[k]
	}
	return out
}
