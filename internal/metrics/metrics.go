// Package metrics is a minimal facade between pipeline code and metric
// backends. Pipeline code records counters and histograms against the
// package-level backend; which backend that is (nop by default, Datadog when
// configured) is decided once at process start.
package metrics

import "sync"

// Labels attach dimensions to a metric observation.
type Labels map[string]string

// Metric names used by the pipeline. Backends key on these.
const (
	StageTotal           = "etl_stage_total"
	StageDurationSeconds = "etl_stage_duration_seconds"
	RecordsTotal         = "etl_records_total"
	CastLossTotal        = "etl_cast_loss_total"
)

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Close() error
}

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend replaces the process-wide backend. Call once during startup,
// before pipeline stages run.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nopBackend{}
		return
	}
	backend = b
}

// IncCounter records a counter delta on the current backend.
func IncCounter(name string, delta float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.IncCounter(name, delta, labels)
}

// ObserveHistogram records a histogram sample on the current backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	mu.RLock()
	b := backend
	mu.RUnlock()
	b.ObserveHistogram(name, value, labels)
}

// Nop returns a backend that discards everything.
func Nop() Backend { return nopBackend{} }

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Close() error                             { return nil }
