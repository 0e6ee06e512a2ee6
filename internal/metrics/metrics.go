// Package metrics defines the minimal instrumentation surface used by the
// pipeline. The core depends only on the Backend interface; concrete
// backends live in subpackages and are selected at startup.
package metrics

import "sync"

// Labels carries metric dimensions. Backends decide which keys they honor.
type Labels map[string]string

// Backend receives metric events. Implementations must be safe for
// concurrent use.
type Backend interface {
	// IncCounter adds delta to a named counter. delta <= 0 is ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Flush pushes buffered metrics out. May be a no-op.
	Flush() error

	// Close stops background work and performs a final Flush.
	Close() error
}

// Metric names emitted by the pipeline.
const (
	// RecordsTotal counts processed records. Labels: kind (customer,
	// product, order), outcome (accepted, rejected, malformed).
	RecordsTotal = "integrator_records_total"

	// PhaseDurationSeconds is the wall time of one pipeline phase.
	// Labels: phase, status (ok, error).
	PhaseDurationSeconds = "integrator_phase_duration_seconds"

	// RunsTotal counts completed pipeline runs. Labels: status.
	RunsTotal = "integrator_runs_total"
)

// nop discards everything. It is the default backend.
type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}
func (nop) Flush() error                             { return nil }
func (nop) Close() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs the process-wide backend. Call once at startup,
// before the pipeline runs.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		backend = nop{}
		return
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter forwards to the installed backend.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram forwards to the installed backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush forwards to the installed backend.
func Flush() error { return current().Flush() }

// Close forwards to the installed backend and resets to the no-op
// backend so late calls are harmless.
func Close() error {
	mu.Lock()
	b := backend
	backend = nop{}
	mu.Unlock()
	return b.Close()
}
