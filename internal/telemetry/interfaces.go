package telemetry

import "sync"

// Logger is the minimal logging surface simulation internals depend on.
type Logger interface {
	Printf(format string, args ...any)
}

// Metrics is the minimal counter surface simulation internals depend on.
type Metrics interface {
	Add(key string, delta uint64)
	Store(key string, value uint64)
}

// NopLogger discards all log output.
type NopLogger struct{}

func (NopLogger) Printf(string, ...any) {}

// NopMetrics discards all counter updates.
type NopMetrics struct{}

func (NopMetrics) Add(string, uint64)   {}
func (NopMetrics) Store(string, uint64) {}

// MapMetrics accumulates counters into a map. Used by tests and by the
// diagnostics endpoint for ad-hoc simulation counters.
type MapMetrics struct {
	mu     sync.Mutex
	values map[string]uint64
}

func NewMapMetrics() *MapMetrics {
	return &MapMetrics{values: make(map[string]uint64)}
}

func (m *MapMetrics) Add(key string, delta uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] += delta
}

func (m *MapMetrics) Store(key string, value uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Value reads one counter.
func (m *MapMetrics) Value(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[key]
}

// Values copies the full counter map.
func (m *MapMetrics) Values() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}
