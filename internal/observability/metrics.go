package observability

import (
	"sync"
	"time"
)

// OperationSnapshot is the exported view of one operation's counters.
type OperationSnapshot struct {
	Count         int64   `json:"count"`
	Errors        int64   `json:"errors"`
	Rejections    int64   `json:"rejections"`
	InFlight      int64   `json:"in_flight"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
}

// Snapshot is the full metrics view served at /metrics.
type Snapshot struct {
	UptimeSec       int64                        `json:"uptime_sec"`
	TotalRequests   int64                        `json:"total_requests"`
	TotalErrors     int64                        `json:"total_errors"`
	TotalRejections int64                        `json:"total_rejections"`
	InFlight        int64                        `json:"in_flight"`
	RateLimitWaits  int64                        `json:"rate_limit_waits"`
	RateLimitWaitMs int64                        `json:"rate_limit_wait_ms"`
	Operations      map[string]OperationSnapshot `json:"operations"`
}

type operationStats struct {
	count        int64
	errors       int64
	rejections   int64
	inFlight     int64
	totalLatency time.Duration
	maxLatency   time.Duration
	lastLatency  time.Duration
}

// Metrics tracks per-operation counters and latencies. Rejections count
// business-rule error envelopes separately from unexpected failures.
type Metrics struct {
	mu             sync.Mutex
	start          time.Time
	operations     map[string]*operationStats
	rateLimitWaits int64
	rateLimitWait  time.Duration
}

// CallSpan measures one in-flight operation.
type CallSpan struct {
	metrics   *Metrics
	operation string
	start     time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{
		start:      time.Now(),
		operations: make(map[string]*operationStats),
	}
}

// Start begins measuring one call of the named operation.
func (m *Metrics) Start(operation string) *CallSpan {
	if m == nil {
		return &CallSpan{}
	}
	m.mu.Lock()
	stats := m.ensureOperation(operation)
	stats.inFlight++
	m.mu.Unlock()
	return &CallSpan{
		metrics:   m,
		operation: operation,
		start:     time.Now(),
	}
}

// End finishes the span. err marks an unexpected failure.
func (s *CallSpan) End(err error) {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.finish(s.operation, time.Since(s.start), err != nil, false)
}

// EndRejected finishes the span as a business rejection.
func (s *CallSpan) EndRejected() {
	if s == nil || s.metrics == nil {
		return
	}
	s.metrics.finish(s.operation, time.Since(s.start), false, true)
}

// AddRateLimitWait records time spent waiting on the ingress limiter.
func (m *Metrics) AddRateLimitWait(d time.Duration) {
	if m == nil || d <= 0 {
		return
	}
	m.mu.Lock()
	m.rateLimitWaits++
	m.rateLimitWait += d
	m.mu.Unlock()
}

// Snapshot returns a point-in-time copy of all counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		UptimeSec:       int64(time.Since(m.start).Seconds()),
		Operations:      make(map[string]OperationSnapshot),
		RateLimitWaits:  m.rateLimitWaits,
		RateLimitWaitMs: int64(m.rateLimitWait / time.Millisecond),
	}

	for operation, stats := range m.operations {
		avg := 0.0
		if stats.count > 0 {
			avg = float64(stats.totalLatency.Milliseconds()) / float64(stats.count)
		}
		snap.Operations[operation] = OperationSnapshot{
			Count:         stats.count,
			Errors:        stats.errors,
			Rejections:    stats.rejections,
			InFlight:      stats.inFlight,
			AvgLatencyMs:  avg,
			MaxLatencyMs:  float64(stats.maxLatency.Milliseconds()),
			LastLatencyMs: float64(stats.lastLatency.Milliseconds()),
		}
		snap.TotalRequests += stats.count
		snap.TotalErrors += stats.errors
		snap.TotalRejections += stats.rejections
		snap.InFlight += stats.inFlight
	}

	return snap
}

func (m *Metrics) ensureOperation(operation string) *operationStats {
	stats, ok := m.operations[operation]
	if !ok {
		stats = &operationStats{}
		m.operations[operation] = stats
	}
	return stats
}

func (m *Metrics) finish(operation string, dur time.Duration, failed, rejected bool) {
	m.mu.Lock()
	stats := m.ensureOperation(operation)
	stats.inFlight--
	stats.count++
	if failed {
		stats.errors++
	}
	if rejected {
		stats.rejections++
	}
	stats.totalLatency += dur
	if dur > stats.maxLatency {
		stats.maxLatency = dur
	}
	stats.lastLatency = dur
	m.mu.Unlock()
}
