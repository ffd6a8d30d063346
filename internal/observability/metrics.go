package observability

import (
	"sync"
	"time"
)

type requestKey struct {
	path   string
	method string
	status int
}

type errorKey struct {
	path   string
	method string
	code   string
}

// Metrics keeps in-process request and error counters for the helpdesk API.
// Counters are keyed by route, method and outcome; there is no exporter, the
// counters exist for the middleware chain and for tests.
type Metrics struct {
	mu       sync.Mutex
	requests map[requestKey]int64
	errors   map[errorKey]int64
}

// NewMetrics returns an empty counter set.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: make(map[requestKey]int64),
		errors:   make(map[errorKey]int64),
	}
}

// RecordRequest counts a completed request. Duration is accepted for
// interface stability; only the counter is kept.
func (m *Metrics) RecordRequest(path, method string, status int, _ time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.requests[requestKey{path: path, method: method, status: status}]++
	m.mu.Unlock()
}

// RecordError counts a request that resolved to an error envelope.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.errors[errorKey{path: path, method: method, code: code}]++
	m.mu.Unlock()
}

// RequestCount returns the counter for one route/method/status combination.
func (m *Metrics) RequestCount(path, method string, status int) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[requestKey{path: path, method: method, status: status}]
}

// ErrorCount returns the counter for one route/method/code combination.
func (m *Metrics) ErrorCount(path, method, code string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[errorKey{path: path, method: method, code: code}]
}
