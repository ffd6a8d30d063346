package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCountsByRouteAndOutcome(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordRequest("/tickets", "POST", 201, 5*time.Millisecond)
	metrics.RecordRequest("/tickets", "POST", 201, 7*time.Millisecond)
	metrics.RecordRequest("/tickets", "GET", 200, time.Millisecond)
	metrics.RecordError("/tickets", "POST", "VALIDATION_FAILED")

	assert.Equal(t, int64(2), metrics.RequestCount("/tickets", "POST", 201))
	assert.Equal(t, int64(1), metrics.RequestCount("/tickets", "GET", 200))
	assert.Equal(t, int64(0), metrics.RequestCount("/tickets", "GET", 500))
	assert.Equal(t, int64(1), metrics.ErrorCount("/tickets", "POST", "VALIDATION_FAILED"))
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordRequest("/x", "GET", 200, 0)
	metrics.RecordError("/x", "GET", "INTERNAL_ERROR")
	assert.Equal(t, int64(0), metrics.RequestCount("/x", "GET", 200))
}
