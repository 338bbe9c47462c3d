package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector() *Collector {
	return NewCollector("genflow_test", prometheus.NewRegistry(), nil)
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	c := newTestCollector()
	require.NotNil(t, c)
	assert.NotNil(t, c.httpRequestsTotal)
	assert.NotNil(t, c.executionsTotal)
	assert.NotNil(t, c.nodeDuration)
	assert.NotNil(t, c.collaboratorRequestsTotal)
}

func TestCollectorRecordHTTPRequest(t *testing.T) {
	t.Parallel()

	c := newTestCollector()
	c.RecordHTTPRequest("POST", "/workflow/execute", 200, 100*time.Millisecond)
	c.RecordHTTPRequest("POST", "/workflow/execute", 500, 50*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/workflow/execute", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.httpRequestsTotal.WithLabelValues("POST", "/workflow/execute", "5xx")))
}

func TestCollectorRecordExecution(t *testing.T) {
	t.Parallel()

	c := newTestCollector()
	c.RecordExecution("completed", 250*time.Millisecond)
	c.RecordExecution("completed", 1*time.Second)
	c.RecordExecution("failed", 30*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.executionsTotal.WithLabelValues("failed")))
	// A plain histogram is a single series no matter how many observations.
	assert.Equal(t, 1, testutil.CollectAndCount(c.executionDuration))
}

func TestCollectorRecordNodeAndCollaborator(t *testing.T) {
	t.Parallel()

	c := newTestCollector()
	c.RecordNode("llm_engine", 900*time.Millisecond)
	c.RecordCollaborator("retrieval", "ok", 80*time.Millisecond)
	c.RecordCollaborator("retrieval", "error", 10*time.Second)

	assert.Greater(t, testutil.CollectAndCount(c.nodeDuration), 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.collaboratorRequestsTotal.WithLabelValues("retrieval", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		c.collaboratorRequestsTotal.WithLabelValues("retrieval", "error")))
}

func TestCollectorCacheCounters(t *testing.T) {
	t.Parallel()

	c := newTestCollector()
	c.RecordCacheHit("retrieval")
	c.RecordCacheHit("retrieval")
	c.RecordCacheMiss("retrieval")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheHits.WithLabelValues("retrieval")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheMisses.WithLabelValues("retrieval")))
}

func TestStatusClass(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "2xx", statusClass(204))
	assert.Equal(t, "3xx", statusClass(302))
	assert.Equal(t, "4xx", statusClass(422))
	assert.Equal(t, "5xx", statusClass(503))
	assert.Equal(t, "unknown", statusClass(42))
}
