package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ReviewActivity(t *testing.T) {
	m := NewMetrics()

	m.SessionStarted()
	m.CommandQueued("CHANGE_PRICE", false)
	m.CommandQueued("CHANGE_PRICE", true)
	m.CommandQueued("CHANGE_PRICE", true)
	m.BatchCommitted(3)
	m.CommitConflict()
	m.ApplyFailed()
	m.SessionFinalized("committed")
	m.ActiveSessions(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStartedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CommandsQueuedTotal.WithLabelValues("CHANGE_PRICE", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommandsQueuedTotal.WithLabelValues("CHANGE_PRICE", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesCommittedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CommitConflictsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ApplyFailuresTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsFinalizedTotal.WithLabelValues("committed")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SessionsActive))
}

func TestMetrics_HTTPAndRegistry(t *testing.T) {
	m := NewMetrics()
	m.ObserveHTTPRequest("GET", "/api/quotes/:id", 200, 15*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/quotes/:id", "200")))

	expected := `
# HELP quote_review_commit_conflicts_total Total number of commits rejected because the quote version moved
# TYPE quote_review_commit_conflicts_total counter
quote_review_commit_conflicts_total 0
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "quote_review_commit_conflicts_total"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quote_http_requests_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	// a second instance registers on its own registry
	assert.NotPanics(t, func() { NewMetrics() })
}
