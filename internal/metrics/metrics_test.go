package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveExport(t *testing.T) {
	m := New()

	m.ObserveExport("image", 120*time.Millisecond, false, nil)
	m.ObserveExport("image", time.Millisecond, true, nil)
	m.ObserveExport("pdf", time.Second, false, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("image", "ok", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("image", "ok", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("pdf", "error", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.exportDuration), "only fresh successful renders are timed")
}

func TestObserveHTTP(t *testing.T) {
	m := New()

	m.ObserveHTTP("/api/export/{kind}", http.MethodPost, http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTP("/api/export/{kind}", http.MethodPost, http.StatusUnauthorized, time.Millisecond)
	m.RateLimited()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/export/{kind}", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authRejections.WithLabelValues("401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveExport("svg", time.Millisecond, false, nil)

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `canvas_exports_total{cached="false",kind="svg",result="ok"} 1`)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
