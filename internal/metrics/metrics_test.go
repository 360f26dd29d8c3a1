package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/database"
)

func TestRecordOperation(t *testing.T) {
	m := New()
	m.RecordOperation("create", "success")
	m.RecordOperation("create", "success")
	m.RecordOperation("read", "not_found")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("create", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("read", "not_found")))
}

func TestObserveConnection(t *testing.T) {
	m := New()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbState.WithLabelValues("disconnected")))

	m.ObserveConnection(database.Connecting, 3)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dbState.WithLabelValues("disconnected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.dbAttempts))

	m.ObserveConnection(database.Connected, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dbState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dbState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.dbAttempts))
}

func TestTrackRateLimitClients(t *testing.T) {
	m := New()
	clients := 4
	m.TrackRateLimitClients(func() int { return clients })

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rr.Body.String(), "expenses_ratelimit_tracked_clients 4")
}

func TestInstrumentHandler_UsesRouteTemplate(t *testing.T) {
	m := New()
	r := mux.NewRouter()
	r.Use(m.InstrumentHandler)
	r.HandleFunc("/api/expenses/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/expenses/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/expenses/{id}", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.RecordOperation("list", "success")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `expenses_store_operations_total{operation="list",outcome="success"} 1`), body)
	assert.Contains(t, body, "expenses_database_connection_state")
	assert.Contains(t, body, "go_goroutines")
}
