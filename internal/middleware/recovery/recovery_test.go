package recovery

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"expenses/internal/log"
)

func panicking(v any) http.Handler {
	return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(v) })
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		expose bool
		want   string
	}{
		{"development echoes detail", true, `{"message":"Internal server error","error":"boom"}`},
		{"production hides detail", false, `{"message":"Internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := log.New(log.Config{Handler: slog.NewJSONHandler(&buf, nil)})

			rr := httptest.NewRecorder()
			Middleware(logger, tt.expose)(panicking("boom")).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/x", nil))

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, tt.want, rr.Body.String())
			assert.Contains(t, buf.String(), "Panic recovered")
		})
	}
}

func TestMiddleware_NoPanic(t *testing.T) {
	rr := httptest.NewRecorder()
	Middleware(nil, true)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
}

func TestMiddleware_AbortHandlerPropagates(t *testing.T) {
	h := Middleware(nil, true)(panicking(http.ErrAbortHandler))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
