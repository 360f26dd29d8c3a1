// Package recovery turns handler panics into a 500 JSON response.
package recovery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"expenses/internal/log"
)

// Middleware recovers panics raised by next. The panic value is echoed in
// the response only when exposeDetail is set.
func Middleware(logger *log.Logger, exposeDetail bool) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				reqLogger := logger
				if l, ok := r.Context().Value(log.LoggerContextKey).(*log.Logger); ok {
					reqLogger = l.WithComponent(log.ComponentHTTP)
				}

				detail := fmt.Sprint(rec)
				reqLogger.ErrorContext(r.Context(), "Panic recovered",
					log.FieldErrorType, log.ErrorTypeInternal,
					log.FieldError, detail,
					log.FieldMethod, r.Method,
					log.FieldPath, r.URL.Path,
					"stack", string(debug.Stack()))

				body := map[string]string{"message": "Internal server error"}
				if exposeDetail {
					body["error"] = detail
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(body)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
