package http

import (
	"net/http"
	"time"

	"expenses/internal/database"
)

const (
	rootBanner = "Expense Tracker Backend Running 🚀"
	testBanner = "✅ Server test route working!"
)

type healthResponse struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"`
	DB        string  `json:"db"`
	Attempts  int     `json:"attempts"`
	Timestamp string  `json:"timestamp"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeText(w, rootBanner)
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	writeText(w, testBanner)
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleHealth always answers 200; the db field carries the connection
// state so callers can tell a live process from a usable one.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	NewJSONResponse().Body(healthResponse{
		Status:    "OK",
		Uptime:    now.Sub(s.started).Seconds(),
		DB:        s.dbState().String(),
		Attempts:  s.dbAttempts(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}).Write(w, r)
}

// handleReady answers 503 until the store is connected.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.dbState() != database.Connected {
		ErrorResponse(http.StatusServiceUnavailable, "Database not connected").Write(w, r)
		return
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w, r)
}

func (s *Server) dbState() database.ConnectionState {
	if s.db == nil {
		return database.Disconnected
	}
	return s.db.State()
}

// dbAttempts is the number of consecutive failed connection attempts.
func (s *Server) dbAttempts() int {
	if s.db == nil {
		return 0
	}
	return s.db.Attempts()
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	NotFoundError("Route not found").Write(w, r)
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	MethodNotAllowedError("").Write(w, r)
}
