// Package http is the JSON presentation shell over the ledger service. It
// holds no session state: every authenticated request resolves its account
// through Basic credentials and passes the owner id into the ledger
// explicitly.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aditi5926/expense-tracker/internal/core"
	"github.com/aditi5926/expense-tracker/internal/ledger"
	"github.com/aditi5926/expense-tracker/internal/middleware/ratelimit"
)

type Categorizer interface {
	Classify(ctx context.Context, description string) core.Category
}

type Server struct {
	*http.Server
	ledger      *ledger.Service
	categorizer Categorizer
	authLimiter *ratelimit.Limiter
}

func NewServer(addr string, svc *ledger.Service, categorizer Categorizer) *Server {
	s := &Server{
		ledger:      svc,
		categorizer: categorizer,
		authLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	// Credential endpoints are throttled; everything else already requires
	// valid credentials.
	mux := http.NewServeMux()
	mux.Handle("POST /api/register", s.authLimiter.Middleware(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/login", s.authLimiter.Middleware(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /api/expenses", s.withAccount(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.withAccount(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.withAccount(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.withAccount(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withAccount(s.handleDeleteExpense))
	mux.HandleFunc("POST /api/classify", s.withAccount(s.handleClassify))
	mux.HandleFunc("GET /api/summary", s.withAccount(s.handleSummary))
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.Server = &http.Server{
		Addr:           addr,
		Handler:        logRequests(mux),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16,
	}

	return s
}

// Shutdown stops the auth limiter's cleanup goroutine along with the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.authLimiter.Stop()
	return s.Server.Shutdown(ctx)
}

// withAccount authenticates the request via Basic credentials and hands the
// resolved account to the handler.
func (s *Server) withAccount(next func(w http.ResponseWriter, r *http.Request, account core.Account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="expenses"`)
			writeError(w, http.StatusUnauthorized, "credentials required")
			return
		}

		account, err := s.ledger.Authenticate(r.Context(), username, password)
		if err != nil {
			if errors.Is(err, core.ErrInvalidCredentials) {
				writeError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			slog.ErrorContext(r.Context(), "Authentication failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		next(w, r, account)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		slog.InfoContext(r.Context(), "Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rec.status,
			"duration_ms", time.Since(start).Milliseconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps ledger errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, core.ErrDuplicateUsername.Error())
	case errors.Is(err, core.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, core.ErrInvalidCredentials.Error())
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, core.ErrNotFound.Error())
	case errors.Is(err, core.ErrForbidden):
		writeError(w, http.StatusForbidden, core.ErrForbidden.Error())
	case errors.Is(err, core.ErrEmptyUsername),
		errors.Is(err, core.ErrEmptyPassword),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrInvalidCategory),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidUnitPrice),
		errors.Is(err, core.ErrInvalidPage),
		errors.Is(err, core.ErrInvalidPageSize):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("Unhandled ledger error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
