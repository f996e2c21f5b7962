// Package transport carries the HTTP surface and the JSON-RPC framing shared
// with the fit engine helper.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rpggio/phasefold/internal/domain/run"
)

// RunReader reads the run ledger.
type RunReader interface {
	List(ctx context.Context, opts run.ListOptions) ([]run.Run, error)
	Get(ctx context.Context, id string) (*run.Detail, error)
}

// Options configures the HTTP router.
type Options struct {
	// MCP is mounted at /mcp when set.
	MCP  http.Handler
	Runs RunReader
	// Auth guards every route except /health when set.
	Auth           func(http.Handler) http.Handler
	AllowedOrigins []string
	Logger         *slog.Logger
}

type server struct {
	runs   RunReader
	logger *slog.Logger
}

// NewServer creates an HTTP server router with middleware.
func NewServer(opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", SessionHeader},
			ExposedHeaders: []string{SessionHeader},
		}))
	}
	r.Use(SessionMiddleware)
	r.Use(requestLogger(logger))

	srv := &server{runs: opts.Runs, logger: logger}
	r.Get("/health", srv.handleHealth)

	r.Group(func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth)
		}
		if opts.MCP != nil {
			r.Handle("/mcp", opts.MCP)
		}
		if opts.Runs != nil {
			r.Get("/runs", srv.handleListRuns)
			r.Get("/runs/{id}", srv.handleGetRun)
		}
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	opts := run.ListOptions{Limit: 20}
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := run.Status(v)
		opts.Status = &status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		opts.Limit = n
	}

	client, _ := ClientFromContext(r.Context())
	s.logger.Debug("list runs", "client", client, "limit", opts.Limit)

	runs, err := s.runs.List(r.Context(), opts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []run.Run{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	client, _ := ClientFromContext(r.Context())
	s.logger.Debug("get run", "client", client, "run_id", id)

	detail, err := s.runs.Get(r.Context(), id)
	if errors.Is(err, run.ErrRunNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			sessionID, _ := SessionIDFromContext(r.Context())
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", chimw.GetReqID(r.Context()),
				"session", sessionID,
			)
		})
	}
}
