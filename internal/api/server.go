package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crypto_arb/internal/domain"
	"crypto_arb/internal/engine"
	"crypto_arb/internal/storage"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// StateReader is satisfied by *engine.Engine.
type StateReader interface {
	State() engine.State
}

// JournalReader is satisfied by *storage.Journal.
type JournalReader interface {
	Tail(ctx context.Context, kind string, limit int) ([]storage.Entry, error)
}

// Options wires the admin server's collaborators. Nil readers disable their routes.
type Options struct {
	Addr        string
	CORSOrigins []string
	State       StateReader
	Journal     JournalReader
	Metrics     http.Handler
	Checks      map[string]func() bool // named liveness checks for /health
	Breakers    map[string]func()      // named circuit breaker resets
}

// Server is the admin HTTP surface. Apart from breaker resets it is read-only.
type Server struct {
	opts   Options
	router *mux.Router
	srv    *http.Server
}

func NewServer(opts Options) *Server {
	s := &Server{opts: opts, router: mux.NewRouter()}
	s.setupRoutes()
	s.srv = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.opts.Metrics != nil {
		s.router.Handle("/metrics", s.opts.Metrics).Methods("GET")
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()
	if s.opts.State != nil {
		api.HandleFunc("/state", s.handleState).Methods("GET")
		api.HandleFunc("/orders/{side}", s.handleOrders).Methods("GET")
	}
	if s.opts.Journal != nil {
		api.HandleFunc("/journal", s.handleJournal).Methods("GET")
	}
	if len(s.opts.Breakers) > 0 {
		api.HandleFunc("/breakers/{name}/reset", s.handleBreakerReset).Methods("POST")
	}
}

// Handler returns the router with CORS applied.
func (s *Server) Handler() http.Handler {
	if len(s.opts.CORSOrigins) == 0 {
		return s.router
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	})
	return c.Handler(s.router)
}

// Start serves until Shutdown. http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	slog.Info("ADMIN_API_LISTENING", "addr", s.opts.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string          `json:"status"`
	Checks map[string]bool `json:"checks,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if len(s.opts.Checks) > 0 {
		resp.Checks = make(map[string]bool, len(s.opts.Checks))
		for name, check := range s.opts.Checks {
			ok := check()
			resp.Checks[name] = ok
			if !ok {
				resp.Status = "degraded"
			}
		}
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, resp)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.opts.State.State())
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	st := s.opts.State.State()
	var orders []domain.OpenOrder
	switch side := strings.ToLower(mux.Vars(r)["side"]); side {
	case "bid", "bids":
		orders = st.Bids
	case "ask", "asks":
		orders = st.Asks
	default:
		respondError(w, http.StatusBadRequest, "invalid side", side)
		return
	}
	if orders == nil {
		orders = []domain.OpenOrder{}
	}
	respondJSON(w, http.StatusOK, orders)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be 1..1000")
			return
		}
		limit = n
	}
	entries, err := s.opts.Journal.Tail(r.Context(), q.Get("kind"), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
		return
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	reset, ok := s.opts.Breakers[name]
	if !ok {
		respondError(w, http.StatusNotFound, "unknown breaker", name)
		return
	}
	reset()
	slog.Warn("ADMIN_BREAKER_RESET", "name", name, "remote", r.RemoteAddr)
	respondJSON(w, http.StatusOK, map[string]string{"name": name, "state": "CLOSED"})
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, ErrorResponse{Error: error, Message: message})
}
