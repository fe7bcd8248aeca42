package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flagstream-dev/flagstream/pkg/flags"
)

// Server is the flag service: the HTTP surface external writers (experiment
// platforms, tag managers, manual scripts) mutate the store through, plus a
// live WebSocket feed of flag changes.
type Server struct {
	store  *flags.Store
	config Config
	logger *slog.Logger

	// middleware is applied inside the router so route patterns are
	// available to it.
	middleware []func(http.Handler) http.Handler
}

// New creates a flag service around the given store. A nil store uses the
// process-wide shared store; a nil logger uses slog.Default.
func New(store *flags.Store, config Config, logger *slog.Logger) *Server {
	if store == nil {
		store = flags.SharedStore()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		store:  store,
		config: config.withDefaults(),
		logger: logger,
	}
}

// Use adds middleware to the service router. Must be called before Handler.
func (s *Server) Use(mw func(http.Handler) http.Handler) {
	s.middleware = append(s.middleware, mw)
}

// Store returns the store this service mutates.
func (s *Server) Store() *flags.Store {
	return s.store
}

// Handler returns an http.Handler for mounting in external routers.
//
// Routes:
//   - GET    /flags           → full snapshot with version
//   - POST   /flags           → wholesale replace
//   - GET    /flags/{key}     → single flag
//   - PUT    /flags/{key}     → set flag value
//   - DELETE /flags/{key}     → delete flag
//   - GET    /live            → WebSocket flag feed
//   - GET    /healthz         → liveness
//   - GET    /metrics         → Prometheus exposition
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	for _, mw := range s.middleware {
		r.Use(mw)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/flags", s.handleList)
	r.Post("/flags", s.handleReplace)
	r.Get("/flags/{key}", s.handleGet)
	r.Put("/flags/{key}", s.handlePut)
	r.Delete("/flags/{key}", s.handleDelete)

	r.Get("/live", s.handleLive)

	return r
}

// ListenAndServe runs the service on the configured address.
func (s *Server) ListenAndServe() error {
	s.logger.Info("flag service listening", "addr", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

// =============================================================================
// JSON shapes
// =============================================================================

// snapshotBody is the full-mapping response and the live event payload.
type snapshotBody struct {
	Type    string         `json:"type,omitempty"`
	Version uint64         `json:"version"`
	Flags   map[string]any `json:"flags"`
}

type flagBody struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Version uint64 `json:"version"`
}

type valueBody struct {
	Value any `json:"value"`
}

type errorBody struct {
	Error string `json:"error"`
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, snapshotBody{
		Version: s.store.Version(),
		Flags:   s.store.Snapshot(),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, ok := s.store.Get(key)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, errorBody{Error: "flag not found"})
		return
	}

	s.writeJSON(w, http.StatusOK, flagBody{
		Key:     key,
		Value:   value,
		Version: s.store.Version(),
	})
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body valueBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	s.store.Set(key, body.Value)
	s.logger.Info("flag set", "key", key, "version", s.store.Version())

	s.writeJSON(w, http.StatusOK, flagBody{
		Key:     key,
		Value:   body.Value,
		Version: s.store.Version(),
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	s.store.Delete(key)
	s.logger.Info("flag deleted", "key", key, "version", s.store.Version())

	s.writeJSON(w, http.StatusOK, snapshotBody{
		Version: s.store.Version(),
		Flags:   s.store.Snapshot(),
	})
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var mapping map[string]any
	if err := json.NewDecoder(r.Body).Decode(&mapping); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}

	s.store.Replace(mapping)
	s.logger.Info("flags replaced", "count", len(mapping), "version", s.store.Version())

	s.writeJSON(w, http.StatusOK, snapshotBody{
		Version: s.store.Version(),
		Flags:   s.store.Snapshot(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("response encode error", "error", err)
	}
}
