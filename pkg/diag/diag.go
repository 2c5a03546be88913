// Package diag exposes a read-only HTTP surface for operational visibility
// into the daemon: current uptime and a snapshot of validated listings and
// order statuses.
package diag

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/rad-roots-labs/rhi/pkg/state"
)

// Server serves /healthz and /state over plain HTTP; it never mutates the
// aggregate, only reads its snapshot methods.
type Server struct {
	state   *state.TradeListingState
	router  *mux.Router
	started time.Time
}

func NewServer(st *state.TradeListingState) *Server {
	s := &Server{state: st, router: mux.NewRouter(), started: time.Now()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")
	s.router.HandleFunc("/state", s.handleState).Methods("GET")
}

// Start serves the diagnostics endpoints on addr until the listener errors
// or the process exits; callers typically launch it in its
// own goroutine alongside the supervisor.
func (s *Server) Start(addr string) error {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	})
	return http.ListenAndServe(addr, c.Handler(s.router))
}

type healthzResponse struct {
	Status   string `json:"status"`
	UptimeMs int64  `json:"uptime_ms"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, healthzResponse{Status: "ok", UptimeMs: time.Since(s.started).Milliseconds()})
}

type stateResponse struct {
	ValidatedListingCount int                          `json:"validated_listing_count"`
	Orders                map[string]state.OrderStatus `json:"orders"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, stateResponse{
		ValidatedListingCount: s.state.ValidatedListingCount(),
		Orders:                s.state.OrderSnapshot(),
	})
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
