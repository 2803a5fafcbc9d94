// Package web provides the optional HTTP status server.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/LuisLima2002/inertial-dynamometer-automation/pkg/pipeline"
)

// StatusSource provides engine snapshots. Implemented by *pipeline.Engine.
type StatusSource interface {
	Status() pipeline.Status
}

// StatusJSON is the /status response.
type StatusJSON struct {
	Session       string  `json:"session"`
	Cycle         int     `json:"cycle"`
	CurrentTemp   float64 `json:"current_temp"`
	HasReading    bool    `json:"has_reading"`
	HistoryLen    int     `json:"history_len"`
	OverThreshold bool    `json:"over_threshold"`
	Stalled       bool    `json:"stalled"`
	Recovering    bool    `json:"recovering"`
	Shutdown      bool    `json:"shutdown"`
}

// Server serves status and metrics over HTTP.
type Server struct {
	httpServer *http.Server
	source     StatusSource
	session    string
}

// New creates a Server reading state from source.
func New(addr, session string, source StatusSource) *Server {
	s := &Server{source: source, session: session}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.source.Status()
	resp := StatusJSON{
		Session:       s.session,
		Cycle:         st.Cycle,
		CurrentTemp:   st.CurrentTemp,
		HasReading:    st.HasReading,
		HistoryLen:    st.HistoryLen,
		OverThreshold: st.OverThreshold,
		Stalled:       st.Stalled,
		Recovering:    st.Recovering,
		Shutdown:      st.Shutdown,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.WithError(err).Warn("Failed to write status")
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	metrics.WritePrometheus(w, true)
}
