// Package api exposes read-only batch progress over HTTP: JSON
// snapshots for polling and a websocket stream fed by the state file
// watcher. The server never mutates state; the scheduler process owns
// all writes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/report"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
	"golang.org/x/sync/errgroup"
)

// Server is the HTTP status server
type Server struct {
	store *statestore.Store
	addr  string
	mux   *http.ServeMux
}

// BatchView is the JSON shape served for one batch
type BatchView struct {
	State   *domain.BatchState `json:"state"`
	Summary report.Summary     `json:"summary"`
}

// NewServer creates a new status server over the given state store
func NewServer(store *statestore.Store, addr string) *Server {
	s := &Server{
		store: store,
		addr:  addr,
		mux:   http.NewServeMux(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/batches", s.listBatchesHandler())
	s.mux.HandleFunc("/api/batches/", s.getBatchHandler())
	s.mux.HandleFunc("/ws/batches/", s.streamBatchHandler())
}

// Handler returns the route mux, for tests
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start serves until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) listBatchesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := s.store.List()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, map[string][]string{"batches": ids})
	}
}

func (s *Server) getBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := strings.TrimPrefix(r.URL.Path, "/api/batches/")
		if !statestore.ValidID(batchID) || strings.Contains(batchID, "/") {
			writeError(w, http.StatusNotFound, "unknown batch")
			return
		}

		state, err := s.store.Load(batchID)
		if err != nil {
			if errors.Is(err, statestore.ErrNotFound) {
				writeError(w, http.StatusNotFound, "unknown batch")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, BatchView{State: state, Summary: report.Summarize(state)})
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
