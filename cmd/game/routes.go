package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/arena"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/stats"
)

// Build metadata injected via -ldflags at build time
var (
	buildVersion = "dev"
	buildTime    = ""
)

type server struct {
	arena   *arena.Arena
	hub     *arena.Hub
	records *stats.Records
	ws      http.Handler
	now     func() time.Time
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/ws", s.ws)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	r.HandleFunc("/queue", s.handleQueue).Methods(http.MethodGet)
	r.HandleFunc("/matches", s.handleMatches).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id:[0-9]+}", s.handleMatch).Methods(http.MethodGet)
	r.HandleFunc("/matches/{id:[0-9]+}/cancel", s.handleCancel).Methods(http.MethodPost)
	r.HandleFunc("/records/{handle}", s.handleRecord).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard/daily", s.handleDaily).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": buildVersion, "time": buildTime})
	}).Methods(http.MethodGet)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 2*time.Second)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	c := s.arena.Counters()
	writeJSON(w, http.StatusOK, map[string]any{
		"queued":        c.Queued,
		"connections":   s.hub.Count(),
		"activeMatches": c.ActiveMatches,
		"totalMatches":  c.TotalMatches,
		"ticks":         c.Ticks,
	})
}

func (s *server) handleQueue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := queryContext(r)
	defer cancel()
	q, err := s.arena.Queue(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *server) handleMatches(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := queryContext(r)
	defer cancel()
	ms, err := s.arena.Matches(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func matchID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}

func (s *server) handleMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		http.Error(w, "bad match id", http.StatusBadRequest)
		return
	}
	ctx, cancel := queryContext(r)
	defer cancel()
	m, err := s.arena.Match(ctx, id)
	switch {
	case errors.Is(err, arena.ErrMatchNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		writeJSON(w, http.StatusOK, m)
	}
}

func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(r)
	if !ok {
		http.Error(w, "bad match id", http.StatusBadRequest)
		return
	}
	ctx, cancel := queryContext(r)
	defer cancel()
	switch err := s.arena.CancelMatch(ctx, id); {
	case errors.Is(err, arena.ErrMatchNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, arena.ErrMatchOver):
		http.Error(w, err.Error(), http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleRecord(w http.ResponseWriter, r *http.Request) {
	handle := strings.TrimSpace(mux.Vars(r)["handle"])
	if handle == "" {
		http.Error(w, "missing handle", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.records.Get(handle))
}

func (s *server) handleDaily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.records.TopHitOn(s.now()))
}
