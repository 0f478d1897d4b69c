// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/dedupe"
	"github.com/arenalab/skillrate/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an outcome for async rating. Returns false on
	// backpressure.
	Enqueue(ctx context.Context, outcome model.MatchOutcome) bool

	// Read operations expose rating data.
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
	Player(ctx context.Context, playerID string) (repository.Entry, error)
	History(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	matchesHandler     *MatchesHandler
	leaderboardHandler *LeaderboardHandler
	playerHandler      *PlayerHandler
	dashboardHandler   *dashboardHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		matchesHandler:     NewMatchesHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		playerHandler:      NewPlayerHandler(deps, maxLimit),
		dashboardHandler:   newDashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandlePostMatch, "matches"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/leaderboard.csv", MetricsMiddleware(s.leaderboardHandler.HandleExportCSV, "leaderboard_csv"))
	mux.HandleFunc("/players/", MetricsMiddleware(s.playerHandler.HandleGetPlayer, "players"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
}

func toAPIEntry(e repository.Entry) Entry {
	return Entry{
		Rank:       e.Rank,
		PlayerID:   e.PlayerID,
		Rating:     e.Rating,
		Deviation:  e.Deviation,
		Volatility: e.Volatility,
	}
}

// matchRequest mirrors the submission schema for POST /matches.
type matchRequest struct {
	MatchID  string   `json:"match_id"`
	PlayerA  string   `json:"player_a"`
	PlayerB  string   `json:"player_b"`
	ScoreA   float64  `json:"score_a"`
	ScoreB   *float64 `json:"score_b,omitempty"`
	PlayedAt string   `json:"played_at,omitempty"`
}

func (m matchRequest) validate() error {
	switch {
	case strings.TrimSpace(m.MatchID) == "":
		return errors.New("missing match_id")
	case strings.TrimSpace(m.PlayerA) == "":
		return errors.New("missing player_a")
	case strings.TrimSpace(m.PlayerB) == "":
		return errors.New("missing player_b")
	case m.PlayerA == m.PlayerB:
		return errors.New("player_a and player_b must differ")
	case m.ScoreA < 0 || m.ScoreA > 1:
		return errors.New("score_a must be within [0,1]")
	}
	if m.ScoreB != nil && (*m.ScoreB < 0 || *m.ScoreB > 1) {
		return errors.New("score_b must be within [0,1]")
	}
	if m.PlayedAt != "" {
		if _, err := time.Parse(time.RFC3339, m.PlayedAt); err != nil {
			return errors.New("invalid played_at; must be RFC3339")
		}
	}
	return nil
}

// outcome converts the request to the domain type. Pre-match snapshots
// are filled by the worker from the authoritative store.
func (m matchRequest) outcome() model.MatchOutcome {
	playedAt := time.Now().UTC()
	if m.PlayedAt != "" {
		if t, err := time.Parse(time.RFC3339, m.PlayedAt); err == nil {
			playedAt = t
		}
	}
	return model.MatchOutcome{
		MatchID:  m.MatchID,
		PlayerA:  model.Participant{PlayerID: m.PlayerA},
		PlayerB:  model.Participant{PlayerID: m.PlayerB},
		ScoreA:   m.ScoreA,
		ScoreB:   m.ScoreB,
		PlayedAt: playedAt,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
