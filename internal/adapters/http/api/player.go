// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/model"
)

// PlayerDependencies defines the interface for per-player read operations.
type PlayerDependencies interface {
	Player(ctx context.Context, playerID string) (repository.Entry, error)
	History(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error)
}

// PlayerHandler handles per-player requests.
type PlayerHandler struct {
	deps     PlayerDependencies
	maxLimit int
}

// NewPlayerHandler creates a new player handler.
func NewPlayerHandler(deps PlayerDependencies, maxLimit int) *PlayerHandler {
	return &PlayerHandler{deps: deps, maxLimit: maxLimit}
}

// ratingState mirrors a rating triple in history responses.
type ratingState struct {
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
}

// historyEntry mirrors one rated match in a player's history.
type historyEntry struct {
	MatchID  string      `json:"match_id"`
	PlayedAt string      `json:"played_at"`
	Opponent string      `json:"opponent"`
	Score    float64     `json:"score"`
	Before   ratingState `json:"before"`
	After    ratingState `json:"after"`
}

func toRatingState(r model.PlayerRating) ratingState {
	return ratingState{Rating: r.Rating, Deviation: r.Deviation, Volatility: r.Volatility}
}

// toHistoryEntry orients a stored record toward the requesting player.
func toHistoryEntry(playerID string, rec model.MatchHistoryRecord) historyEntry {
	e := historyEntry{
		MatchID:  rec.MatchID,
		PlayedAt: rec.PlayedAt.UTC().Format(time.RFC3339),
	}
	if rec.PlayerA.PlayerID == playerID {
		e.Opponent = rec.PlayerB.PlayerID
		e.Score = rec.ScoreA
		e.Before = toRatingState(rec.PlayerA.Before)
		e.After = toRatingState(rec.PlayerA.After)
		return e
	}
	e.Opponent = rec.PlayerA.PlayerID
	e.Score = rec.OutcomeForB()
	e.Before = toRatingState(rec.PlayerB.Before)
	e.After = toRatingState(rec.PlayerB.After)
	return e
}

// HandleGetPlayer handles GET /players/{player_id} and
// GET /players/{player_id}/history requests.
func (h *PlayerHandler) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameters after /players/
	path := strings.TrimPrefix(r.URL.Path, "/players/")
	if id, ok := strings.CutSuffix(path, "/history"); ok {
		h.history(w, r, id)
		return
	}
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	entry, err := h.deps.Player(r.Context(), path)
	if err != nil {
		// If upstream exposes not-found, translate; otherwise 500
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIEntry(entry))
}

func (h *PlayerHandler) history(w http.ResponseWriter, r *http.Request, playerID string) {
	const op = "api.get_player_history"
	if playerID == "" || strings.Contains(playerID, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	limit := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n < limit {
			limit = n
		}
	}
	records, err := h.deps.History(r.Context(), playerID, limit)
	if err != nil {
		if errors.Is(err, repository.ErrHistoryDisabled) {
			writeError(w, http.StatusNotFound, "history_disabled", Wrap(op, err))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, toHistoryEntry(playerID, rec))
	}
	writeJSON(w, http.StatusOK, entries)
}
