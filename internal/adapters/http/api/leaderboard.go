// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/arenalab/skillrate/internal/adapters/repository"
)

// LeaderboardDependencies defines the interface for leaderboard operations.
type LeaderboardDependencies interface {
	TopN(ctx context.Context, n int) ([]repository.Entry, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardDependencies
	maxLimit int
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies, maxLimit int) *LeaderboardHandler {
	return &LeaderboardHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

func (h *LeaderboardHandler) limit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return h.maxLimit, nil
	}
	n, err := strconv.Atoi(limitStr)
	if err != nil || n < 1 {
		return 0, ErrBadRequest
	}
	if n > h.maxLimit {
		n = h.maxLimit
	}
	return n, nil
}

// HandleGetLeaderboard handles GET /leaderboard?limit=N requests.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := h.limit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rows, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toAPIEntry(row))
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleExportCSV handles GET /leaderboard.csv?limit=N requests.
func (h *LeaderboardHandler) HandleExportCSV(w http.ResponseWriter, r *http.Request) {
	const op = "api.export_leaderboard_csv"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	n, err := h.limit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rows, err := h.deps.TopN(r.Context(), n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="leaderboard.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"rank", "player_id", "rating", "deviation", "volatility"})
	for _, row := range rows {
		_ = cw.Write([]string{
			strconv.Itoa(row.Rank),
			row.PlayerID,
			strconv.FormatFloat(row.Rating, 'f', 2, 64),
			strconv.FormatFloat(row.Deviation, 'f', 2, 64),
			strconv.FormatFloat(row.Volatility, 'f', 6, 64),
		})
	}
	cw.Flush()
}
