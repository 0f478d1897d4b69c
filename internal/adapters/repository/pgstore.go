package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arenalab/skillrate/internal/domain/model"
)

// PGStore implements RatingStore and MatchRecorder on PostgreSQL for
// multi-node deployments. Same OCC semantics as SQLStore.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore connects to PostgreSQL and ensures the schema exists.
func NewPGStore(ctx context.Context, url string) (*PGStore, error) {
	db, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PGStore{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *PGStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PGStore) createTables(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS ratings (
		player_id  TEXT PRIMARY KEY,
		rating     DOUBLE PRECISION NOT NULL,
		deviation  DOUBLE PRECISION NOT NULL,
		volatility DOUBLE PRECISION NOT NULL,
		generation BIGINT NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS matches (
		match_id  TEXT PRIMARY KEY,
		played_at TIMESTAMPTZ NOT NULL,
		player_a  TEXT NOT NULL,
		player_b  TEXT NOT NULL,
		score_a   DOUBLE PRECISION NOT NULL,
		score_b   DOUBLE PRECISION
	);
	CREATE TABLE IF NOT EXISTS rating_history (
		id                BIGSERIAL PRIMARY KEY,
		match_id          TEXT NOT NULL,
		player_id         TEXT NOT NULL,
		rating_before     DOUBLE PRECISION NOT NULL,
		rating_after      DOUBLE PRECISION NOT NULL,
		deviation_before  DOUBLE PRECISION NOT NULL,
		deviation_after   DOUBLE PRECISION NOT NULL,
		volatility_before DOUBLE PRECISION NOT NULL,
		volatility_after  DOUBLE PRECISION NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_player ON rating_history(player_id, id);
	`)
	if err != nil {
		return fmt.Errorf("create rating tables: %w", err)
	}
	return nil
}

// Snapshot implements RatingStore.Snapshot.
func (s *PGStore) Snapshot(ctx context.Context, playerID string) (Snapshot, error) {
	var snap Snapshot
	err := s.db.QueryRow(ctx, `
		INSERT INTO ratings (player_id, rating, deviation, volatility)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE SET player_id = EXCLUDED.player_id
		RETURNING player_id, rating, deviation, volatility, generation
	`, playerID, model.DefaultRating, model.DefaultDeviation, model.DefaultVolatility).Scan(
		&snap.Row.PlayerID, &snap.Row.Rating, &snap.Row.Deviation,
		&snap.Row.Volatility, &snap.Generation,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot rating row: %w", err)
	}
	return snap, nil
}

// ApplyMatch implements RatingStore.ApplyMatch inside one transaction.
func (s *PGStore) ApplyMatch(ctx context.Context, w PairWrite) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin apply transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, side := range []struct {
		u   model.PlayerRatingUpdate
		gen uint64
	}{{w.A, w.GenA}, {w.B, w.GenB}} {
		tag, err := tx.Exec(ctx, `
			UPDATE ratings
			SET rating=$1, deviation=$2, volatility=$3, generation=generation+1
			WHERE player_id=$4 AND generation=$5`,
			side.u.Rating, side.u.Deviation, side.u.Volatility, side.u.PlayerID, side.gen)
		if err != nil {
			return fmt.Errorf("update rating row: %w", err)
		}
		if tag.RowsAffected() != 1 {
			return ErrStaleSnapshot
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit apply transaction: %w", err)
	}
	return nil
}

// Get implements RatingStore.Get.
func (s *PGStore) Get(ctx context.Context, playerID string) (Entry, error) {
	var e Entry
	err := s.db.QueryRow(ctx, `
		SELECT player_id, rating, deviation, volatility
		FROM ratings WHERE player_id=$1`, playerID).Scan(
		&e.PlayerID, &e.Rating, &e.Deviation, &e.Volatility,
	)
	if err == pgx.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read rating row: %w", err)
	}
	return e, nil
}

// Rank returns the player's row with its current leaderboard position.
func (s *PGStore) Rank(ctx context.Context, playerID string) (Entry, error) {
	e, err := s.Get(ctx, playerID)
	if err != nil {
		return Entry{}, err
	}
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*)+1 FROM ratings
		WHERE rating > $1 OR (rating = $1 AND player_id < $2)`,
		e.Rating, playerID).Scan(&e.Rank)
	if err != nil {
		return Entry{}, fmt.Errorf("compute rank: %w", err)
	}
	return e, nil
}

// TopN returns the top N entries ordered by rating desc.
func (s *PGStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT player_id, rating, deviation, volatility
		FROM ratings ORDER BY rating DESC, player_id ASC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("select leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.PlayerID, &e.Rating, &e.Deviation, &e.Volatility); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		e.Rank = len(entries) + 1
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard rows: %w", err)
	}
	return entries, nil
}

// Count returns the number of players tracked.
func (s *PGStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM ratings`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Record implements MatchRecorder.Record.
func (s *PGStore) Record(ctx context.Context, rec model.MatchHistoryRecord) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin record transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		INSERT INTO matches (match_id, played_at, player_a, player_b, score_a, score_b)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO NOTHING`,
		rec.MatchID, rec.PlayedAt, rec.PlayerA.PlayerID, rec.PlayerB.PlayerID, rec.ScoreA, rec.ScoreB)
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateMatch
	}

	for _, change := range []model.PlayerChange{rec.PlayerA, rec.PlayerB} {
		_, err = tx.Exec(ctx, `
			INSERT INTO rating_history
			(match_id, player_id,
			 rating_before, rating_after,
			 deviation_before, deviation_after,
			 volatility_before, volatility_after)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			rec.MatchID, change.PlayerID,
			change.Before.Rating, change.After.Rating,
			change.Before.Deviation, change.After.Deviation,
			change.Before.Volatility, change.After.Volatility)
		if err != nil {
			return fmt.Errorf("insert history row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit record transaction: %w", err)
	}
	return nil
}

// History implements MatchRecorder.History, most recent first.
func (s *PGStore) History(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.db.Query(ctx, `
		SELECT m.match_id, m.played_at, m.player_a, m.player_b, m.score_a, m.score_b,
		       h.player_id,
		       h.rating_before, h.rating_after,
		       h.deviation_before, h.deviation_after,
		       h.volatility_before, h.volatility_after
		FROM rating_history h
		JOIN matches m ON m.match_id = h.match_id
		WHERE h.player_id = $1
		ORDER BY h.id DESC LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("select history: %w", err)
	}
	defer rows.Close()

	var records []model.MatchHistoryRecord
	for rows.Next() {
		var (
			rec    model.MatchHistoryRecord
			change model.PlayerChange
			a, b   string
			played time.Time
		)
		err := rows.Scan(&rec.MatchID, &played, &a, &b, &rec.ScoreA, &rec.ScoreB,
			&change.PlayerID,
			&change.Before.Rating, &change.After.Rating,
			&change.Before.Deviation, &change.After.Deviation,
			&change.Before.Volatility, &change.After.Volatility)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		rec.PlayedAt = played
		change.Before.PlayerID = change.PlayerID
		change.After.PlayerID = change.PlayerID
		rec.PlayerA = model.PlayerChange{PlayerID: a}
		rec.PlayerB = model.PlayerChange{PlayerID: b}
		if change.PlayerID == a {
			rec.PlayerA = change
		} else {
			rec.PlayerB = change
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return records, nil
}
