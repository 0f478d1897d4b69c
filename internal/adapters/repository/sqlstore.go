package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/pkg/errors"

	"github.com/arenalab/skillrate/internal/domain/model"
)

// SQLStore implements RatingStore and MatchRecorder on SQLite. Suited
// for single-node deployments and local tooling; the generation column
// provides the optimistic concurrency the pairwise apply relies on.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore opens (or creates) the SQLite database at path.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open sqlite database")
	}

	s := &SQLStore{db: db}
	if err := s.createTables(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return errors.Wrap(s.db.Close(), "unable to close database")
}

func (s *SQLStore) createTables() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS ratings (
		player_id  TEXT NOT NULL PRIMARY KEY,
		rating     REAL NOT NULL,
		deviation  REAL NOT NULL,
		volatility REAL NOT NULL,
		generation INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS matches (
		match_id  TEXT NOT NULL PRIMARY KEY,
		played_at INTEGER NOT NULL,
		player_a  TEXT NOT NULL,
		player_b  TEXT NOT NULL,
		score_a   REAL NOT NULL,
		score_b   REAL
	);
	CREATE TABLE IF NOT EXISTS rating_history (
		id                INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
		match_id          TEXT NOT NULL,
		player_id         TEXT NOT NULL,
		rating_before     REAL NOT NULL,
		rating_after      REAL NOT NULL,
		deviation_before  REAL NOT NULL,
		deviation_after   REAL NOT NULL,
		volatility_before REAL NOT NULL,
		volatility_after  REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_player ON rating_history(player_id, id);
	`)
	return errors.Wrap(err, "unable to create rating tables")
}

type ratingRow struct {
	PlayerID   string  `db:"player_id"`
	Rating     float64 `db:"rating"`
	Deviation  float64 `db:"deviation"`
	Volatility float64 `db:"volatility"`
	Generation uint64  `db:"generation"`
}

// Snapshot implements RatingStore.Snapshot.
func (s *SQLStore) Snapshot(ctx context.Context, playerID string) (Snapshot, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO ratings (player_id, rating, deviation, volatility)
		VALUES (?, ?, ?, ?)`,
		playerID, model.DefaultRating, model.DefaultDeviation, model.DefaultVolatility)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "unable to seed rating row")
	}

	var r ratingRow
	err = s.db.GetContext(ctx, &r, `
		SELECT player_id, rating, deviation, volatility, generation
		FROM ratings WHERE player_id=?`, playerID)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "unable to read rating row")
	}

	return Snapshot{
		Row: model.PlayerRating{
			PlayerID:   r.PlayerID,
			Rating:     r.Rating,
			Deviation:  r.Deviation,
			Volatility: r.Volatility,
		},
		Generation: r.Generation,
	}, nil
}

// ApplyMatch implements RatingStore.ApplyMatch: both rows update in one
// transaction guarded by their generations, or neither does.
func (s *SQLStore) ApplyMatch(ctx context.Context, w PairWrite) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin apply transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if err := applyOne(ctx, tx, w.A, w.GenA); err != nil {
		return err
	}
	if err := applyOne(ctx, tx, w.B, w.GenB); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "unable to commit apply transaction")
}

func applyOne(ctx context.Context, tx *sqlx.Tx, u model.PlayerRatingUpdate, gen uint64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE ratings
		SET rating=?, deviation=?, volatility=?, generation=generation+1
		WHERE player_id=? AND generation=?`,
		u.Rating, u.Deviation, u.Volatility, u.PlayerID, gen)
	if err != nil {
		return errors.Wrap(err, "unable to update rating row")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "unable to read rows affected")
	}
	if n != 1 {
		return ErrStaleSnapshot
	}
	return nil
}

// Get implements RatingStore.Get.
func (s *SQLStore) Get(ctx context.Context, playerID string) (Entry, error) {
	var r ratingRow
	err := s.db.GetContext(ctx, &r, `
		SELECT player_id, rating, deviation, volatility, generation
		FROM ratings WHERE player_id=?`, playerID)
	if err == sql.ErrNoRows {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, "unable to read rating row")
	}
	return Entry{
		PlayerID:   r.PlayerID,
		Rating:     r.Rating,
		Deviation:  r.Deviation,
		Volatility: r.Volatility,
	}, nil
}

// Rank returns the player's row with its current leaderboard position.
func (s *SQLStore) Rank(ctx context.Context, playerID string) (Entry, error) {
	e, err := s.Get(ctx, playerID)
	if err != nil {
		return Entry{}, err
	}
	var rank int
	err = s.db.GetContext(ctx, &rank, `
		SELECT COUNT(*)+1 FROM ratings
		WHERE rating > ? OR (rating = ? AND player_id < ?)`,
		e.Rating, e.Rating, playerID)
	if err != nil {
		return Entry{}, errors.Wrap(err, "unable to compute rank")
	}
	e.Rank = rank
	return e, nil
}

// TopN returns the top N entries ordered by rating desc, ties broken by
// player id for deterministic output.
func (s *SQLStore) TopN(ctx context.Context, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	var rows []ratingRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT player_id, rating, deviation, volatility, generation
		FROM ratings ORDER BY rating DESC, player_id ASC LIMIT ?`, n)
	if err != nil {
		return nil, errors.Wrap(err, "unable to select leaderboard")
	}

	entries := make([]Entry, len(rows))
	for i, r := range rows {
		entries[i] = Entry{
			Rank:       i + 1,
			PlayerID:   r.PlayerID,
			Rating:     r.Rating,
			Deviation:  r.Deviation,
			Volatility: r.Volatility,
		}
	}
	return entries, nil
}

// Count returns the number of players tracked.
func (s *SQLStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ratings`); err != nil {
		return 0
	}
	return n
}

// Record implements MatchRecorder.Record: one match row plus a history
// row per side, in a single transaction.
func (s *SQLStore) Record(ctx context.Context, rec model.MatchHistoryRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin record transaction")
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches (match_id, played_at, player_a, player_b, score_a, score_b)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.MatchID, rec.PlayedAt.UnixMilli(),
		rec.PlayerA.PlayerID, rec.PlayerB.PlayerID, rec.ScoreA, rec.ScoreB)
	if err != nil {
		return errors.Wrap(err, "unable to insert match")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateMatch
	}

	for _, change := range []model.PlayerChange{rec.PlayerA, rec.PlayerB} {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rating_history
			(match_id, player_id,
			 rating_before, rating_after,
			 deviation_before, deviation_after,
			 volatility_before, volatility_after)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.MatchID, change.PlayerID,
			change.Before.Rating, change.After.Rating,
			change.Before.Deviation, change.After.Deviation,
			change.Before.Volatility, change.After.Volatility)
		if err != nil {
			return errors.Wrap(err, "unable to insert history row")
		}
	}
	return errors.Wrap(tx.Commit(), "unable to commit record transaction")
}

type historyRow struct {
	MatchID          string   `db:"match_id"`
	PlayedAt         int64    `db:"played_at"`
	PlayerA          string   `db:"player_a"`
	PlayerB          string   `db:"player_b"`
	ScoreA           float64  `db:"score_a"`
	ScoreB           *float64 `db:"score_b"`
	PlayerID         string   `db:"player_id"`
	RatingBefore     float64  `db:"rating_before"`
	RatingAfter      float64  `db:"rating_after"`
	DeviationBefore  float64  `db:"deviation_before"`
	DeviationAfter   float64  `db:"deviation_after"`
	VolatilityBefore float64  `db:"volatility_before"`
	VolatilityAfter  float64  `db:"volatility_after"`
}

// History implements MatchRecorder.History, most recent first. Only the
// requesting player's side of each match carries before/after values;
// the opposing side is identified but not expanded.
func (s *SQLStore) History(ctx context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT m.match_id, m.played_at, m.player_a, m.player_b, m.score_a, m.score_b,
		       h.player_id,
		       h.rating_before, h.rating_after,
		       h.deviation_before, h.deviation_after,
		       h.volatility_before, h.volatility_after
		FROM rating_history h
		JOIN matches m ON m.match_id = h.match_id
		WHERE h.player_id = ?
		ORDER BY h.id DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "unable to select history")
	}

	records := make([]model.MatchHistoryRecord, len(rows))
	for i, r := range rows {
		change := model.PlayerChange{
			PlayerID: r.PlayerID,
			Before: model.PlayerRating{
				PlayerID:   r.PlayerID,
				Rating:     r.RatingBefore,
				Deviation:  r.DeviationBefore,
				Volatility: r.VolatilityBefore,
			},
			After: model.PlayerRating{
				PlayerID:   r.PlayerID,
				Rating:     r.RatingAfter,
				Deviation:  r.DeviationAfter,
				Volatility: r.VolatilityAfter,
			},
		}
		rec := model.MatchHistoryRecord{
			MatchID:  r.MatchID,
			PlayedAt: time.UnixMilli(r.PlayedAt),
			ScoreA:   r.ScoreA,
			ScoreB:   r.ScoreB,
			PlayerA:  model.PlayerChange{PlayerID: r.PlayerA},
			PlayerB:  model.PlayerChange{PlayerID: r.PlayerB},
		}
		if r.PlayerID == r.PlayerA {
			rec.PlayerA = change
		} else {
			rec.PlayerB = change
		}
		records[i] = rec
	}
	return records, nil
}
