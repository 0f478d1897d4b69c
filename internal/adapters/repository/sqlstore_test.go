package repository_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/model"
)

func openSQLStore(t *testing.T) *repository.SQLStore {
	t.Helper()
	store, err := repository.NewSQLStore(filepath.Join(t.TempDir(), "ratings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func ratingUpdate(playerID string, rating float64) model.PlayerRatingUpdate {
	return model.PlayerRatingUpdate{
		PlayerID:   playerID,
		Rating:     rating,
		Deviation:  290.0,
		Volatility: 0.06,
		Converged:  true,
	}
}

func TestSQLStoreSnapshot(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()

	snap, err := store.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", snap.Row.PlayerID)
	assert.Equal(t, model.DefaultRating, snap.Row.Rating)
	assert.Equal(t, model.DefaultDeviation, snap.Row.Deviation)
	assert.Equal(t, model.DefaultVolatility, snap.Row.Volatility)
	assert.Equal(t, uint64(0), snap.Generation)

	// Reading again must not reset anything.
	again, err := store.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, snap, again)
}

func TestSQLStoreApplyMatch(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()

	a, err := store.Snapshot(ctx, "alice")
	require.NoError(t, err)
	b, err := store.Snapshot(ctx, "bob")
	require.NoError(t, err)

	write := repository.PairWrite{
		A:    ratingUpdate("alice", 1662.3),
		B:    ratingUpdate("bob", 1337.7),
		GenA: a.Generation,
		GenB: b.Generation,
	}
	require.NoError(t, store.ApplyMatch(ctx, write))

	entry, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1662.3, entry.Rating)
	assert.Equal(t, 290.0, entry.Deviation)

	snap, err := store.Snapshot(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), snap.Generation)

	// Re-applying from the consumed snapshot must fail without writes.
	err = store.ApplyMatch(ctx, write)
	assert.ErrorIs(t, err, repository.ErrStaleSnapshot)

	entry, err = store.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1337.7, entry.Rating)
}

func TestSQLStoreApplyMatchAtomicity(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()

	a, err := store.Snapshot(ctx, "alice")
	require.NoError(t, err)
	b, err := store.Snapshot(ctx, "bob")
	require.NoError(t, err)

	// Advance bob out from under the snapshot.
	c, err := store.Snapshot(ctx, "carol")
	require.NoError(t, err)
	require.NoError(t, store.ApplyMatch(ctx, repository.PairWrite{
		A:    ratingUpdate("bob", 1600),
		B:    ratingUpdate("carol", 1400),
		GenA: b.Generation,
		GenB: c.Generation,
	}))

	err = store.ApplyMatch(ctx, repository.PairWrite{
		A:    ratingUpdate("alice", 1700),
		B:    ratingUpdate("bob", 1500),
		GenA: a.Generation,
		GenB: b.Generation,
	})
	assert.ErrorIs(t, err, repository.ErrStaleSnapshot)

	// Alice must be untouched by the failed apply.
	entry, err := store.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultRating, entry.Rating)
}

func TestSQLStoreReads(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()

	seedPair := func(idA string, ratingA float64, idB string, ratingB float64) {
		a, err := store.Snapshot(ctx, idA)
		require.NoError(t, err)
		b, err := store.Snapshot(ctx, idB)
		require.NoError(t, err)
		require.NoError(t, store.ApplyMatch(ctx, repository.PairWrite{
			A:    ratingUpdate(idA, ratingA),
			B:    ratingUpdate(idB, ratingB),
			GenA: a.Generation,
			GenB: b.Generation,
		}))
	}
	seedPair("alice", 1900, "bob", 1700)
	seedPair("carol", 1700, "dave", 1400)

	t.Run("TopN orders by rating with id tie-break", func(t *testing.T) {
		entries, err := store.TopN(ctx, 3)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "alice", entries[0].PlayerID)
		assert.Equal(t, 1, entries[0].Rank)
		assert.Equal(t, "bob", entries[1].PlayerID)
		assert.Equal(t, "carol", entries[2].PlayerID)
	})

	t.Run("TopN beyond population returns all", func(t *testing.T) {
		entries, err := store.TopN(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, entries, 4)
	})

	t.Run("TopN rejects a non-positive limit", func(t *testing.T) {
		_, err := store.TopN(ctx, 0)
		assert.ErrorIs(t, err, repository.ErrInvalidLimit)
	})

	t.Run("Rank positions a player", func(t *testing.T) {
		entry, err := store.Rank(ctx, "dave")
		require.NoError(t, err)
		assert.Equal(t, 4, entry.Rank)
	})

	t.Run("Get rejects unknown players", func(t *testing.T) {
		_, err := store.Get(ctx, "nobody")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("Count tracks the population", func(t *testing.T) {
		assert.Equal(t, 4, store.Count(ctx))
	})
}

func TestSQLStoreRecordAndHistory(t *testing.T) {
	store := openSQLStore(t)
	ctx := context.Background()
	playedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	record := func(matchID string, scoreA float64) model.MatchHistoryRecord {
		before := model.NewPlayerRating("alice")
		after := before
		after.Rating = 1662
		return model.MatchHistoryRecord{
			MatchID:  matchID,
			PlayedAt: playedAt,
			ScoreA:   scoreA,
			PlayerA:  model.PlayerChange{PlayerID: "alice", Before: before, After: after},
			PlayerB: model.PlayerChange{
				PlayerID: "bob",
				Before:   model.NewPlayerRating("bob"),
				After:    model.NewPlayerRating("bob"),
			},
		}
	}

	require.NoError(t, store.Record(ctx, record("m-1", 1)))
	require.NoError(t, store.Record(ctx, record("m-2", 0.5)))

	t.Run("duplicate match ids are rejected", func(t *testing.T) {
		err := store.Record(ctx, record("m-1", 1))
		assert.ErrorIs(t, err, repository.ErrDuplicateMatch)
	})

	t.Run("history returns most recent first", func(t *testing.T) {
		records, err := store.History(ctx, "alice", 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "m-2", records[0].MatchID)
		assert.Equal(t, "m-1", records[1].MatchID)
		assert.Equal(t, 0.5, records[0].ScoreA)
		assert.True(t, records[0].PlayedAt.Equal(playedAt))
		assert.Equal(t, 1662.0, records[1].PlayerA.After.Rating)
		assert.Equal(t, "bob", records[1].PlayerB.PlayerID)
	})

	t.Run("limit truncates", func(t *testing.T) {
		records, err := store.History(ctx, "alice", 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "m-2", records[0].MatchID)
	})

	t.Run("opposing side sees its own changes", func(t *testing.T) {
		records, err := store.History(ctx, "bob", 10)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, "bob", records[0].PlayerB.PlayerID)
		assert.Equal(t, model.DefaultRating, records[0].PlayerB.Before.Rating)
	})

	t.Run("invalid limit is rejected", func(t *testing.T) {
		_, err := store.History(ctx, "alice", 0)
		assert.ErrorIs(t, err, repository.ErrInvalidLimit)
	})

	t.Run("independent side-B score survives the round trip", func(t *testing.T) {
		scoreB := 0.8
		rec := record("m-3", 0.9)
		rec.ScoreB = &scoreB
		require.NoError(t, store.Record(ctx, rec))

		records, err := store.History(ctx, "bob", 1)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.NotNil(t, records[0].ScoreB)
		assert.Equal(t, 0.8, *records[0].ScoreB)
		assert.Equal(t, 0.8, records[0].OutcomeForB())

		older, err := store.History(ctx, "bob", 10)
		require.NoError(t, err)
		assert.Nil(t, older[len(older)-1].ScoreB)
		assert.Equal(t, 0.0, older[len(older)-1].OutcomeForB())
	})
}
