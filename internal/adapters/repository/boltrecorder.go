package repository

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"

	"github.com/arenalab/skillrate/internal/domain/model"
)

// Bucket layout: "matches" holds match_id -> record; "history" holds one
// nested bucket per player with sequence-keyed match ids, so per-player
// history reads walk backwards without scanning all matches.
var (
	bucketMatches = []byte("matches")
	bucketHistory = []byte("history")
)

// BoltRecorder implements MatchRecorder on an embedded bolt database
// with JSON-encoded records. An alternative to the SQL recorders when
// the rating rows live in memory but the audit trail must survive
// restarts.
type BoltRecorder struct {
	db *bolt.DB
}

// NewBoltRecorder opens (or creates) the bolt database at path.
func NewBoltRecorder(path string) (*BoltRecorder, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open match history database")
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketMatches); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketHistory)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create history buckets")
	}
	return &BoltRecorder{db: db}, nil
}

// Close releases the underlying database handle.
func (b *BoltRecorder) Close() error {
	return errors.Wrap(b.db.Close(), "unable to close match history database")
}

// Record implements MatchRecorder.Record.
func (b *BoltRecorder) Record(_ context.Context, rec model.MatchHistoryRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "unable to encode match record")
	}

	err = b.db.Update(func(tx *bolt.Tx) error {
		matches := tx.Bucket(bucketMatches)
		if matches.Get([]byte(rec.MatchID)) != nil {
			return ErrDuplicateMatch
		}
		if err := matches.Put([]byte(rec.MatchID), payload); err != nil {
			return err
		}

		history := tx.Bucket(bucketHistory)
		for _, playerID := range []string{rec.PlayerA.PlayerID, rec.PlayerB.PlayerID} {
			pb, err := history.CreateBucketIfNotExists([]byte(playerID))
			if err != nil {
				return err
			}
			seq, err := pb.NextSequence()
			if err != nil {
				return err
			}
			var key [8]byte
			binary.BigEndian.PutUint64(key[:], seq)
			if err := pb.Put(key[:], []byte(rec.MatchID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err == ErrDuplicateMatch {
		return err
	}
	return errors.Wrap(err, "unable to record match")
}

// History implements MatchRecorder.History, most recent first.
func (b *BoltRecorder) History(_ context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}

	var records []model.MatchHistoryRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		pb := tx.Bucket(bucketHistory).Bucket([]byte(playerID))
		if pb == nil {
			return nil // no matches yet
		}
		matches := tx.Bucket(bucketMatches)

		c := pb.Cursor()
		for k, matchID := c.Last(); k != nil && len(records) < limit; k, matchID = c.Prev() {
			payload := matches.Get(matchID)
			if payload == nil {
				continue
			}
			var rec model.MatchHistoryRecord
			if err := json.Unmarshal(payload, &rec); err != nil {
				return err
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to read match history")
	}
	return records, nil
}
