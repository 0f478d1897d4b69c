package api_test

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arenalab/skillrate/internal/adapters/http/api"
	"github.com/arenalab/skillrate/internal/adapters/repository"
	"github.com/arenalab/skillrate/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDeps struct {
	seen         map[string]bool
	enqueueOK    bool
	enqueued     []model.MatchOutcome
	entries      []repository.Entry
	playerErr    error
	topNErr      error
	history      []model.MatchHistoryRecord
	historyErr   error
	historyLimit int
}

func (m *mockDeps) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDeps) Unrecord(_ context.Context, id string) {
	delete(m.seen, id)
}

func (m *mockDeps) Size() int64 {
	return int64(len(m.seen))
}

func (m *mockDeps) Enqueue(_ context.Context, outcome model.MatchOutcome) bool {
	if !m.enqueueOK {
		return false
	}
	m.enqueued = append(m.enqueued, outcome)
	return true
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]repository.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.entries) {
		return m.entries, nil
	}
	return m.entries[:n], nil
}

func (m *mockDeps) Player(_ context.Context, playerID string) (repository.Entry, error) {
	if m.playerErr != nil {
		return repository.Entry{}, m.playerErr
	}
	for _, e := range m.entries {
		if e.PlayerID == playerID {
			return e, nil
		}
	}
	return repository.Entry{}, repository.ErrNotFound
}

func (m *mockDeps) History(_ context.Context, playerID string, limit int) ([]model.MatchHistoryRecord, error) {
	m.historyLimit = limit
	if m.historyErr != nil {
		return nil, m.historyErr
	}
	return m.history, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func newTestServer(deps *mockDeps) *http.ServeMux {
	server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, 100)
	mux := http.NewServeMux()
	server.Register(context.Background(), mux)
	return mux
}

func postJSON(mux *http.ServeMux, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func get(mux *http.ServeMux, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandlePostMatch(t *testing.T) {
	Convey("Given a server accepting submissions", t, func() {
		deps := &mockDeps{enqueueOK: true}
		mux := newTestServer(deps)

		validBody := `{
			"match_id": "m-1",
			"player_a": "alice",
			"player_b": "bob",
			"score_a": 1,
			"played_at": "2026-03-14T15:09:26Z"
		}`

		Convey("When posting a valid match", func() {
			rec := postJSON(mux, "/matches", validBody)

			Convey("Then the match is accepted and enqueued", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].MatchID, ShouldEqual, "m-1")
				So(deps.enqueued[0].PlayerA.PlayerID, ShouldEqual, "alice")
				So(deps.enqueued[0].ScoreA, ShouldEqual, 1.0)
				So(deps.enqueued[0].PlayedAt.Equal(time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)), ShouldBeTrue)

				var ack struct {
					Status    string `json:"status"`
					Duplicate bool   `json:"duplicate"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Status, ShouldEqual, "accepted")
				So(ack.Duplicate, ShouldBeFalse)
			})
		})

		Convey("When posting the same match twice", func() {
			first := postJSON(mux, "/matches", validBody)
			second := postJSON(mux, "/matches", validBody)

			Convey("Then the replay is acknowledged as duplicate without re-enqueueing", func() {
				So(first.Code, ShouldEqual, http.StatusAccepted)
				So(second.Code, ShouldEqual, http.StatusOK)
				So(deps.enqueued, ShouldHaveLength, 1)

				var ack struct {
					Duplicate bool `json:"duplicate"`
				}
				So(json.Unmarshal(second.Body.Bytes(), &ack), ShouldBeNil)
				So(ack.Duplicate, ShouldBeTrue)
			})
		})

		Convey("When the body is not JSON", func() {
			rec := postJSON(mux, "/matches", "not json at all")

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When required fields are missing", func() {
			rec := postJSON(mux, "/matches", `{"match_id": "m-2", "player_a": "alice", "score_a": 1}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.enqueued, ShouldBeEmpty)
			})
		})

		Convey("When a player faces itself", func() {
			rec := postJSON(mux, "/matches", `{"match_id": "m-3", "player_a": "alice", "player_b": "alice", "score_a": 1}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the score is out of range", func() {
			rec := postJSON(mux, "/matches", `{"match_id": "m-4", "player_a": "alice", "player_b": "bob", "score_a": 1.5}`)

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an independent score_b is supplied", func() {
			rec := postJSON(mux, "/matches", `{"match_id": "m-5", "player_a": "alice", "player_b": "bob", "score_a": 0.8, "score_b": 0.9}`)

			Convey("Then it is carried through to the outcome", func() {
				So(rec.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].ScoreB, ShouldNotBeNil)
				So(*deps.enqueued[0].ScoreB, ShouldEqual, 0.9)
			})
		})

		Convey("When the method is not POST", func() {
			rec := get(mux, "/matches")

			Convey("Then the route does not match", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})

	Convey("Given a server under backpressure", t, func() {
		deps := &mockDeps{enqueueOK: false}
		mux := newTestServer(deps)

		Convey("When posting a match", func() {
			rec := postJSON(mux, "/matches", `{"match_id": "m-1", "player_a": "alice", "player_b": "bob", "score_a": 1}`)

			Convey("Then the submission is rejected with 429", func() {
				So(rec.Code, ShouldEqual, http.StatusTooManyRequests)
			})

			Convey("And the match id can be retried later", func() {
				So(deps.seen["m-1"], ShouldBeFalse)
			})
		})
	})
}

func TestHandleGetLeaderboard(t *testing.T) {
	Convey("Given a server with rated players", t, func() {
		deps := &mockDeps{
			entries: []repository.Entry{
				{Rank: 1, PlayerID: "alice", Rating: 1900.5, Deviation: 60.2, Volatility: 0.059},
				{Rank: 2, PlayerID: "bob", Rating: 1700.0, Deviation: 80.0, Volatility: 0.06},
				{Rank: 3, PlayerID: "carol", Rating: 1500.0, Deviation: 350.0, Volatility: 0.06},
			},
		}
		mux := newTestServer(deps)

		Convey("When fetching the leaderboard", func() {
			rec := get(mux, "/leaderboard?limit=2")

			Convey("Then the top entries are returned in order", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entries []struct {
					Rank     int     `json:"rank"`
					PlayerID string  `json:"player_id"`
					Rating   float64 `json:"rating"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 2)
				So(entries[0].PlayerID, ShouldEqual, "alice")
				So(entries[0].Rating, ShouldEqual, 1900.5)
			})
		})

		Convey("When no limit is given", func() {
			rec := get(mux, "/leaderboard")

			Convey("Then the default cap applies", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the limit is not a number", func() {
			rec := get(mux, "/leaderboard?limit=abc")

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When exporting as CSV", func() {
			rec := get(mux, "/leaderboard.csv?limit=3")

			Convey("Then a parseable CSV document is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "text/csv")

				rows, err := csv.NewReader(rec.Body).ReadAll()
				So(err, ShouldBeNil)
				So(rows, ShouldHaveLength, 4) // header + 3 entries
				So(rows[0], ShouldResemble, []string{"rank", "player_id", "rating", "deviation", "volatility"})
				So(rows[1][1], ShouldEqual, "alice")
				So(rows[1][2], ShouldEqual, "1900.50")
			})
		})
	})
}

func TestHandleGetPlayer(t *testing.T) {
	Convey("Given a server with rated players", t, func() {
		deps := &mockDeps{
			entries: []repository.Entry{
				{Rank: 1, PlayerID: "alice", Rating: 1900, Deviation: 60, Volatility: 0.059},
			},
		}
		mux := newTestServer(deps)

		Convey("When fetching a known player", func() {
			rec := get(mux, "/players/alice")

			Convey("Then the entry is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entry struct {
					Rank     int    `json:"rank"`
					PlayerID string `json:"player_id"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &entry), ShouldBeNil)
				So(entry.PlayerID, ShouldEqual, "alice")
				So(entry.Rank, ShouldEqual, 1)
			})
		})

		Convey("When fetching an unknown player", func() {
			rec := get(mux, "/players/nobody")

			Convey("Then 404 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the player id is empty", func() {
			rec := get(mux, "/players/")

			Convey("Then the request is rejected", func() {
				So(rec.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestHandleGetHistory(t *testing.T) {
	Convey("Given a server with match history", t, func() {
		playedAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
		deps := &mockDeps{
			history: []model.MatchHistoryRecord{
				{
					MatchID:  "m-1",
					PlayedAt: playedAt,
					ScoreA:   1,
					PlayerA: model.PlayerChange{
						PlayerID: "alice",
						Before:   model.PlayerRating{PlayerID: "alice", Rating: 1500, Deviation: 350, Volatility: 0.06},
						After:    model.PlayerRating{PlayerID: "alice", Rating: 1662, Deviation: 290, Volatility: 0.06},
					},
					PlayerB: model.PlayerChange{
						PlayerID: "bob",
						Before:   model.PlayerRating{PlayerID: "bob", Rating: 1500, Deviation: 350, Volatility: 0.06},
						After:    model.PlayerRating{PlayerID: "bob", Rating: 1338, Deviation: 290, Volatility: 0.06},
					},
				},
			},
		}
		mux := newTestServer(deps)

		Convey("When fetching the winner's history", func() {
			rec := get(mux, "/players/alice/history")

			Convey("Then the record is oriented toward the requester", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entries []struct {
					MatchID  string  `json:"match_id"`
					Opponent string  `json:"opponent"`
					Score    float64 `json:"score"`
					Before   struct {
						Rating float64 `json:"rating"`
					} `json:"before"`
					After struct {
						Rating float64 `json:"rating"`
					} `json:"after"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Opponent, ShouldEqual, "bob")
				So(entries[0].Score, ShouldEqual, 1.0)
				So(entries[0].After.Rating, ShouldEqual, 1662.0)
			})
		})

		Convey("When fetching the loser's history", func() {
			rec := get(mux, "/players/bob/history")

			Convey("Then the score is complemented", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entries []struct {
					Opponent string  `json:"opponent"`
					Score    float64 `json:"score"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries[0].Opponent, ShouldEqual, "alice")
				So(entries[0].Score, ShouldEqual, 0.0)
			})
		})

		Convey("When the match carried an independent score for side B", func() {
			scoreB := 0.8
			deps.history = []model.MatchHistoryRecord{
				{
					MatchID:  "m-2",
					PlayedAt: playedAt,
					ScoreA:   0.9,
					ScoreB:   &scoreB,
					PlayerA: model.PlayerChange{
						PlayerID: "alice",
						Before:   model.PlayerRating{PlayerID: "alice", Rating: 1500, Deviation: 200, Volatility: 0.06},
						After:    model.PlayerRating{PlayerID: "alice", Rating: 1540, Deviation: 180, Volatility: 0.06},
					},
					PlayerB: model.PlayerChange{
						PlayerID: "bob",
						Before:   model.PlayerRating{PlayerID: "bob", Rating: 1500, Deviation: 200, Volatility: 0.06},
						After:    model.PlayerRating{PlayerID: "bob", Rating: 1532, Deviation: 181, Volatility: 0.06},
					},
				},
			}
			rec := get(mux, "/players/bob/history")

			Convey("Then side B sees its own recorded score", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var entries []struct {
					Opponent string  `json:"opponent"`
					Score    float64 `json:"score"`
				}
				So(json.Unmarshal(rec.Body.Bytes(), &entries), ShouldBeNil)
				So(entries[0].Opponent, ShouldEqual, "alice")
				So(entries[0].Score, ShouldEqual, 0.8)
			})
		})

		Convey("When a limit is supplied", func() {
			rec := get(mux, "/players/alice/history?limit=5")

			Convey("Then it is forwarded to the dependency", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.historyLimit, ShouldEqual, 5)
			})
		})

		Convey("When history is disabled", func() {
			deps.historyErr = repository.ErrHistoryDisabled
			rec := get(mux, "/players/alice/history")

			Convey("Then 404 reports the feature as off", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestHandleStats(t *testing.T) {
	Convey("Given a server with a stats provider", t, func() {
		deps := &mockDeps{}
		mux := newTestServer(deps)

		Convey("When fetching stats", func() {
			rec := get(mux, "/stats")

			Convey("Then the provider's view is returned as JSON", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)

				var stats map[string]interface{}
				So(json.Unmarshal(rec.Body.Bytes(), &stats), ShouldBeNil)
				So(stats["started"], ShouldBeTrue)
			})
		})
	})
}

func TestHandleHealth(t *testing.T) {
	Convey("Given a registered server", t, func() {
		mux := newTestServer(&mockDeps{})

		Convey("When probing the health endpoint", func() {
			rec := get(mux, "/healthz")

			Convey("Then the metrics exposition is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "skillrate")
			})
		})
	})
}

func TestHandleDashboard(t *testing.T) {
	Convey("Given a registered server", t, func() {
		mux := newTestServer(&mockDeps{})

		Convey("When fetching the dashboard page", func() {
			rec := get(mux, "/dashboard")

			Convey("Then the embedded page is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldContainSubstring, "text/html")
				So(rec.Body.String(), ShouldContainSubstring, "Leaderboard")
			})
		})
	})
}
