package testmatches

import "time"

// Config holds configuration for the match load test
type Config struct {
	BaseURL    string        // Base URL of the service
	NumPlayers int           // Number of synthetic players
	NumMatches int           // Number of matches to generate
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for matches
	LogFile    string        // Log file for test output
	Verbose    bool          // Enable verbose logging
}

// Player is a synthetic participant with a hidden true strength used to
// decide match outcomes.
type Player struct {
	PlayerID string
	Strength float64
}

// Match represents a match result to be submitted
type Match struct {
	MatchID  string  `json:"match_id"`
	PlayerA  string  `json:"player_a"`
	PlayerB  string  `json:"player_b"`
	ScoreA   float64 `json:"score_a"`
	PlayedAt string  `json:"played_at"`
}

// Entry represents a leaderboard entry
type Entry struct {
	Rank       int     `json:"rank"`
	PlayerID   string  `json:"player_id"`
	Rating     float64 `json:"rating"`
	Deviation  float64 `json:"deviation"`
	Volatility float64 `json:"volatility"`
}

// AckResponse represents the response from match submission
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds test statistics
type Stats struct {
	MatchesGenerated   int
	MatchesSubmitted   int
	MatchesSuccessful  int
	MatchesDuplicate   int
	MatchesFailed      int
	PlayersRetrieved   int
	LeaderboardEntries int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}
