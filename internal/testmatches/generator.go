package testmatches

import (
	"context"
	"crypto/rand"
	"math"
	"math/big"
	"time"

	"github.com/arenalab/skillrate/pkg/logger"
	"github.com/google/uuid"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	strengthTierCount  = 5
)

// Strength tiers spread players across the skill spectrum. Outcomes are
// drawn from a logistic model on the strength gap, so the leaderboard
// should converge toward tier order as matches accumulate.
const (
	tierCasualStrength   = -2.0
	tierAverageStrength  = -0.5
	tierSkilledStrength  = 0.5
	tierExpertStrength   = 1.5
	tierEliteStrength    = 3.0
	strengthJitterRange  = 0.5
	logisticOutcomeScale = 1.0
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, max) using crypto/rand.
func getRandomInt(max int) int {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(max)))
	return int(n.Int64())
}

// generatePlayers builds a pool of synthetic players with hidden
// strengths drawn from tiered bands.
func generatePlayers(ctx context.Context, config *Config) []Player {
	logger.Get().Info(ctx, "generating player pool", logger.Int("numPlayers", config.NumPlayers))

	players := make([]Player, config.NumPlayers)
	for i := range players {
		players[i] = Player{
			PlayerID: uuid.New().String(),
			Strength: tierStrength(i%strengthTierCount) + (getRandomFloat()-0.5)*strengthJitterRange,
		}
	}
	return players
}

func tierStrength(tier int) float64 {
	switch tier {
	case 0:
		return tierCasualStrength
	case 1:
		return tierAverageStrength
	case 2:
		return tierSkilledStrength
	case 3:
		return tierExpertStrength
	default:
		return tierEliteStrength
	}
}

// generateMatches pairs random players and decides each outcome from the
// strength gap.
func generateMatches(ctx context.Context, config *Config, players []Player, stats *Stats) ([]Match, error) {
	logger.Get().Info(ctx, "generating matches", logger.Int("numMatches", config.NumMatches))

	matches := make([]Match, 0, config.NumMatches)
	for i := 0; i < config.NumMatches; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		a := getRandomInt(len(players))
		b := getRandomInt(len(players))
		for b == a {
			b = getRandomInt(len(players))
		}
		matches = append(matches, generateSingleMatch(players[a], players[b]))
	}

	stats.MatchesGenerated = len(matches)
	logger.Get().Info(ctx, "generated matches successfully", logger.Int("count", len(matches)))

	return matches, nil
}

// generateSingleMatch decides a winner with logistic probability on the
// strength gap. A small slice of matches ends drawn.
func generateSingleMatch(a, b Player) Match {
	winProbA := 1.0 / (1.0 + math.Exp(-(a.Strength-b.Strength)*logisticOutcomeScale))

	scoreA := 0.0
	switch roll := getRandomFloat(); {
	case roll < 0.05:
		scoreA = 0.5
	case getRandomFloat() < winProbA:
		scoreA = 1.0
	}

	return Match{
		MatchID:  uuid.New().String(),
		PlayerA:  a.PlayerID,
		PlayerB:  b.PlayerID,
		ScoreA:   scoreA,
		PlayedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
