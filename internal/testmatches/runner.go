package testmatches

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/arenalab/skillrate/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
)

// Run executes the complete match load test.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting skillrate match test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.NumPlayers),
		logger.Int("matches", config.NumMatches),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.Int("topN", config.TopN),
		logger.String("logFile", config.LogFile),
		logger.Any("verbose", config.Verbose))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate the player pool and matches
	players := generatePlayers(ctx, config)
	matches, err := generateMatches(ctx, config, players, stats)
	if err != nil {
		return fmt.Errorf("match generation failed: %w", err)
	}

	// Step 3: Submit matches concurrently
	if err := submitMatches(ctx, config, matches, stats); err != nil {
		return fmt.Errorf("match submission failed: %w", err)
	}

	// Step 4: Wait for the queue to drain
	logger.Get().Info(ctx, "waiting for matches to be rated")
	time.Sleep(ProcessingDrainDelay)

	// Step 5: Retrieve per-player ratings concurrently
	entries, err := retrievePlayers(ctx, config, players, stats)
	if err != nil {
		return fmt.Errorf("rating retrieval failed: %w", err)
	}

	// Step 6: Get leaderboard
	leaderboard, err := getLeaderboard(ctx, config, stats)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Verify results
	if err := verifyResults(config, players, entries, leaderboard); err != nil {
		return fmt.Errorf("result verification failed: %w", err)
	}

	// Step 8: Save matches to file
	if err := saveMatchesToFile(ctx, config, matches); err != nil {
		logger.Get().Warn(ctx, "failed to save matches to file", logger.Error(err))
	}

	// Final statistics
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(stats)

	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/healthz"

	resp, err := client.Get(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Get().Error(context.Background(), "failed to close response body", logger.Error(err))
		}
	}()

	// Accept any 200 response as healthy (the service returns Prometheus metrics)
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveMatchesToFile saves the generated matches to a JSON file.
func saveMatchesToFile(ctx context.Context, config *Config, matches []Match) error {
	if len(matches) == 0 {
		return fmt.Errorf("no matches to save")
	}

	filename := config.OutputFile
	if filename == "" {
		timestamp := time.Now().Format("20060102_150405")
		filename = "generated_matches_" + timestamp + ".json"
	}

	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(matches, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal matches: %w", err)
	}
	if err := os.WriteFile(filename, data, logFilePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "matches saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats prints the final test statistics.
func displayFinalStats(stats *Stats) {
	var successRate, matchesPerSecond float64

	if stats.MatchesSubmitted > 0 {
		successRate = float64(stats.MatchesSuccessful) / float64(stats.MatchesSubmitted) * PercentageMultiplier
	}

	if stats.Duration > 0 {
		matchesPerSecond = float64(stats.MatchesSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("matchesGenerated", stats.MatchesGenerated),
		logger.Int("matchesSubmitted", stats.MatchesSubmitted),
		logger.Int("matchesSuccessful", stats.MatchesSuccessful),
		logger.Int("matchesDuplicate", stats.MatchesDuplicate),
		logger.Int("matchesFailed", stats.MatchesFailed),
		logger.Int("playersRetrieved", stats.PlayersRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("matchesPerSecond", matchesPerSecond))
}
