package testmatches

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// retrievePlayers fetches the rated entry for every player concurrently.
func retrievePlayers(ctx context.Context, config *Config, players []Player, stats *Stats) ([]Entry, error) {
	log.Printf("🏆 Retrieving ratings for %d players with %d workers...", len(players), config.Workers)

	client := newHTTPClient(config.Timeout)

	// Results storage
	entries := make([]Entry, len(players))
	var (
		retrieved int64
		failed    int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool; indices keep results aligned with the pool.
	indexChan := make(chan int, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for index := range indexChan {
				select {
				case <-ctx.Done():
					return
				default:
					playerID := players[index].PlayerID
					entry, err := retrieveSinglePlayer(ctx, client, config.BaseURL, playerID)

					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("⚠️  Failed to get rating for %s: %v", playerID, err)
						}
					} else {
						entries[index] = entry
						atomic.AddInt64(&retrieved, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&retrieved) + atomic.LoadInt64(&failed)
						log.Printf("📊 Rating progress: %d/%d retrieved (success: %d, failed: %d)",
							total, len(players), atomic.LoadInt64(&retrieved), atomic.LoadInt64(&failed))
					}
				}
			}
		}()
	}

	// Send player indices to workers
	go func() {
		defer close(indexChan)
		for i := range players {
			select {
			case <-ctx.Done():
				return
			case indexChan <- i:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Filter out empty entries (failed retrievals)
	validEntries := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.PlayerID != "" {
			validEntries = append(validEntries, entry)
		}
	}

	// Update stats
	stats.PlayersRetrieved = len(validEntries)

	log.Printf(`✅ Rating retrieval completed:
   Retrieved: %d
   Failed: %d
`, len(validEntries), int(atomic.LoadInt64(&failed)))

	return validEntries, nil
}

// retrieveSinglePlayer fetches the rated entry for one player.
func retrieveSinglePlayer(ctx context.Context, client *HTTPClient, baseURL, playerID string) (Entry, error) {
	url := fmt.Sprintf("%s/players/%s", baseURL, playerID)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return Entry{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return Entry{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var entry Entry
	if err := json.Unmarshal(body, &entry); err != nil {
		return Entry{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return entry, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	log.Printf("🥇 Getting top %d leaderboard entries...", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var leaderboard []Entry
	if err := json.Unmarshal(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	log.Printf("✅ Retrieved %d leaderboard entries", len(leaderboard))

	return leaderboard, nil
}
