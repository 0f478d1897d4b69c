package testmatches

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// submitMatches submits matches concurrently using worker pools
func submitMatches(ctx context.Context, config *Config, matches []Match, stats *Stats) error {
	log.Printf("📤 Submitting %d matches with %d workers...", len(matches), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/matches"

	// Counters for statistics
	var (
		successful int64
		duplicate  int64
		failed     int64
		submitted  int64
	)

	// Progress reporting
	var lastReport time.Time
	reportInterval := 1 * time.Second

	// Create worker pool
	matchChan := make(chan Match, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	// Start workers
	workerCount := minInt(config.Workers, len(matches))
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for match := range matchChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingleMatch(ctx, client, url, match)

					// Update counters
					atomic.AddInt64(&submitted, 1)
					switch result {
					case "success":
						atomic.AddInt64(&successful, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					// Progress reporting
					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						succ := atomic.LoadInt64(&successful)
						dup := atomic.LoadInt64(&duplicate)
						fail := atomic.LoadInt64(&failed)

						log.Printf("📊 Progress: %d/%d submitted (success: %d, duplicate: %d, failed: %d)",
							total, len(matches), succ, dup, fail)
					}
				}
			}
		}()
	}

	// Send matches to workers
	go func() {
		defer close(matchChan)
		for _, match := range matches {
			select {
			case <-ctx.Done():
				return
			case matchChan <- match:
			}
		}
	}()

	// Wait for all workers to complete
	wg.Wait()

	// Update stats
	stats.MatchesSubmitted = int(atomic.LoadInt64(&submitted))
	stats.MatchesSuccessful = int(atomic.LoadInt64(&successful))
	stats.MatchesDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.MatchesFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`✅ Match submission completed:
   Successful: %d
   Duplicate: %d
   Failed: %d
`, stats.MatchesSuccessful, stats.MatchesDuplicate, stats.MatchesFailed)

	return nil
}

// submitSingleMatch submits a single match and returns the result
func submitSingleMatch(ctx context.Context, client *HTTPClient, url string, match Match) string {
	resp, err := client.Post(ctx, url, match)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	// Parse response based on status code
	switch resp.StatusCode {
	case StatusAccepted:
		return "success"
	case StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate"
	default:
		return "failed"
	}
}
