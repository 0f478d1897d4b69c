package testmatches

import (
	"fmt"
	"log"
	"sort"
)

// verifyResults checks ratings and leaderboard for internal consistency
// and for agreement with the hidden strengths of the player pool.
func verifyResults(config *Config, players []Player, entries, leaderboard []Entry) error {
	log.Println("🔍 Verifying results...")

	if len(entries) == 0 {
		return fmt.Errorf("no rated players to verify")
	}

	// Sort retrieved entries by rating (descending)
	sortedEntries := make([]Entry, len(entries))
	copy(sortedEntries, entries)
	sort.Slice(sortedEntries, func(i, j int) bool {
		return sortedEntries[i].Rating > sortedEntries[j].Rating
	})

	if len(leaderboard) > 0 {
		if err := verifyLeaderboardConsistency(sortedEntries, leaderboard); err != nil {
			log.Printf("⚠️  Leaderboard consistency warning: %v", err)
		} else {
			log.Println("✅ Leaderboard consistency verified")
		}
	}

	reportStrengthAgreement(players, sortedEntries)
	displayTopPlayers(sortedEntries, leaderboard, config.Verbose)

	log.Println("✅ Result verification completed")
	return nil
}

// verifyLeaderboardConsistency checks the leaderboard ordering against
// the per-player reads.
func verifyLeaderboardConsistency(sortedEntries, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	top := leaderboard[0]
	best := sortedEntries[0]
	if top.PlayerID != best.PlayerID {
		return fmt.Errorf("top leaderboard entry (%s) does not match top rated player (%s)",
			top.PlayerID, best.PlayerID)
	}

	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Rating > leaderboard[i-1].Rating {
			return fmt.Errorf("leaderboard not properly sorted: entry %d outrates entry %d", i, i-1)
		}
		if leaderboard[i].Rank != leaderboard[i-1].Rank+1 {
			return fmt.Errorf("leaderboard ranks not contiguous at entry %d", i)
		}
	}

	return nil
}

// reportStrengthAgreement compares the top rated quartile against the
// hidden strengths. With enough matches the overlap should be high.
func reportStrengthAgreement(players []Player, sortedEntries []Entry) {
	quartile := len(players) / 4
	if quartile == 0 || len(sortedEntries) < quartile {
		return
	}

	byStrength := make([]Player, len(players))
	copy(byStrength, players)
	sort.Slice(byStrength, func(i, j int) bool {
		return byStrength[i].Strength > byStrength[j].Strength
	})

	strongest := make(map[string]bool, quartile)
	for _, p := range byStrength[:quartile] {
		strongest[p.PlayerID] = true
	}

	overlap := 0
	for _, entry := range sortedEntries[:quartile] {
		if strongest[entry.PlayerID] {
			overlap++
		}
	}

	agreement := float64(overlap) / float64(quartile) * PercentageMultiplier
	log.Printf("📈 Top-quartile strength agreement: %.1f%% (%d/%d)", agreement, overlap, quartile)
}

// displayTopPlayers shows the top players from ratings and leaderboard.
func displayTopPlayers(sortedEntries, leaderboard []Entry, verbose bool) {
	topN := minInt(10, len(sortedEntries))

	log.Printf("🏆 Top %d players by rating:", topN)
	for i := 0; i < topN; i++ {
		entry := sortedEntries[i]
		log.Printf("   %d. %s - Rating: %.1f (RD %.1f)", i+1, entry.PlayerID, entry.Rating, entry.Deviation)
	}

	if len(leaderboard) > 0 {
		boardTopN := minInt(topN, len(leaderboard))
		log.Printf("🥇 Top %d leaderboard entries:", boardTopN)
		for i := 0; i < boardTopN; i++ {
			entry := leaderboard[i]
			log.Printf("   %d. %s - Rating: %.1f", entry.Rank, entry.PlayerID, entry.Rating)
		}
	}

	if verbose && len(sortedEntries) > 0 {
		sum := 0.0
		for _, entry := range sortedEntries {
			sum += entry.Rating
		}
		log.Printf(`📊 Rating statistics:
   Average: %.1f
   Maximum: %.1f
   Minimum: %.1f
`, sum/float64(len(sortedEntries)), sortedEntries[0].Rating, sortedEntries[len(sortedEntries)-1].Rating)
	}
}
