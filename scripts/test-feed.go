package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/calloway/gridfax/internal/feed/espn"
	"github.com/calloway/gridfax/internal/stats"
)

// Simple test utility to verify the ESPN feed works end to end
func main() {
	var (
		season     = flag.Int("season", 2025, "Season year")
		week       = flag.Int("week", 1, "Week to probe")
		seasonType = flag.Int("season-type", 2, "Season type (1/2/3)")
		browser    = flag.Bool("browser", false, "Enable headless browser fallback")
	)
	flag.Parse()

	log.Println("Testing ESPN Feed")
	log.Println("=================")

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	client := espn.NewClient()
	if *browser {
		b := espn.NewBrowser()
		defer b.Close()
		client.SetBrowser(b)
		log.Println("Headless browser fallback enabled")
	}

	// Discover the week's games
	log.Printf("\n1. Fetching game ids for season %d week %d...", *season, *week)
	gameIDs, err := client.GameIDs(ctx, *season, *week, *seasonType)
	if err != nil {
		log.Fatalf("Failed to fetch game ids: %v", err)
	}
	log.Printf("✓ Found %d games: %v", len(gameIDs), gameIDs)

	if len(gameIDs) == 0 {
		log.Println("No games scheduled for this week, nothing more to probe")
		return
	}

	// Pull the first game's box score
	log.Printf("\n2. Fetching box score for game %s...", gameIDs[0])
	records, err := client.GameRecords(ctx, gameIDs[0])
	if err != nil {
		log.Fatalf("Failed to fetch game records: %v", err)
	}

	for _, c := range stats.Categories() {
		log.Printf("✓ %s: %d stat lines", c, len(records[c]))
	}

	// Show a sample line so column mapping problems are easy to spot
	for _, c := range stats.Categories() {
		if len(records[c]) == 0 {
			continue
		}
		rec := records[c][0]
		name := "?"
		if rec.Identity.PlayerName != nil {
			name = *rec.Identity.PlayerName
		}
		log.Printf("\nSample %s line (%s):", c, name)
		for col, v := range rec.Values {
			if v != nil {
				log.Printf("  %-20s %d", col, *v)
			} else {
				log.Printf("  %-20s null", col)
			}
		}
		if rec.Fraction != nil {
			log.Printf("  %-20s %s", "completions/attempts", *rec.Fraction)
		}
		break
	}

	log.Println("\n✓ Feed test complete")
}
