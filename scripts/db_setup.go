package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/solwatch/buyops/storage"
	"github.com/solwatch/buyops/types"
)

// Operator script: opens the configured database, runs migrations, seeds a
// couple of watchlist rows when the table is empty, and prints what's there.
func main() {
	godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = "data/buyops.db"
	}

	fmt.Println("🔌 Connecting to database...")
	db, err := storage.New(databaseURL)
	if err != nil {
		fmt.Printf("❌ Connection error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()
	fmt.Println("✅ Database connected, schema migrated!")

	targets, err := db.ListTargetsByPriority([]string{"buy", "watch", "ignored"}, 0)
	if err != nil {
		fmt.Printf("❌ Query error: %v\n", err)
		os.Exit(1)
	}

	if len(targets) == 0 && os.Getenv("SEED_SAMPLE_TARGETS") == "true" {
		fmt.Println("\n🌱 Seeding sample targets...")
		samples := []types.Target{
			{Mint: "So11111111111111111111111111111111111111112", Symbol: "wSOL", Name: "Wrapped SOL", Status: "watch", Score: 70, Confidence: 0.5},
			{Mint: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Name: "USD Coin", Status: "ignored", Score: 10, Confidence: 0.1},
		}
		for _, t := range samples {
			if _, err := db.AddUpdateTarget(t); err != nil {
				fmt.Printf("  ⚠️ Failed to seed %s: %v\n", t.Symbol, err)
			} else {
				fmt.Printf("  ✅ Seeded %s\n", t.Symbol)
			}
		}
		targets, _ = db.ListTargetsByPriority([]string{"buy", "watch", "ignored"}, 0)
	}

	fmt.Printf("\n📋 Targets (%d):\n", len(targets))
	for _, t := range targets {
		fmt.Printf("  - %-8s %-7s score=%.1f confidence=%.2f %s\n",
			t.Symbol, t.Status, t.Score, t.Confidence, t.Mint)
	}
	if len(targets) == 0 {
		fmt.Println("  (no targets; set SEED_SAMPLE_TARGETS=true to seed)")
	}

	alias := os.Getenv("WALLET_ALIAS")
	if alias == "" {
		alias = "default"
	}
	positions, err := db.LoadOpenPositions(alias)
	if err != nil {
		fmt.Printf("❌ Position query error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n💼 Open positions for %q: %d\n", alias, len(positions))
	for _, p := range positions {
		fmt.Printf("  - %s tokens=%s strategy=%s\n", p.Mint, p.CurrentTokenAmount, p.StrategyName)
	}

	fmt.Println("\n✅ DATABASE READY!")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("Tables migrated:")
	fmt.Println("  • targets     - Scanner watchlist")
	fmt.Println("  • positions   - Open/closed holdings")
	fmt.Println("  • evaluations - Append-only oracle log")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}
