package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/solwatch/buyops/storage"
	"github.com/solwatch/buyops/types"
)

// Offline analysis of the evaluation log: per-mint decision counts and the
// most recent oracle verdicts. Reads the same database the daemon writes.
func main() {
	godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = "data/buyops.db"
	}

	limit := 200
	if raw := os.Getenv("EVAL_REPORT_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	db, err := storage.New(databaseURL)
	if err != nil {
		fmt.Println("Error opening database:", err)
		return
	}
	defer db.Close()

	evals, err := db.ListRecentEvaluations(limit)
	if err != nil {
		fmt.Println("Error fetching evaluations:", err)
		return
	}

	fmt.Printf("📊 EVALUATION ANALYSIS - Last %d snapshots\n\n", len(evals))

	type mintStats struct {
		mint     string
		buy      int
		watch    int
		skip     int
		trendUps int
		last     string
	}

	order := []string{}
	stats := make(map[string]*mintStats)
	for i := len(evals) - 1; i >= 0; i-- {
		e := evals[i]
		s, ok := stats[e.Mint]
		if !ok {
			s = &mintStats{mint: e.Mint}
			stats[e.Mint] = s
			order = append(order, e.Mint)
		}
		switch e.Decision {
		case types.DecisionBuy:
			s.buy++
		case types.DecisionWatch:
			s.watch++
		default:
			s.skip++
		}
		if e.RegimeStatus == types.RegimeTrendUp {
			s.trendUps++
		}
		s.last = e.Decision
	}

	fmt.Println("═══════════════════════════════════════════════════════════════════════")
	fmt.Println("│ MINT                                         │ BUY │ WATCH │ SKIP │ ↑TREND │ LAST")
	fmt.Println("═══════════════════════════════════════════════════════════════════════")

	totalBuy, totalWatch, totalSkip := 0, 0, 0
	for _, mint := range order {
		s := stats[mint]
		totalBuy += s.buy
		totalWatch += s.watch
		totalSkip += s.skip

		short := s.mint
		if len(short) > 44 {
			short = short[:41] + "..."
		}
		fmt.Printf("│ %-44s │ %3d │ %5d │ %4d │ %6d │ %s\n",
			short, s.buy, s.watch, s.skip, s.trendUps, s.last)
	}

	fmt.Println("═══════════════════════════════════════════════════════════════════════")
	fmt.Printf("\n📈 SUMMARY:\n")
	fmt.Printf("   Mints: %d | Buy: %d | Watch: %d | Skip: %d\n",
		len(order), totalBuy, totalWatch, totalSkip)
	if len(evals) > 0 {
		fmt.Printf("   Date Range: %s to %s\n",
			evals[len(evals)-1].CreatedAt.Format("Jan 2 15:04"),
			evals[0].CreatedAt.Format("Jan 2 15:04"),
		)
	}
}
