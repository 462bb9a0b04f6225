package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/internal/retry"
	"github.com/solwatch/buyops/worker"
)

// Detached worker: outlives the dispatching tick and follows one swap until
// the service reports a terminal state. Spawned fire-and-forget; the parent
// only signals it at shutdown.

// Confirmation usually lands within a few slots; 2s polls for 90s cover
// congested leaders.
func pollSchedule() []time.Duration {
	schedule := make([]time.Duration, 45)
	for i := range schedule {
		schedule[i] = 2 * time.Second
	}
	return schedule
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	payloadFile := flag.String("payload-file", "", "path to the spawn payload")
	flag.Parse()

	if *payloadFile == "" {
		log.Fatal().Msg("missing --payload-file")
	}

	var payload worker.SwapMonitorPayload
	if err := worker.ReadPayloadFile(*payloadFile, &payload); err != nil {
		log.Fatal().Err(err).Msg("failed to read payload")
	}

	err := worker.RunTracked(func(ctx context.Context, _ []byte, tracker *worker.Tracker) error {
		return monitor(ctx, payload, tracker)
	}, worker.TrackedOptions{})
	if err != nil {
		log.Error().Err(err).Str("txid", payload.TxID).Msg("swap monitor failed")
		os.Exit(1)
	}
}

func monitor(ctx context.Context, payload worker.SwapMonitorPayload, tracker *worker.Tracker) error {
	if payload.TxID == "" {
		return fmt.Errorf("payload missing txid")
	}

	// Dry-run dispatches fabricate a txid the swap service has never seen.
	if dry, _ := payload.Monitor["dryRun"].(bool); dry {
		log.Info().Str("txid", payload.TxID).Msg("📝 DRY RUN swap - nothing to monitor")
		return nil
	}

	serviceURL := payload.SwapServiceURL
	if serviceURL == "" {
		serviceURL = os.Getenv("SWAP_SERVICE_URL")
	}

	client := exec.NewClient(serviceURL, false)
	if err := tracker.Track(client); err != nil {
		return err
	}

	log.Info().
		Str("txid", payload.TxID).
		Str("mint", payload.Mint).
		Msg("👁️ Monitoring swap")

	var lastStatus string
	policy := retry.Policy{
		Schedule: pollSchedule(),
		OnGiveUp: func() {
			log.Warn().
				Str("txid", payload.TxID).
				Str("last_status", lastStatus).
				Msg("⚠️ swap still unconfirmed, giving up")
		},
	}

	// Both terminal states stop the poll; "failed" is surfaced afterwards.
	done, err := policy.Do(ctx, func(ctx context.Context, attempt int) (bool, error) {
		status, err := client.MonitorStatus(ctx, payload.TxID)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt).Msg("status poll failed")
			return false, err
		}
		lastStatus = status
		return status == "confirmed" || status == "failed", nil
	})
	if err != nil && !done {
		return err
	}

	switch {
	case done && lastStatus == "confirmed":
		log.Info().Str("txid", payload.TxID).Str("mint", payload.Mint).Msg("✅ Swap confirmed")
	case done:
		return fmt.Errorf("swap %s failed on-chain", payload.TxID)
	}
	return nil
}
