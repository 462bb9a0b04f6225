package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/solwatch/buyops/internal/oracle"
	"github.com/solwatch/buyops/worker"
)

// Call-mode worker: reads one evaluate request on stdin, classifies the
// market regime from fresh candles, and writes one response on stdout.
// The parent owns the deadline and kills the process on overrun.
func main() {
	// Worker logs share the parent's stderr; stdout carries the protocol.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	err := worker.RunTracked(func(ctx context.Context, _ []byte, tracker *worker.Tracker) error {
		return run(ctx, tracker)
	}, worker.TrackedOptions{})
	if err != nil {
		log.Error().Err(err).Msg("eval worker failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, tracker *worker.Tracker) error {
	req, err := worker.ReadRequest(worker.KindEvaluate)
	if err != nil {
		return err
	}

	var eval worker.EvaluateRequest
	if err := req.DecodePayload(&eval); err != nil {
		return worker.ReplyError(req, err)
	}
	if eval.Target.Mint == "" {
		return worker.ReplyError(req, fmt.Errorf("request missing target mint"))
	}

	charts := oracle.NewChartClient()
	if err := tracker.Track(charts); err != nil {
		return err
	}

	candles, err := charts.Candles(ctx, eval.Target.Mint, eval.MarketDataOptions)
	if err != nil {
		return worker.ReplyError(req, fmt.Errorf("market data: %w", err))
	}

	resp := oracle.NewEvaluator().Evaluate(eval, candles)
	return worker.Reply(req, resp)
}
