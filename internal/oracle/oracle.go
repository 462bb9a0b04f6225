package oracle

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORACLE - Rule-based decision evaluator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Runs inside the evalworker process, one invocation per target per tick.
// Judges a market/position snapshot and returns a recommendation plus a
// qualification verdict. Deliberately simple rules; the interesting part is
// the contract, not the heuristics.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	defaultStrategyTrend = "momentum-breakout"
	defaultStrategyFlat  = "dip-accumulate"

	// baseNotionalSol is the unscaled entry size proposed for a qualifying buy.
	baseNotionalSol = 0.25
)

// Candle is one bar of the price series the oracle judges.
type Candle struct {
	Ts     int64   `json:"ts"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Evaluator applies the qualification rules to one snapshot.
type Evaluator struct {
	shortWindow int
	longWindow  int
	minVolume   float64
}

// NewEvaluator creates an evaluator with the default windows.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		shortWindow: 5,
		longWindow:  20,
		minVolume:   100,
	}
}

// Evaluate judges the snapshot and returns the full oracle response.
func (e *Evaluator) Evaluate(req worker.EvaluateRequest, candles []Candle) worker.EvaluateResponse {
	regime := e.classifyRegime(candles)
	gates := e.qualify(req, candles)

	passed := 0
	var reasons []string
	for _, g := range gates {
		if g.Passed {
			passed++
		} else {
			reasons = append(reasons, g.Name+": "+g.Detail)
		}
	}

	strategy := req.StrategyOverride
	chosen := ""
	if strategy == "" {
		chosen = e.chooseStrategy(regime)
		strategy = chosen
	}

	decision := types.DecisionSkip
	notional := decimal.Zero
	switch {
	case req.Target.Status == "buy" && passed == len(gates) && regime == types.RegimeTrendUp:
		decision = types.DecisionBuy
		notional = e.sizeEntry(req.Target)
		reasons = append(reasons, "all qualify gates passed")
	case passed > 0:
		decision = types.DecisionWatch
	default:
		reasons = append(reasons, "no qualify gate passed")
	}

	return worker.EvaluateResponse{
		Decision: decision,
		Reasons:  reasons,
		Regime:   worker.Regime{Status: regime},
		Evaluation: worker.EvaluationDetail{
			Strategy: strategy,
			Position: worker.EvaluationPosition{ExpectedNotional: notional},
			Qualify:  gates,
		},
		ChosenStrategy: chosen,
	}
}

// classifyRegime compares a short and a long moving average over the closes.
func (e *Evaluator) classifyRegime(candles []Candle) string {
	if len(candles) < e.longWindow {
		return types.RegimeFlat
	}

	short := sma(candles, e.shortWindow)
	long := sma(candles, e.longWindow)
	last := candles[len(candles)-1].Close

	// A regime needs both averages and price agreeing on direction.
	switch {
	case short > long && last >= short:
		return types.RegimeTrendUp
	case short < long && last <= short:
		return types.RegimeTrendDown
	default:
		return types.RegimeFlat
	}
}

// qualify runs the named pass/fail gates against the snapshot.
func (e *Evaluator) qualify(req worker.EvaluateRequest, candles []Candle) []worker.QualifyGate {
	gates := make([]worker.QualifyGate, 0, 3)

	scoreOK := req.Target.Score >= req.MinScore
	gates = append(gates, worker.QualifyGate{
		Name:   "score_floor",
		Passed: scoreOK,
		Detail: fmt.Sprintf("score %.1f vs floor %.1f", req.Target.Score, req.MinScore),
	})

	vol := avgVolume(candles, e.shortWindow)
	gates = append(gates, worker.QualifyGate{
		Name:   "liquidity_floor",
		Passed: vol >= e.minVolume,
		Detail: fmt.Sprintf("avg volume %.0f vs floor %.0f", vol, e.minVolume),
	})

	momentum := false
	if len(candles) >= e.shortWindow {
		momentum = candles[len(candles)-1].Close > sma(candles, e.shortWindow)
	}
	gates = append(gates, worker.QualifyGate{
		Name:   "momentum",
		Passed: momentum,
		Detail: "close above short average",
	})

	return gates
}

// sizeEntry scales the base notional by target confidence.
func (e *Evaluator) sizeEntry(target types.Target) decimal.Decimal {
	conf := target.Confidence
	if conf <= 0 {
		conf = 0.5
	}
	if conf > 1 {
		conf = 1
	}
	return decimal.NewFromFloat(baseNotionalSol).Mul(decimal.NewFromFloat(conf)).Round(4)
}

func (e *Evaluator) chooseStrategy(regime string) string {
	if regime == types.RegimeTrendUp {
		return defaultStrategyTrend
	}
	return defaultStrategyFlat
}

func sma(candles []Candle, window int) float64 {
	if window <= 0 || len(candles) < window {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-window:] {
		sum += c.Close
	}
	return sum / float64(window)
}

func avgVolume(candles []Candle, window int) float64 {
	if window <= 0 {
		return 0
	}
	if len(candles) < window {
		window = len(candles)
	}
	if window == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range candles[len(candles)-window:] {
		sum += c.Volume
	}
	return sum / float64(window)
}
