package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solwatch/buyops/types"
	"github.com/solwatch/buyops/worker"
)

// risingCandles builds a steadily climbing series with healthy volume.
func risingCandles(n int) []Candle {
	candles := make([]Candle, n)
	price := 1.0
	for i := range candles {
		price *= 1.01
		candles[i] = Candle{Ts: int64(i), Open: price * 0.99, Close: price, High: price * 1.01, Low: price * 0.98, Volume: 500}
	}
	return candles
}

func fallingCandles(n int) []Candle {
	candles := make([]Candle, n)
	price := 10.0
	for i := range candles {
		price *= 0.99
		candles[i] = Candle{Ts: int64(i), Open: price * 1.01, Close: price, High: price * 1.02, Low: price * 0.98, Volume: 500}
	}
	return candles
}

func TestClassifyRegime(t *testing.T) {
	e := NewEvaluator()

	assert.Equal(t, types.RegimeTrendUp, e.classifyRegime(risingCandles(40)))
	assert.Equal(t, types.RegimeTrendDown, e.classifyRegime(fallingCandles(40)))
	assert.Equal(t, types.RegimeFlat, e.classifyRegime(risingCandles(5)), "short series cannot confirm a regime")
}

func TestEvaluateBuyPath(t *testing.T) {
	e := NewEvaluator()
	req := worker.EvaluateRequest{
		Target:   types.Target{Mint: "So11111111111111111111111111111111111111112", Status: "buy", Score: 80, Confidence: 0.8},
		MinScore: 65,
	}

	resp := e.Evaluate(req, risingCandles(40))

	assert.Equal(t, types.DecisionBuy, resp.Decision)
	assert.Equal(t, types.RegimeTrendUp, resp.Regime.Status)
	assert.True(t, resp.Evaluation.Position.ExpectedNotional.IsPositive())
	assert.Equal(t, "momentum-breakout", resp.ChosenStrategy)
}

func TestEvaluateRespectsStrategyOverride(t *testing.T) {
	e := NewEvaluator()
	req := worker.EvaluateRequest{
		Target:           types.Target{Mint: "m", Status: "buy", Score: 80},
		StrategyOverride: "pinned-strat",
		MinScore:         65,
	}

	resp := e.Evaluate(req, risingCandles(40))

	assert.Empty(t, resp.ChosenStrategy, "an override means the oracle infers nothing")
	assert.Equal(t, "pinned-strat", resp.Evaluation.Strategy)
}

func TestEvaluateScoreBelowFloorNeverBuys(t *testing.T) {
	e := NewEvaluator()
	req := worker.EvaluateRequest{
		Target:   types.Target{Mint: "m", Status: "buy", Score: 40},
		MinScore: 65,
	}

	resp := e.Evaluate(req, risingCandles(40))

	assert.NotEqual(t, types.DecisionBuy, resp.Decision)
	var scoreGate *worker.QualifyGate
	for i := range resp.Evaluation.Qualify {
		if resp.Evaluation.Qualify[i].Name == "score_floor" {
			scoreGate = &resp.Evaluation.Qualify[i]
		}
	}
	if assert.NotNil(t, scoreGate) {
		assert.False(t, scoreGate.Passed)
	}
}

func TestEvaluateEmptySeriesSkips(t *testing.T) {
	e := NewEvaluator()
	req := worker.EvaluateRequest{
		Target:   types.Target{Mint: "m", Status: "buy", Score: 90},
		MinScore: 65,
	}

	resp := e.Evaluate(req, nil)

	assert.NotEqual(t, types.DecisionBuy, resp.Decision)
	assert.Equal(t, types.RegimeFlat, resp.Regime.Status)
	assert.True(t, resp.Evaluation.Position.ExpectedNotional.IsZero())
}
