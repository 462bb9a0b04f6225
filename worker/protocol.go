package worker

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// WORKER PROTOCOL - Tagged cross-process envelopes
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every worker kind has an explicit request/response struct. Envelopes are
// validated on receipt, not trusted by shape: an unexpected kind or a
// mismatched correlation ID is a protocol error.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Kind identifies the contract an envelope belongs to.
type Kind string

const (
	KindEvaluate    Kind = "evaluate"
	KindSwapMonitor Kind = "swap_monitor"
)

// Request is the single message a parent sends to a worker.
type Request struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Response is the single message a worker sends back.
type Response struct {
	Kind    Kind            `json:"kind"`
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest builds an envelope around a typed payload.
func NewRequest(kind Kind, id string, payload any) (Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Request{Kind: kind, ID: id, Payload: raw}, nil
}

// DecodePayload unmarshals the request payload into out.
func (r *Request) DecodePayload(out any) error {
	if len(r.Payload) == 0 {
		return fmt.Errorf("request missing payload")
	}
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", r.Kind, err)
	}
	return nil
}

// Validate checks a response against the request it answers.
func (r *Response) Validate(kind Kind, id string) error {
	if r.Kind != kind {
		return fmt.Errorf("worker response kind %q, want %q", r.Kind, kind)
	}
	if r.ID != id {
		return fmt.Errorf("worker response id %q, want %q", r.ID, id)
	}
	if !r.OK {
		if r.Error == "" {
			return fmt.Errorf("worker reported failure without detail")
		}
		return fmt.Errorf("worker: %s", r.Error)
	}
	if len(r.Payload) == 0 {
		return fmt.Errorf("worker response missing payload")
	}
	return nil
}

// Decode validates the response and unmarshals its payload into out.
func (r *Response) Decode(kind Kind, id string, out any) error {
	if err := r.Validate(kind, id); err != nil {
		return err
	}
	if err := json.Unmarshal(r.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// evaluate: decision-oracle contract
// ─────────────────────────────────────────────────────────────────────────────

// MarketDataOptions controls what the oracle fetches for its snapshot.
type MarketDataOptions struct {
	CandleLimit int    `json:"candleLimit,omitempty"`
	Interval    string `json:"interval,omitempty"`
	WithVolume  bool   `json:"withVolume,omitempty"`
}

// EvaluateRequest is the oracle worker input.
type EvaluateRequest struct {
	Position          types.Position    `json:"position"`
	Target            types.Target      `json:"target"`
	StrategyOverride  string            `json:"strategyOverride,omitempty"`
	MinScore          float64           `json:"minScore"`
	EventIntervals    []string          `json:"eventIntervals,omitempty"`
	MarketDataOptions MarketDataOptions `json:"marketDataOptions"`
	EvalTimeoutMs     int64             `json:"evalTimeoutMs"`
}

// Regime is the oracle's short-term trend classification.
type Regime struct {
	Status string `json:"status"`
}

// QualifyGate is one named pass/fail rule the oracle evaluated.
type QualifyGate struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// EvaluationDetail is the opaque-but-typed oracle snapshot.
type EvaluationDetail struct {
	Strategy string             `json:"strategy,omitempty"`
	Position EvaluationPosition `json:"position"`
	Qualify  []QualifyGate      `json:"qualify,omitempty"`
}

// EvaluationPosition carries the sized entry the oracle proposes.
type EvaluationPosition struct {
	ExpectedNotional decimal.Decimal `json:"expectedNotional"`
}

// EvaluateResponse is the oracle worker output.
type EvaluateResponse struct {
	Decision       string           `json:"decision"`
	Reasons        []string         `json:"reasons,omitempty"`
	Regime         Regime           `json:"regime"`
	Evaluation     EvaluationDetail `json:"evaluation"`
	ChosenStrategy string           `json:"chosenStrategy,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// swap_monitor: detached confirmation-watcher contract
// ─────────────────────────────────────────────────────────────────────────────

// SwapMonitorPayload is written to the payload file for the detached
// swap-monitor worker.
type SwapMonitorPayload struct {
	TxID           string         `json:"txid"`
	Mint           string         `json:"mint"`
	WalletAlias    string         `json:"walletAlias"`
	SwapServiceURL string         `json:"swapServiceUrl,omitempty"`
	Monitor        map[string]any `json:"monitor,omitempty"`
}
