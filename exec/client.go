package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SWAP EXECUTION CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Dispatches buy swaps to the external swap service and exposes the monitor
// payload the confirmation watcher needs. Transaction construction and
// signing live entirely on the service side.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Client talks to the swap service.
type Client struct {
	baseURL    string
	dryRun     bool
	httpClient *http.Client
}

// NewClient creates a new execution client.
func NewClient(baseURL string, dryRun bool) *Client {
	mode := "DRY RUN"
	if !dryRun {
		mode = "LIVE"
	}
	log.Info().
		Str("mode", mode).
		Str("swap_service", baseURL).
		Msg("🚀 Execution client initialized")

	return &Client{
		baseURL:    baseURL,
		dryRun:     dryRun,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BuyRequest is one capital-committing swap order.
type BuyRequest struct {
	WalletAlias string          `json:"walletAlias"`
	Mint        string          `json:"mint"`
	TradeUUID   string          `json:"tradeUuid"`
	AmountSol   decimal.Decimal `json:"amountSol"`
	Strategy    string          `json:"strategy"`
}

// Dispatch submits the swap and returns its receipt. In dry-run mode a
// synthetic txid is fabricated and nothing leaves the process.
func (c *Client) Dispatch(ctx context.Context, req BuyRequest) (types.TradeDispatch, error) {
	if c.dryRun {
		txid := "DRY_" + uuid.NewString()
		log.Info().
			Str("txid", txid).
			Str("mint", req.Mint).
			Str("amount_sol", req.AmountSol.StringFixed(4)).
			Str("strategy", req.Strategy).
			Msg("📝 DRY RUN: swap would be dispatched")
		return types.TradeDispatch{
			TxID: txid,
			MonitorPayload: map[string]any{
				"txid":      txid,
				"mint":      req.Mint,
				"tradeUuid": req.TradeUUID,
				"dryRun":    true,
			},
		}, nil
	}

	if c.baseURL == "" {
		return types.TradeDispatch{}, fmt.Errorf("SWAP_SERVICE_URL not configured")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return types.TradeDispatch{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap/buy", bytes.NewReader(body))
	if err != nil {
		return types.TradeDispatch{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return types.TradeDispatch{}, fmt.Errorf("swap dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.TradeDispatch{}, fmt.Errorf("swap service status %d: %s", resp.StatusCode, string(raw))
	}

	var result struct {
		TxID    string         `json:"txid"`
		Monitor map[string]any `json:"monitor"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.TradeDispatch{}, fmt.Errorf("decode dispatch response: %w", err)
	}
	if result.TxID == "" {
		return types.TradeDispatch{}, fmt.Errorf("swap service returned no txid")
	}

	log.Info().
		Str("txid", result.TxID).
		Str("mint", req.Mint).
		Str("amount_sol", req.AmountSol.StringFixed(4)).
		Msg("✅ Swap dispatched")

	return types.TradeDispatch{TxID: result.TxID, MonitorPayload: result.Monitor}, nil
}

// MonitorStatus polls the swap service for a transaction's confirmation state.
// Used by the detached swap-monitor worker, not by the tick loop.
func (c *Client) MonitorStatus(ctx context.Context, txid string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("SWAP_SERVICE_URL not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap/status/"+txid, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("swap status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("swap service status %d", resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"` // "pending", "confirmed", "failed"
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode status: %w", err)
	}
	return result.Status, nil
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
