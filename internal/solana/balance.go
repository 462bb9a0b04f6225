package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BALANCE PROVIDER - Funding wallet lamport balance
// ═══════════════════════════════════════════════════════════════════════════════
//
// Read-only from the loop's perspective: the balance only changes through
// external swap execution and is observed through the next read. A websocket
// account subscription keeps a warm cache; the RPC call is the fallback and
// the source of truth.
//
// ═══════════════════════════════════════════════════════════════════════════════

var lamportsPerSol = decimal.NewFromInt(1_000_000_000)

// Client reads SOL balances over Solana JSON-RPC.
type Client struct {
	rpcURL     string
	httpClient *http.Client

	mu          sync.RWMutex
	cached      map[string]decimal.Decimal
	cachedAt    map[string]time.Time
	cacheMaxAge time.Duration
}

// NewClient creates a balance client against the given RPC endpoint.
func NewClient(rpcURL string) *Client {
	return &Client{
		rpcURL:      rpcURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		cached:      make(map[string]decimal.Decimal),
		cachedAt:    make(map[string]time.Time),
		cacheMaxAge: 5 * time.Second,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type getBalanceResponse struct {
	Result *struct {
		Value uint64 `json:"value"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// GetBalance returns the wallet's SOL balance. A fresh websocket-fed cache
// entry short-circuits the RPC round trip.
func (c *Client) GetBalance(ctx context.Context, pubkey string) (decimal.Decimal, error) {
	c.mu.RLock()
	if cached, ok := c.cached[pubkey]; ok && time.Since(c.cachedAt[pubkey]) < c.cacheMaxAge {
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "getBalance",
		Params:  []any{pubkey},
	})
	if err != nil {
		return decimal.Zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rpc getBalance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("rpc status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed getBalanceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return decimal.Zero, fmt.Errorf("decode getBalance: %w", err)
	}
	if parsed.Error != nil {
		return decimal.Zero, fmt.Errorf("rpc error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if parsed.Result == nil {
		return decimal.Zero, fmt.Errorf("rpc getBalance: empty result")
	}

	sol := decimal.NewFromInt(int64(parsed.Result.Value)).Div(lamportsPerSol)
	c.storeCached(pubkey, sol)
	return sol, nil
}

func (c *Client) storeCached(pubkey string, sol decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached[pubkey] = sol
	c.cachedAt[pubkey] = time.Now()
}

// Close releases idle transport connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
