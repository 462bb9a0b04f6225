package solana

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// AccountWatcher keeps the balance cache warm via an accountSubscribe
// websocket subscription. Optional; the loop works without it, just with a
// cold RPC read per tick.
type AccountWatcher struct {
	wsURL  string
	client *Client

	mu          sync.Mutex
	conn        *websocket.Conn
	isConnected bool
	pubkeys     map[string]bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAccountWatcher wires a watcher to the balance client's cache.
func NewAccountWatcher(wsURL string, client *Client) *AccountWatcher {
	return &AccountWatcher{
		wsURL:   wsURL,
		client:  client,
		pubkeys: make(map[string]bool),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

type wsSubscribeMsg struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type wsAccountNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Lamports uint64 `json:"lamports"`
			} `json:"value"`
		} `json:"result"`
		Subscription int `json:"subscription"`
	} `json:"params"`
}

// Watch subscribes to a wallet's account changes.
func (w *AccountWatcher) Watch(pubkey string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pubkeys[pubkey] = true
	if w.isConnected {
		_ = w.subscribeLocked(pubkey)
	}
}

// Start connects and runs the read loop with reconnect.
func (w *AccountWatcher) Start() error {
	if err := w.connect(); err != nil {
		return err
	}
	go w.readLoop()
	return nil
}

func (w *AccountWatcher) connect() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.Dial(w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.wsURL, err)
	}
	w.conn = conn
	w.isConnected = true

	for pubkey := range w.pubkeys {
		if err := w.subscribeLocked(pubkey); err != nil {
			log.Warn().Err(err).Str("pubkey", pubkey).Msg("account subscribe failed")
		}
	}

	log.Info().Str("url", w.wsURL).Msg("🔌 Account subscription connected")
	return nil
}

func (w *AccountWatcher) subscribeLocked(pubkey string) error {
	return w.conn.WriteJSON(wsSubscribeMsg{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "accountSubscribe",
		Params: []any{
			pubkey,
			map[string]string{"encoding": "base64", "commitment": "confirmed"},
		},
	})
}

func (w *AccountWatcher) readLoop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		w.mu.Lock()
		conn := w.conn
		w.mu.Unlock()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.stopCh:
				return
			default:
			}
			log.Warn().Err(err).Msg("account subscription dropped - reconnecting")
			w.mu.Lock()
			w.isConnected = false
			w.mu.Unlock()
			time.Sleep(2 * time.Second)
			if err := w.connect(); err != nil {
				log.Warn().Err(err).Msg("reconnect failed")
			}
			continue
		}

		var note wsAccountNotification
		if err := json.Unmarshal(raw, &note); err != nil || note.Method != "accountNotification" {
			continue
		}

		// One watched pubkey per wallet in practice; map the notification to
		// every watched key sharing the subscription's connection.
		sol := decimal.NewFromInt(int64(note.Params.Result.Value.Lamports)).Div(lamportsPerSol)
		w.mu.Lock()
		for pubkey := range w.pubkeys {
			w.client.storeCached(pubkey, sol)
		}
		w.mu.Unlock()

		log.Debug().Str("balance_sol", sol.StringFixed(4)).Msg("balance cache refreshed")
	}
}

// Stop closes the subscription and waits for the read loop to exit.
func (w *AccountWatcher) Stop() {
	close(w.stopCh)
	w.mu.Lock()
	if w.conn != nil {
		_ = w.conn.Close()
	}
	w.isConnected = false
	w.mu.Unlock()
	<-w.doneCh
}
