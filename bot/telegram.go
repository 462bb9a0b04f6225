package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/solwatch/buyops/exec"
	"github.com/solwatch/buyops/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM BOT - Operator notifications & control
// ═══════════════════════════════════════════════════════════════════════════════
//
// Features:
//   💓 Heartbeat-backed /status
//   🎯 Buy dispatch alerts
//   💼 Open position listing
//   🎛️ Control commands (/status, /positions, /balance, /ping)
//
// ═══════════════════════════════════════════════════════════════════════════════

// StatusProvider supplies live account data for commands.
type StatusProvider interface {
	GetBalance(ctx context.Context, pubkey string) (decimal.Decimal, error)
	LoadOpenPositions(walletAlias string) ([]types.Position, error)
}

// TelegramBot manages the Telegram interface.
type TelegramBot struct {
	mu      sync.RWMutex
	api     *tgbotapi.BotAPI
	chatID  int64
	running bool
	stopCh  chan struct{}

	wallet   types.Wallet
	dryRun   bool
	provider StatusProvider

	// Latest heartbeat, served by /status.
	lastHeartbeat types.Heartbeat
}

// NewTelegramBot creates a bot bound to one authorized chat.
func NewTelegramBot(token, chatIDStr string, wallet types.Wallet, dryRun bool, provider StatusProvider) (*TelegramBot, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	if chatIDStr == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID not set")
	}

	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	bot := &TelegramBot{
		api:      api,
		chatID:   chatID,
		stopCh:   make(chan struct{}),
		wallet:   wallet,
		dryRun:   dryRun,
		provider: provider,
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot initialized")

	return bot, nil
}

// Start begins listening for commands
func (b *TelegramBot) Start() {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.commandLoop()
	log.Info().Msg("📱 Telegram bot started")
}

// Stop stops the bot
func (b *TelegramBot) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}

	b.running = false
	close(b.stopCh)
	log.Info().Msg("Telegram bot stopped")
}

// ═══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// Notify implements the heartbeat sink. Routine ticks only refresh /status;
// lifecycle events are pushed to the chat.
func (b *TelegramBot) Notify(hb types.Heartbeat) {
	b.mu.Lock()
	b.lastHeartbeat = hb
	b.mu.Unlock()

	if hb.Status == types.HeartbeatStarting {
		go b.notifyStartup()
	}
}

// NotifyBuy sends a dispatch alert.
func (b *TelegramBot) NotifyBuy(req exec.BuyRequest, txID string) {
	msg := fmt.Sprintf(`🎯 *BUY DISPATCHED*

📊 *%s*
━━━━━━━━━━━━━━━━
💵 Amount: *%s SOL*
🧭 Strategy: *%s*
🧾 Tx: `+"`%s`",
		req.Mint,
		req.AmountSol.StringFixed(4),
		req.Strategy,
		txID,
	)

	b.sendMarkdown(msg)
}

// NotifyError sends an error alert
func (b *TelegramBot) NotifyError(err error) {
	msg := fmt.Sprintf("⚠️ *ERROR*\n\n`%s`", err.Error())
	b.sendMarkdown(msg)
}

func (b *TelegramBot) notifyStartup() {
	mode := "LIVE"
	if b.dryRun {
		mode = "PAPER"
	}

	balanceStr := "N/A"
	if b.provider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if bal, err := b.provider.GetBalance(ctx, b.wallet.Pubkey); err == nil {
			balanceStr = bal.StringFixed(4) + " SOL"
		}
	}

	msg := fmt.Sprintf(`🚀 *BUYOPS STARTED*
━━━━━━━━━━━━━━━━━━━━

👛 Wallet: *%s*
📊 Mode: *%s*
💰 Balance: *%s*

━━━━━━━━━━━━━━━━━━━━
Use /help for commands`, b.wallet.Alias, mode, balanceStr)

	b.sendMarkdown(msg)
}

// ═══════════════════════════════════════════════════════════════════════════════
// COMMAND HANDLING
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) commandLoop() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-b.stopCh:
			return
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}

			// Only respond to authorized chat
			if update.Message.Chat.ID != b.chatID {
				continue
			}

			b.handleCommand(update.Message)
		}
	}
}

func (b *TelegramBot) handleCommand(msg *tgbotapi.Message) {
	cmd := strings.ToLower(msg.Command())

	switch cmd {
	case "start", "help":
		b.cmdHelp()
	case "status":
		b.cmdStatus()
	case "balance":
		b.cmdBalance()
	case "positions":
		b.cmdPositions()
	case "ping":
		b.send("🏓 Pong!")
	default:
		b.send("❓ Unknown command. Use /help")
	}
}

func (b *TelegramBot) cmdHelp() {
	msg := `🤖 *BUYOPS COMMANDS*
━━━━━━━━━━━━━━━━━━━━

📊 /status — Last evaluation tick
💰 /balance — Wallet SOL balance
💼 /positions — Open positions
🏓 /ping — Test connection

━━━━━━━━━━━━━━━━━━━━
BuyOps — autonomous buy engine`

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdStatus() {
	b.mu.RLock()
	hb := b.lastHeartbeat
	b.mu.RUnlock()

	mode := "LIVE"
	if b.dryRun {
		mode = "PAPER"
	}

	if hb.Status == "" {
		b.send("📭 No heartbeat yet")
		return
	}

	msg := fmt.Sprintf(`📊 *BOT STATUS*
━━━━━━━━━━━━━━━━━━━━

🟢 %s
📊 Mode: *%s*
👛 Wallet: *%s*
🎯 Targets: *%d* | Evaluated: *%d*
✅ Buy: *%d* | 👀 Watch: *%d* | ⏭️ Skip: *%d*
⚠️ Errors: *%d*
🕐 %s`,
		strings.ToUpper(hb.Status), mode, hb.WalletAlias,
		hb.Targets, hb.Evaluated,
		hb.Decisions.Buy, hb.Decisions.Watch, hb.Decisions.Skip,
		hb.Errors,
		hb.TS.Format("Jan 2 15:04:05"),
	)

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdBalance() {
	if b.provider == nil {
		b.send("❌ Balance not available")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	balance, err := b.provider.GetBalance(ctx, b.wallet.Pubkey)
	if err != nil {
		b.send("❌ Failed to fetch balance")
		return
	}

	msg := fmt.Sprintf(`💰 *WALLET BALANCE*
━━━━━━━━━━━━━━━━━━━━

💵 Available: *%s SOL*

Use /positions to see open trades`,
		balance.StringFixed(4),
	)

	b.sendMarkdown(msg)
}

func (b *TelegramBot) cmdPositions() {
	if b.provider == nil {
		b.send("❌ Positions not available")
		return
	}

	positions, err := b.provider.LoadOpenPositions(b.wallet.Alias)
	if err != nil {
		b.send("❌ Failed to fetch positions")
		return
	}

	if len(positions) == 0 {
		b.send("📭 No open positions")
		return
	}

	msg := "💼 *OPEN POSITIONS*\n━━━━━━━━━━━━━━━━━━━━\n\n"

	for i, pos := range positions {
		duration := time.Since(pos.OpenedAt).Round(time.Second)

		msg += fmt.Sprintf(`🟢 *%s*
📦 Tokens: %s | Strategy: %s
⏱️ Held: %v

`,
			pos.Mint,
			pos.CurrentTokenAmount.StringFixed(2),
			pos.StrategyName,
			duration,
		)

		if i >= 4 {
			msg += fmt.Sprintf("_... and %d more_", len(positions)-5)
			break
		}
	}

	b.sendMarkdown(msg)
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func (b *TelegramBot) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}

func (b *TelegramBot) sendMarkdown(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := b.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("Failed to send Telegram message")
	}
}
