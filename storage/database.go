package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/solwatch/buyops/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Target / position / evaluation persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// Targets are owned by the external scanner and positions by the external
// swap pipeline; BuyOps reads both and performs two narrow writebacks
// (target strategy label, position strategy name).
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Models

// Target is a watchlist row written by the scanner.
type Target struct {
	Mint             string `gorm:"primaryKey"`
	Symbol           string
	Name             string
	Status           string `gorm:"index"`
	Score            float64
	Confidence       float64
	StrategyOverride string
	LastCheckedAt    time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Position is an open holding written by the swap confirmation pipeline.
type Position struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement"`
	WalletID           string `gorm:"index"`
	WalletAlias        string `gorm:"index"`
	Mint               string `gorm:"index"`
	TradeUUID          string `gorm:"uniqueIndex"`
	CurrentTokenAmount decimal.Decimal `gorm:"type:decimal(30,9)"`
	StrategyName       string
	StrategyID         string
	Status             string `gorm:"index"` // "open", "closed"
	TxID               string
	OpenedAt           time.Time
	ClosedAt           *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Evaluation is one persisted oracle snapshot; append-only.
type Evaluation struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Mint         string `gorm:"index"`
	WalletAlias  string
	Decision     string `gorm:"index"`
	RegimeStatus string
	Strategy     string
	Reasons      string // JSON array
	Snapshot     string // JSON oracle detail
	CreatedAt    time.Time
}

// New opens the store: a postgres:// DSN or a sqlite file path.
func New(databaseURL string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		db, err = gorm.Open(postgres.Open(databaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(databaseURL)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(databaseURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", databaseURL).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Target{}, &Position{}, &Evaluation{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Target operations

// ListTargetsByPriority returns eligible targets, best first.
func (d *Database) ListTargetsByPriority(statuses []string, minScore float64) ([]types.Target, error) {
	var rows []Target
	err := d.db.
		Where("status IN ?", statuses).
		Where("score >= ?", minScore).
		Order("score DESC, confidence DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]types.Target, len(rows))
	for i, r := range rows {
		out[i] = targetFromRow(r)
	}
	return out, nil
}

// AddUpdateTarget upserts a target by mint and returns the stored row.
func (d *Database) AddUpdateTarget(t types.Target) (types.Target, error) {
	row := Target{
		Mint:             t.Mint,
		Symbol:           t.Symbol,
		Name:             t.Name,
		Status:           t.Status,
		Score:            t.Score,
		Confidence:       t.Confidence,
		StrategyOverride: t.StrategyOverride,
		LastCheckedAt:    t.LastCheckedAt,
	}

	err := d.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mint"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol", "name", "status", "score", "confidence", "strategy_override", "last_checked_at", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return types.Target{}, err
	}

	var stored Target
	if err := d.db.First(&stored, "mint = ?", t.Mint).Error; err != nil {
		return types.Target{}, err
	}
	return targetFromRow(stored), nil
}

// Position operations

// LoadOpenPositions returns the wallet's open holdings.
func (d *Database) LoadOpenPositions(walletAlias string) ([]types.Position, error) {
	var rows []Position
	err := d.db.
		Where("wallet_alias = ? AND status = ?", walletAlias, "open").
		Order("opened_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]types.Position, len(rows))
	for i, r := range rows {
		out[i] = positionFromRow(r)
	}
	return out, nil
}

// UpdatePositionStrategyName attaches a strategy label to an existing row.
func (d *Database) UpdatePositionStrategyName(positionID uint, strategyName string) error {
	return d.db.Model(&Position{}).
		Where("id = ?", positionID).
		Update("strategy_name", strategyName).Error
}

// OpenPosition writes a new open holding. In production this is done by the
// swap confirmation pipeline on its own schedule.
func (d *Database) OpenPosition(p types.Position, txID string) error {
	row := Position{
		WalletID:           p.WalletID,
		WalletAlias:        p.WalletAlias,
		Mint:               p.Mint,
		TradeUUID:          p.TradeUUID,
		CurrentTokenAmount: p.CurrentTokenAmount,
		StrategyName:       p.StrategyName,
		StrategyID:         p.StrategyID,
		Status:             "open",
		TxID:               txID,
		OpenedAt:           time.Now(),
	}
	return d.db.Create(&row).Error
}

// Evaluation sink

// RecordEvaluation persists one oracle snapshot. Fire-and-forget at call
// sites; failures are the caller's to log.
func (d *Database) RecordEvaluation(mint, walletAlias string, result types.EvaluationResult) error {
	reasons, _ := json.Marshal(result.Reasons)
	snapshot, _ := json.Marshal(result.Evaluation)

	row := Evaluation{
		Mint:         mint,
		WalletAlias:  walletAlias,
		Decision:     result.Decision,
		RegimeStatus: result.RegimeStatus,
		Strategy:     result.ChosenStrategy,
		Reasons:      string(reasons),
		Snapshot:     string(snapshot),
	}
	return d.db.Create(&row).Error
}

// ListRecentEvaluations returns the newest oracle snapshots, newest first.
func (d *Database) ListRecentEvaluations(limit int) ([]Evaluation, error) {
	var rows []Evaluation
	err := d.db.Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func targetFromRow(r Target) types.Target {
	return types.Target{
		Mint:             r.Mint,
		Symbol:           r.Symbol,
		Name:             r.Name,
		Status:           r.Status,
		Score:            r.Score,
		Confidence:       r.Confidence,
		StrategyOverride: r.StrategyOverride,
		LastCheckedAt:    r.LastCheckedAt,
	}
}

func positionFromRow(r Position) types.Position {
	return types.Position{
		ID:                 r.ID,
		WalletID:           r.WalletID,
		WalletAlias:        r.WalletAlias,
		Mint:               r.Mint,
		TradeUUID:          r.TradeUUID,
		CurrentTokenAmount: r.CurrentTokenAmount,
		StrategyName:       r.StrategyName,
		StrategyID:         r.StrategyID,
		OpenedAt:           r.OpenedAt,
	}
}
