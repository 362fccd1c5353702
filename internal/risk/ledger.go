package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"polytrader/internal/logger"
)

// LossEntry is one realized loss contributing to the day's total.
type LossEntry struct {
	TokenID   string    `json:"token_id"`
	Size      float64   `json:"size"`
	Loss      float64   `json:"loss"`
	Timestamp time.Time `json:"timestamp"`
}

// Ledger accumulates realized loss for one UTC calendar date. The reset is
// implicit: when the stored date differs from today's, a fresh ledger
// replaces it.
type Ledger struct {
	Date         string      `json:"date"`
	RealizedLoss float64     `json:"realized_loss"`
	Trades       []LossEntry `json:"trades,omitempty"`
}

func ledgerDate(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// LedgerRepo persists the ledger as one whole document.
type LedgerRepo interface {
	LoadLedger(ctx context.Context) (Ledger, error)
	SaveLedger(ctx context.Context, l Ledger) error
}

// Tracker wraps the repo with the date-rollover rule.
type Tracker struct {
	repo  LedgerRepo
	nowFn func() time.Time
}

func NewTracker(repo LedgerRepo) *Tracker {
	return &Tracker{repo: repo, nowFn: time.Now}
}

// SetNowFunc overrides the clock for tests.
func (t *Tracker) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		t.nowFn = fn
	}
}

// Today returns the current day's ledger, rolling over to an empty one when
// the stored date is stale. The rollover is not persisted until the next
// RecordLoss; reads alone never write.
func (t *Tracker) Today(ctx context.Context) (Ledger, error) {
	if t == nil || t.repo == nil {
		return Ledger{}, fmt.Errorf("loss tracker not initialized")
	}
	now := t.nowFn()
	led, err := t.repo.LoadLedger(ctx)
	if err != nil {
		return Ledger{}, err
	}
	if led.Date != ledgerDate(now) {
		return Ledger{Date: ledgerDate(now)}, nil
	}
	return led, nil
}

// TodayLoss returns the accumulated realized loss for today.
func (t *Tracker) TodayLoss(ctx context.Context) (float64, error) {
	led, err := t.Today(ctx)
	if err != nil {
		return 0, err
	}
	return led.RealizedLoss, nil
}

// RecordLoss appends a realized loss to today's ledger and persists it.
// Gains (negative loss) are ignored.
func (t *Tracker) RecordLoss(ctx context.Context, e LossEntry) error {
	if t == nil || t.repo == nil {
		return fmt.Errorf("loss tracker not initialized")
	}
	if e.Loss <= 0 {
		return nil
	}
	led, err := t.Today(ctx)
	if err != nil {
		return err
	}
	total := decimal.NewFromFloat(led.RealizedLoss).Add(decimal.NewFromFloat(e.Loss))
	led.RealizedLoss, _ = total.Float64()
	led.Trades = append(led.Trades, e)
	if err := t.repo.SaveLedger(ctx, led); err != nil {
		return err
	}
	logger.Infof("risk: recorded realized loss token=%s loss=%.2f day_total=%.2f", e.TokenID, e.Loss, led.RealizedLoss)
	return nil
}
