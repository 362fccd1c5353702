package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"polytrader/internal/logger"
	"polytrader/internal/order"
)

// Settings is the mutable risk configuration, singleton per user.
type Settings struct {
	MaxPositionValuePerToken float64   `json:"max_position_value_per_token"`
	MaxDailyLoss             float64   `json:"max_daily_loss"`
	MaxTotalExposure         float64   `json:"max_total_exposure"`
	Enabled                  bool      `json:"enabled"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// Request is a proposed capital-committing action.
type Request struct {
	TokenID  string
	Side     order.Side
	Size     float64
	Price    float64
	Override bool
}

// Result reports the validation outcome. Warnings are advisory and never
// block the order on their own. Transient marks rejections whose cause
// changes over time (daily loss resets at UTC midnight, exposure moves with
// holdings), so the caller can retry later instead of failing the order.
type Result struct {
	Allowed   bool     `json:"allowed"`
	Transient bool     `json:"transient,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// SettingsSource supplies the current risk settings.
type SettingsSource interface {
	RiskSettings(ctx context.Context) (Settings, error)
}

// LossSource supplies the day's accumulated realized loss.
type LossSource interface {
	TodayLoss(ctx context.Context) (float64, error)
}

// ExposureSource supplies the current total holdings value for the trading
// identity.
type ExposureSource interface {
	TotalHoldingsValue(ctx context.Context) (float64, error)
}

const (
	dailyLossWarnRatio = 0.80
	exposureWarnRatio  = 0.90
)

// Validator is a stateless rule evaluator over proposed orders, current
// exposure and the daily loss ledger. Any individual check whose supporting
// data is unavailable is skipped with a warning: partial risk visibility
// must not silently block all trading.
type Validator struct {
	settings SettingsSource
	losses   LossSource
	exposure ExposureSource
}

func NewValidator(settings SettingsSource, losses LossSource, exposure ExposureSource) *Validator {
	return &Validator{settings: settings, losses: losses, exposure: exposure}
}

func (v *Validator) Validate(ctx context.Context, req Request) Result {
	res := Result{Allowed: true}

	// Selling reduces exposure; risk checks only gate BUYs.
	if req.Side == order.SideSell {
		return res
	}

	settings, err := v.loadSettings(ctx)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("risk settings unavailable, checks skipped: %v", err))
		logger.Warnf("risk: settings unavailable, skipping validation: %v", err)
		return res
	}
	if !settings.Enabled {
		return res
	}
	if req.Override {
		res.Warnings = append(res.Warnings, "risk checks overridden by caller")
		logger.Warnf("risk: override requested token=%s size=%.4f price=%.4f", req.TokenID, req.Size, req.Price)
		return res
	}

	value, _ := decimal.NewFromFloat(req.Size).Mul(decimal.NewFromFloat(req.Price)).Float64()

	// The per-token cap is deterministic for a given order; retrying the
	// same order cannot clear it.
	static := false
	if settings.MaxPositionValuePerToken > 0 && value > settings.MaxPositionValuePerToken {
		res.Allowed = false
		static = true
		res.Errors = append(res.Errors, fmt.Sprintf(
			"order value %.2f exceeds per-token position cap %.2f", value, settings.MaxPositionValuePerToken))
	}

	v.checkDailyLoss(ctx, settings, &res)
	v.checkExposure(ctx, settings, value, &res)

	res.Transient = !res.Allowed && !static
	return res
}

func (v *Validator) loadSettings(ctx context.Context) (Settings, error) {
	if v == nil || v.settings == nil {
		return Settings{}, fmt.Errorf("no settings source")
	}
	return v.settings.RiskSettings(ctx)
}

func (v *Validator) checkDailyLoss(ctx context.Context, settings Settings, res *Result) {
	if settings.MaxDailyLoss <= 0 {
		return
	}
	if v.losses == nil {
		res.Warnings = append(res.Warnings, "daily loss data unavailable, check skipped")
		return
	}
	loss, err := v.losses.TodayLoss(ctx)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("daily loss data unavailable, check skipped: %v", err))
		logger.Warnf("risk: daily loss check skipped: %v", err)
		return
	}
	switch {
	case loss >= settings.MaxDailyLoss:
		res.Allowed = false
		res.Errors = append(res.Errors, fmt.Sprintf(
			"daily loss cap reached: %.2f of %.2f", loss, settings.MaxDailyLoss))
	case loss >= settings.MaxDailyLoss*dailyLossWarnRatio:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"daily loss at %.0f%% of cap (%.2f of %.2f)", loss/settings.MaxDailyLoss*100, loss, settings.MaxDailyLoss))
	}
}

func (v *Validator) checkExposure(ctx context.Context, settings Settings, orderValue float64, res *Result) {
	if settings.MaxTotalExposure <= 0 {
		return
	}
	if v.exposure == nil {
		res.Warnings = append(res.Warnings, "holdings data unavailable, exposure check skipped")
		return
	}
	holdings, err := v.exposure.TotalHoldingsValue(ctx)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("holdings data unavailable, exposure check skipped: %v", err))
		logger.Warnf("risk: exposure check skipped: %v", err)
		return
	}
	projected, _ := decimal.NewFromFloat(holdings).Add(decimal.NewFromFloat(orderValue)).Float64()
	switch {
	case projected > settings.MaxTotalExposure:
		res.Allowed = false
		res.Errors = append(res.Errors, fmt.Sprintf(
			"projected exposure %.2f exceeds cap %.2f", projected, settings.MaxTotalExposure))
	case projected >= settings.MaxTotalExposure*exposureWarnRatio:
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"projected exposure at %.0f%% of cap (%.2f of %.2f)", projected/settings.MaxTotalExposure*100, projected, settings.MaxTotalExposure))
	}
}
