package order

import (
	"fmt"
	"time"
)

// Params is the strategy parameter variant keyed by Kind. Only the fields
// belonging to the order's kind are meaningful; Validate enforces that.
type Params struct {
	// TRAILING_STOP
	TrailPercent    float64 `json:"trail_percent,omitempty"`
	ActivationPrice float64 `json:"activation_price,omitempty"`

	// STOP_LOSS / TAKE_PROFIT
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice float64 `json:"take_profit_price,omitempty"`

	// TWAP
	Duration time.Duration `json:"duration,omitempty"`
	Interval time.Duration `json:"interval,omitempty"`
}

func (p Params) Validate(kind Kind) error {
	switch kind {
	case KindTrailingStop:
		if p.TrailPercent <= 0 || p.TrailPercent >= 100 {
			return fmt.Errorf("trail_percent must be in (0,100), got %.4f", p.TrailPercent)
		}
		if p.ActivationPrice < 0 {
			return fmt.Errorf("activation_price cannot be negative")
		}
	case KindStopLoss, KindTakeProfit:
		if p.StopLossPrice <= 0 && p.TakeProfitPrice <= 0 {
			return fmt.Errorf("at least one of stop_loss_price/take_profit_price is required")
		}
		if p.StopLossPrice < 0 || p.TakeProfitPrice < 0 {
			return fmt.Errorf("threshold prices cannot be negative")
		}
	case KindTWAP:
		if p.Duration <= 0 {
			return fmt.Errorf("duration must be positive")
		}
		if p.Interval <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		if p.Interval > p.Duration {
			return fmt.Errorf("interval %s exceeds duration %s", p.Interval, p.Duration)
		}
	default:
		return fmt.Errorf("unknown strategy kind %q", kind)
	}
	return nil
}
