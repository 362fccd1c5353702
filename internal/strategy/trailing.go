package strategy

import (
	"fmt"
	"time"

	"polytrader/internal/order"
)

type trailingStop struct{}

func (trailingStop) Kind() order.Kind { return order.KindTrailingStop }

// Evaluate tracks the best price seen since activation and triggers on a
// fixed-percentage retracement. BUY orders chase a falling market: they
// activate when price drops to the activation price, track the running
// minimum, and fire once price rebounds trail% above it. SELL is symmetric
// around the running maximum.
func (trailingStop) Evaluate(o *order.AlgoOrder, price float64, now time.Time) Decision {
	state := o.State

	if !state.Activated {
		if o.Params.ActivationPrice <= 0 || activationHit(o.Side, price, o.Params.ActivationPrice) {
			state.Activated = true
			// Tracking starts from the activation tick; no trigger can fire
			// until a later tick moves price away from the extreme.
			state.LowestPrice = price
			state.HighestPrice = price
		}
		return Decision{State: state}
	}

	switch o.Side {
	case order.SideBuy:
		if state.LowestPrice <= 0 || price < state.LowestPrice {
			state.LowestPrice = price
		}
		if price > state.LowestPrice {
			target := reboundTarget(state.LowestPrice, o.Params.TrailPercent)
			if decimalGTE(price, target) {
				return Decision{
					Trigger: true,
					Reason:  fmt.Sprintf("price %.4f rebounded %.2f%% above low %.4f", price, o.Params.TrailPercent, state.LowestPrice),
					State:   state,
				}
			}
		}
	case order.SideSell:
		if price > state.HighestPrice {
			state.HighestPrice = price
		}
		if price < state.HighestPrice {
			target := retraceTarget(state.HighestPrice, o.Params.TrailPercent)
			if decimalLTE(price, target) {
				return Decision{
					Trigger: true,
					Reason:  fmt.Sprintf("price %.4f retraced %.2f%% below high %.4f", price, o.Params.TrailPercent, state.HighestPrice),
					State:   state,
				}
			}
		}
	}
	return Decision{State: state}
}

// activationHit applies the side-aware activation comparison: a BUY arms
// once price falls to or below the activation price, a SELL once price
// rises to or above it.
func activationHit(side order.Side, price, activation float64) bool {
	if side == order.SideBuy {
		return price <= activation
	}
	return price >= activation
}
