package strategy

import (
	"fmt"
	"time"

	"polytrader/internal/order"
)

type stopLossTakeProfit struct {
	kind order.Kind
}

func (s stopLossTakeProfit) Kind() order.Kind { return s.kind }

// Evaluate is stateless per tick. For BUY orders the stop-loss fires when
// price falls to or below the stop, the take-profit when price rises to or
// above the target; SELL inverts both comparisons. When both thresholds are
// configured the stop-loss is checked first and wins.
func (stopLossTakeProfit) Evaluate(o *order.AlgoOrder, price float64, now time.Time) Decision {
	p := o.Params
	state := o.State

	if p.StopLossPrice > 0 {
		hit := decimalLTE(price, p.StopLossPrice)
		if o.Side == order.SideSell {
			hit = decimalGTE(price, p.StopLossPrice)
		}
		if hit {
			return Decision{
				Trigger: true,
				Reason:  fmt.Sprintf("stop-loss hit: price %.4f crossed %.4f", price, p.StopLossPrice),
				State:   state,
			}
		}
	}
	if p.TakeProfitPrice > 0 {
		hit := decimalGTE(price, p.TakeProfitPrice)
		if o.Side == order.SideSell {
			hit = decimalLTE(price, p.TakeProfitPrice)
		}
		if hit {
			return Decision{
				Trigger: true,
				Reason:  fmt.Sprintf("take-profit hit: price %.4f crossed %.4f", price, p.TakeProfitPrice),
				State:   state,
			}
		}
	}
	return Decision{State: state}
}
