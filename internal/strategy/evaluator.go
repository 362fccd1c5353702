package strategy

import (
	"time"

	"polytrader/internal/order"
)

// Decision is the outcome of one evaluation tick. State is applied to the
// order unconditionally by the caller; execution happens only when Trigger
// is set. A TWAP decision carries the slice size in Size with Partial=true;
// other strategies execute the full remaining size.
type Decision struct {
	Trigger  bool
	Partial  bool
	Size     float64
	Reason   string
	Complete bool
	State    order.RuntimeState
}

// Evaluator maps (order, price, time) to a trigger decision plus updated
// runtime state. Implementations are pure: they never mutate the order and
// never touch the network.
type Evaluator interface {
	Kind() order.Kind
	Evaluate(o *order.AlgoOrder, price float64, now time.Time) Decision
}

// ForKind selects the evaluator for a strategy kind. The stop-loss and
// take-profit kinds share one implementation since either threshold may be
// configured on both.
func ForKind(kind order.Kind) (Evaluator, bool) {
	switch kind {
	case order.KindTrailingStop:
		return trailingStop{}, true
	case order.KindStopLoss, order.KindTakeProfit:
		return stopLossTakeProfit{kind: kind}, true
	case order.KindTWAP:
		return twap{}, true
	}
	return nil, false
}
