package strategy

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"polytrader/internal/order"
)

type twap struct{}

func (twap) Kind() order.Kind { return order.KindTWAP }

// SliceCount is the deterministic number of TWAP slices:
// ceil(duration/interval).
func SliceCount(duration, interval time.Duration) int {
	if duration <= 0 || interval <= 0 {
		return 0
	}
	return int(math.Ceil(float64(duration) / float64(interval)))
}

// Evaluate emits at most one due slice per tick. A slice is due when elapsed
// time since the strategy started has crossed an interval boundary that has
// not been consumed yet. The final slice folds in whatever remainder decimal
// division left over, so executed slice sizes always sum to the exact total.
// The order completes when the total is executed or the duration has fully
// elapsed, whichever comes first.
func (twap) Evaluate(o *order.AlgoOrder, price float64, now time.Time) Decision {
	state := o.State
	if state.StartedAt.IsZero() {
		state.StartedAt = now
	}
	slices := SliceCount(o.Params.Duration, o.Params.Interval)
	if slices == 0 {
		return Decision{State: state}
	}

	elapsed := now.Sub(state.StartedAt)
	remaining := o.RemainingSize()

	if remaining <= 0 {
		return Decision{Complete: true, Reason: "twap: total size executed", State: state}
	}
	if elapsed > o.Params.Duration && state.ExecutedSlices >= slices {
		return Decision{Complete: true, Reason: "twap: duration elapsed", State: state}
	}

	// Boundary k (0-based) becomes due at elapsed >= k*interval, so the
	// first slice goes out on the first tick after creation.
	due := int(elapsed/o.Params.Interval) + 1
	if due > slices {
		due = slices
	}
	if state.ExecutedSlices >= due {
		return Decision{State: state}
	}

	sliceIdx := state.ExecutedSlices
	state.ExecutedSlices++

	size := remaining
	if sliceIdx < slices-1 {
		nominal := decimal.NewFromFloat(o.TotalSize).
			Div(decimal.NewFromInt(int64(slices)))
		if n, _ := nominal.Float64(); n < size {
			size = n
		}
	}
	if size <= 0 {
		return Decision{State: state}
	}
	return Decision{
		Trigger: true,
		Partial: true,
		Size:    size,
		Reason:  fmt.Sprintf("twap slice %d/%d", sliceIdx+1, slices),
		State:   state,
	}
}
