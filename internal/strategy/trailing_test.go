package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polytrader/internal/order"
)

func newTrailingOrder(side order.Side, trailPct, activation float64) *order.AlgoOrder {
	return &order.AlgoOrder{
		ID:        "ord-1",
		Kind:      order.KindTrailingStop,
		Side:      side,
		TokenID:   "tok-yes",
		TotalSize: 10,
		Status:    order.StatusActive,
		Params: order.Params{
			TrailPercent:    trailPct,
			ActivationPrice: activation,
		},
	}
}

func evalPath(t *testing.T, o *order.AlgoOrder, path []float64) []Decision {
	t.Helper()
	ev, ok := ForKind(order.KindTrailingStop)
	require.True(t, ok)
	now := time.Now()
	out := make([]Decision, 0, len(path))
	for i, p := range path {
		d := ev.Evaluate(o, p, now.Add(time.Duration(i)*5*time.Second))
		o.State = d.State
		out = append(out, d)
	}
	return out
}

func TestTrailingStopBuyTriggersOnceOnRebound(t *testing.T) {
	o := newTrailingOrder(order.SideBuy, 5, 0)

	// 0.45*1.05 = 0.4725: no trigger at the new minimum, trigger on the
	// rebound against min 0.45.
	decisions := evalPath(t, o, []float64{0.50, 0.45, 0.4725})

	assert.False(t, decisions[0].Trigger)
	assert.False(t, decisions[1].Trigger)
	assert.True(t, decisions[2].Trigger)
	assert.InDelta(t, 0.45, o.State.LowestPrice, 1e-9)
}

func TestTrailingStopExactBoundaryFires(t *testing.T) {
	// Thresholds land on exact decimal boundaries that binary floats
	// overshoot: 0.29*1.07 is 0.31030000000000005 in float64, so a raw
	// float comparison never fires at price 0.3103.
	buy := newTrailingOrder(order.SideBuy, 7, 0)
	decisions := evalPath(t, buy, []float64{0.30, 0.29, 0.3103})
	assert.False(t, decisions[1].Trigger)
	assert.True(t, decisions[2].Trigger)

	sell := newTrailingOrder(order.SideSell, 3, 0)
	decisions = evalPath(t, sell, []float64{0.55, 0.61, 0.5917})
	assert.False(t, decisions[1].Trigger)
	// 0.61*0.97 = 0.5917 exactly in decimal space.
	assert.True(t, decisions[2].Trigger)
}

func TestTrailingStopBuyNoTriggerOnFirstTick(t *testing.T) {
	o := newTrailingOrder(order.SideBuy, 5, 0)

	// min == current on the very first tick must not fire even with a huge
	// prior move baked into the price.
	decisions := evalPath(t, o, []float64{0.30})
	assert.False(t, decisions[0].Trigger)
	assert.True(t, o.State.Activated)
}

func TestTrailingStopBuyMonotonicPathFiresExactlyOnce(t *testing.T) {
	o := newTrailingOrder(order.SideBuy, 10, 0)
	path := []float64{0.60, 0.55, 0.50, 0.45, 0.40, 0.44, 0.48, 0.55, 0.60}

	fired := 0
	firstIdx := -1
	ev, _ := ForKind(order.KindTrailingStop)
	now := time.Now()
	for i, p := range path {
		d := ev.Evaluate(o, p, now)
		o.State = d.State
		if d.Trigger {
			fired++
			if firstIdx == -1 {
				firstIdx = i
			}
			// The engine would stop evaluating after execution; emulate
			// that by breaking on the first trigger.
			break
		}
	}
	require.Equal(t, 1, fired)
	// 0.40*1.10 = 0.44: first crossing is at index 5.
	assert.Equal(t, 5, firstIdx)
}

func TestTrailingStopSellSymmetric(t *testing.T) {
	o := newTrailingOrder(order.SideSell, 5, 0)

	decisions := evalPath(t, o, []float64{0.50, 0.60, 0.57})

	assert.False(t, decisions[0].Trigger)
	assert.False(t, decisions[1].Trigger)
	// 0.60*0.95 = 0.57
	assert.True(t, decisions[2].Trigger)
	assert.InDelta(t, 0.60, o.State.HighestPrice, 1e-9)
}

func TestTrailingStopActivationGatesTracking(t *testing.T) {
	o := newTrailingOrder(order.SideBuy, 5, 0.40)

	// Above the activation price nothing arms: no tracking, no trigger,
	// even across a rebound that would otherwise fire.
	decisions := evalPath(t, o, []float64{0.50, 0.45, 0.48})
	for _, d := range decisions {
		assert.False(t, d.Trigger)
	}
	assert.False(t, o.State.Activated)

	// Falling to the activation price arms the order and starts tracking
	// from that tick.
	decisions = evalPath(t, o, []float64{0.40, 0.38, 0.40})
	assert.True(t, o.State.Activated)
	assert.False(t, decisions[0].Trigger)
	assert.False(t, decisions[1].Trigger)
	// 0.38*1.05 = 0.399
	assert.True(t, decisions[2].Trigger)
}

func TestTrailingStopSellActivation(t *testing.T) {
	o := newTrailingOrder(order.SideSell, 5, 0.60)

	decisions := evalPath(t, o, []float64{0.55, 0.58})
	assert.False(t, o.State.Activated)
	for _, d := range decisions {
		assert.False(t, d.Trigger)
	}

	evalPath(t, o, []float64{0.60})
	assert.True(t, o.State.Activated)
}
