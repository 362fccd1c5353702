package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polytrader/internal/order"
)

func newTWAPOrder(total float64, duration, interval time.Duration) *order.AlgoOrder {
	return &order.AlgoOrder{
		ID:        "ord-3",
		Kind:      order.KindTWAP,
		Side:      order.SideBuy,
		TokenID:   "tok-yes",
		TotalSize: total,
		Status:    order.StatusActive,
		Params: order.Params{
			Duration: duration,
			Interval: interval,
		},
	}
}

func TestSliceCount(t *testing.T) {
	assert.Equal(t, 12, SliceCount(60*time.Second, 5*time.Second))
	assert.Equal(t, 3, SliceCount(50*time.Second, 20*time.Second))
	assert.Equal(t, 1, SliceCount(5*time.Second, 5*time.Second))
	assert.Equal(t, 0, SliceCount(0, 5*time.Second))
}

func TestTWAPSlicesSumToTotalExactly(t *testing.T) {
	o := newTWAPOrder(10, 60*time.Second, 5*time.Second)
	ev, ok := ForKind(order.KindTWAP)
	require.True(t, ok)

	start := time.Now()
	executed := 0.0
	sliceCount := 0
	for i := 0; i < 13; i++ {
		now := start.Add(time.Duration(i) * 5 * time.Second)
		d := ev.Evaluate(o, 0.50, now)
		o.State = d.State
		if d.Trigger {
			sliceCount++
			executed += d.Size
			o.RecordExecution(order.Execution{Price: 0.50, Size: d.Size, Timestamp: now, Success: true})
		}
		if d.Complete {
			break
		}
	}
	assert.Equal(t, 12, sliceCount)
	assert.Equal(t, 10.0, executed)
	assert.Equal(t, 10.0, o.State.ExecutedSize)
}

func TestTWAPFailedSliceLeavesOrderActive(t *testing.T) {
	o := newTWAPOrder(10, 60*time.Second, 5*time.Second)
	ev, _ := ForKind(order.KindTWAP)

	start := time.Now()
	for i := 0; i < 12; i++ {
		now := start.Add(time.Duration(i) * 5 * time.Second)
		d := ev.Evaluate(o, 0.50, now)
		o.State = d.State
		require.True(t, d.Trigger, "slice %d should be due", i)
		if i == 11 {
			// Final slice fails at the exchange: recorded in history, size
			// not counted, boundary still consumed.
			o.RecordExecution(order.Execution{Price: 0.50, Size: d.Size, Timestamp: now, Success: false, Error: "exchange rejected"})
			continue
		}
		o.RecordExecution(order.Execution{Price: 0.50, Size: d.Size, Timestamp: now, Success: true})
	}

	// 11 successful slices of 10/12 each.
	assert.InDelta(t, 9.1666, o.State.ExecutedSize, 1e-3)
	assert.Equal(t, order.StatusActive, o.Status)
	assert.Len(t, o.State.Executions, 12)
}

func TestTWAPCompletesOnDurationElapsed(t *testing.T) {
	o := newTWAPOrder(10, 60*time.Second, 5*time.Second)
	o.State.StartedAt = time.Now().Add(-2 * time.Minute)
	o.State.ExecutedSlices = 12
	o.State.ExecutedSize = 9.1666

	ev, _ := ForKind(order.KindTWAP)
	d := ev.Evaluate(o, 0.50, time.Now())
	assert.True(t, d.Complete)
	assert.False(t, d.Trigger)
}

func TestTWAPNoSliceBetweenBoundaries(t *testing.T) {
	o := newTWAPOrder(10, 60*time.Second, 10*time.Second)
	ev, _ := ForKind(order.KindTWAP)

	start := time.Now()
	d := ev.Evaluate(o, 0.50, start)
	o.State = d.State
	require.True(t, d.Trigger)
	o.RecordExecution(order.Execution{Size: d.Size, Success: true})

	// 4s in: still inside the first interval, nothing due.
	d = ev.Evaluate(o, 0.50, start.Add(4*time.Second))
	o.State = d.State
	assert.False(t, d.Trigger)

	// 10s in: second boundary crossed.
	d = ev.Evaluate(o, 0.50, start.Add(10*time.Second))
	assert.True(t, d.Trigger)
}

func TestTWAPRemainderFoldedIntoLastSlice(t *testing.T) {
	o := newTWAPOrder(10, 50*time.Second, 20*time.Second)
	ev, _ := ForKind(order.KindTWAP)

	start := time.Now()
	sizes := []float64{}
	for i := 0; i < 3; i++ {
		d := ev.Evaluate(o, 0.50, start.Add(time.Duration(i)*20*time.Second))
		o.State = d.State
		require.True(t, d.Trigger)
		sizes = append(sizes, d.Size)
		o.RecordExecution(order.Execution{Size: d.Size, Success: true})
	}
	require.Len(t, sizes, 3)
	// ceil(50/20) = 3 slices; the last takes total-executed, not the
	// nominal third.
	sum := sizes[0] + sizes[1] + sizes[2]
	assert.Equal(t, 10.0, sum)
	assert.Equal(t, 10.0, o.State.ExecutedSize)
}
