package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polytrader/internal/clob"
	"polytrader/internal/notify"
	"polytrader/internal/order"
)

func TestReconcileInfersFillWhenOrderLeavesOpenSet(t *testing.T) {
	repo := &memRepo{resting: []order.RestingOrder{
		{ID: "r1", TokenID: "tok", Side: order.SideBuy, Size: 20, LimitPrice: 0.42,
			Status: order.RestingPending, OrderRef: "ex-1"},
		{ID: "r2", TokenID: "tok2", Side: order.SideSell, Size: 5, LimitPrice: 0.80,
			Status: order.RestingPending, OrderRef: "ex-2"},
	}}
	client := &fakeClient{
		midpointFn: func(string) (float64, error) { return 0.5, nil },
		openFn: func() ([]clob.OpenOrder, error) {
			// ex-1 is gone, ex-2 still resting.
			return []clob.OpenOrder{{OrderRef: "ex-2", TokenID: "tok2"}}, nil
		},
	}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, allowAllValidator{})

	ctx := context.Background()
	require.NoError(t, e.RunTick(ctx))

	filled := repo.resting[0]
	assert.Equal(t, order.RestingFilled, filled.Status)
	assert.True(t, filled.FillInferred)
	assert.InDelta(t, 0.42, filled.FillPrice, 1e-9)
	require.NotNil(t, filled.FilledAt)
	assert.Equal(t, order.RestingPending, repo.resting[1].Status)
	assert.Equal(t, []notify.Kind{notify.KindRestingOrderFilled}, notifier.kinds())
	assert.Equal(t, 1, repo.restingSave)

	// Second tick: the filled order is terminal, nothing re-fires.
	require.NoError(t, e.RunTick(ctx))
	assert.Len(t, notifier.kinds(), 1)
	assert.Equal(t, 1, repo.restingSave)
}

func TestReconcileDeferredWhenOpenSetUnavailable(t *testing.T) {
	repo := &memRepo{resting: []order.RestingOrder{
		{ID: "r1", TokenID: "tok", Side: order.SideBuy, Size: 20, LimitPrice: 0.42,
			Status: order.RestingPending, OrderRef: "ex-1"},
	}}
	client := &fakeClient{
		midpointFn: func(string) (float64, error) { return 0.5, nil },
		openFn:     func() ([]clob.OpenOrder, error) { return nil, errors.New("upstream timeout") },
	}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, allowAllValidator{})

	require.NoError(t, e.RunTick(context.Background()))

	assert.Equal(t, order.RestingPending, repo.resting[0].Status)
	assert.Empty(t, notifier.kinds())
}

func TestReconcileIgnoresUnsubmittedOrders(t *testing.T) {
	repo := &memRepo{resting: []order.RestingOrder{
		// No exchange ref yet: submission may still be in flight elsewhere.
		{ID: "r1", TokenID: "tok", Side: order.SideBuy, Size: 20, LimitPrice: 0.42,
			Status: order.RestingPending},
	}}
	called := false
	client := &fakeClient{
		midpointFn: func(string) (float64, error) { return 0.5, nil },
		openFn: func() ([]clob.OpenOrder, error) {
			called = true
			return nil, nil
		},
	}
	e := newTestEngine(repo, client, &captureNotifier{}, allowAllValidator{})

	require.NoError(t, e.RunTick(context.Background()))

	assert.False(t, called)
	assert.Equal(t, order.RestingPending, repo.resting[0].Status)
}
