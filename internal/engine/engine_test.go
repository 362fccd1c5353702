package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polytrader/internal/clob"
	"polytrader/internal/notify"
	"polytrader/internal/order"
	"polytrader/internal/risk"
)

// fakeClient is a function-field exchange double. Unset fields behave as
// empty successes.
type fakeClient struct {
	midpointFn func(tokenID string) (float64, error)
	openFn     func() ([]clob.OpenOrder, error)
	submitFn   func(req clob.OrderRequest) (clob.OrderResult, error)

	mu      sync.Mutex
	submits []clob.OrderRequest
}

func (f *fakeClient) BestPrice(ctx context.Context, tokenID string, side clob.PriceSide) (float64, error) {
	return f.Midpoint(ctx, tokenID)
}

func (f *fakeClient) Midpoint(ctx context.Context, tokenID string) (float64, error) {
	if f.midpointFn == nil {
		return 0, errors.New("no quote")
	}
	return f.midpointFn(tokenID)
}

func (f *fakeClient) OpenOrders(ctx context.Context) ([]clob.OpenOrder, error) {
	if f.openFn == nil {
		return nil, nil
	}
	return f.openFn()
}

func (f *fakeClient) SubmitOrder(ctx context.Context, req clob.OrderRequest) (clob.OrderResult, error) {
	f.mu.Lock()
	f.submits = append(f.submits, req)
	f.mu.Unlock()
	if f.submitFn == nil {
		return clob.OrderResult{Success: true, OrderRef: "ref-1"}, nil
	}
	return f.submitFn(req)
}

func (f *fakeClient) CancelOrder(ctx context.Context, orderRef string) error { return nil }

func (f *fakeClient) Positions(ctx context.Context, owner string) ([]clob.Position, error) {
	return nil, nil
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submits)
}

// memRepo keeps the collections in memory and counts writes, so batched-save
// behavior is observable.
type memRepo struct {
	mu          sync.Mutex
	algo        []order.AlgoOrder
	resting     []order.RestingOrder
	algoSaves   int
	restingSave int
}

func (m *memRepo) LoadAlgoOrders(ctx context.Context) ([]order.AlgoOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.AlgoOrder, len(m.algo))
	copy(out, m.algo)
	return out, nil
}

func (m *memRepo) SaveAlgoOrders(ctx context.Context, orders []order.AlgoOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.algo = orders
	m.algoSaves++
	return nil
}

func (m *memRepo) LoadRestingOrders(ctx context.Context) ([]order.RestingOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]order.RestingOrder, len(m.resting))
	copy(out, m.resting)
	return out, nil
}

func (m *memRepo) SaveRestingOrders(ctx context.Context, orders []order.RestingOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resting = orders
	m.restingSave++
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	items []notify.Notification
}

func (c *captureNotifier) Send(n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, n)
	return nil
}

func (c *captureNotifier) kinds() []notify.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Kind, 0, len(c.items))
	for _, n := range c.items {
		out = append(out, n.Kind)
	}
	return out
}

type allowAllValidator struct{}

func (allowAllValidator) Validate(ctx context.Context, req risk.Request) risk.Result {
	return risk.Result{Allowed: true}
}

type denyAllValidator struct{}

func (denyAllValidator) Validate(ctx context.Context, req risk.Request) risk.Result {
	return risk.Result{Allowed: false, Errors: []string{"position value cap exceeded"}}
}

func newTestEngine(repo *memRepo, client *fakeClient, notifier *captureNotifier, v Validator) *Engine {
	return New(Params{
		Repo:      repo,
		Session:   NewSession("0xowner", client),
		Validator: v,
		Notifier:  notifier,
	})
}

func TestTrailingStopTriggersAcrossTicks(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "t1",
		Kind:      order.KindTrailingStop,
		Side:      order.SideBuy,
		TokenID:   "tok",
		TotalSize: 10,
		Status:    order.StatusActive,
		Params:    order.Params{TrailPercent: 5},
	}}}
	prices := []float64{0.50, 0.45, 0.4725}
	i := 0
	client := &fakeClient{midpointFn: func(string) (float64, error) {
		p := prices[i]
		return p, nil
	}}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, allowAllValidator{})

	ctx := context.Background()
	for ; i < len(prices); i++ {
		require.NoError(t, e.RunTick(ctx))
	}

	assert.Equal(t, 1, client.submitCount())
	got := repo.algo[0]
	assert.Equal(t, order.StatusCompleted, got.Status)
	assert.InDelta(t, 10.0, got.State.ExecutedSize, 1e-9)
	require.Len(t, got.State.Executions, 1)
	assert.InDelta(t, 0.4725, got.State.Executions[0].Price, 1e-9)
	assert.Equal(t, []notify.Kind{notify.KindOrderExecuted}, notifier.kinds())
	// One batched save per tick, not per order.
	assert.Equal(t, len(prices), repo.algoSaves)
}

func TestTWAPSliceFailureLeavesOrderActive(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "tw1",
		Kind:      order.KindTWAP,
		Side:      order.SideSell,
		TokenID:   "tok",
		TotalSize: 30,
		Status:    order.StatusActive,
		Params:    order.Params{Duration: 3 * time.Minute, Interval: time.Minute},
	}}}
	fail := true
	client := &fakeClient{
		midpointFn: func(string) (float64, error) { return 0.5, nil },
		submitFn: func(clob.OrderRequest) (clob.OrderResult, error) {
			if fail {
				return clob.OrderResult{Success: false, Error: "insufficient balance"}, nil
			}
			return clob.OrderResult{Success: true, OrderRef: "ref"}, nil
		},
	}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, allowAllValidator{})

	base := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	now := base
	e.SetNowFunc(func() time.Time { return now })

	ctx := context.Background()
	require.NoError(t, e.RunTick(ctx))

	got := repo.algo[0]
	assert.Equal(t, order.StatusActive, got.Status)
	assert.Zero(t, got.State.ExecutedSize)
	// The failed slice still consumed its boundary.
	assert.Equal(t, 1, got.State.ExecutedSlices)
	require.Len(t, got.State.Executions, 1)
	assert.False(t, got.State.Executions[0].Success)
	assert.Empty(t, notifier.kinds())

	// Next boundary: the remaining size spreads over the later slices.
	fail = false
	now = base.Add(61 * time.Second)
	require.NoError(t, e.RunTick(ctx))

	got = repo.algo[0]
	assert.Equal(t, order.StatusActive, got.Status)
	assert.Equal(t, 2, got.State.ExecutedSlices)
	assert.InDelta(t, 10.0, got.State.ExecutedSize, 1e-9)
}

func TestMissingPriceSkipsOrderWithoutFailing(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "s1",
		Kind:      order.KindStopLoss,
		Side:      order.SideSell,
		TokenID:   "tok",
		TotalSize: 5,
		Status:    order.StatusActive,
		Params:    order.Params{StopLossPrice: 0.4},
	}}}
	client := &fakeClient{midpointFn: func(string) (float64, error) {
		return 0, errors.New("upstream 503")
	}}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, allowAllValidator{})

	require.NoError(t, e.RunTick(context.Background()))

	got := repo.algo[0]
	assert.Equal(t, order.StatusActive, got.Status)
	assert.Empty(t, got.State.Executions)
	assert.Zero(t, client.submitCount())
}

func TestRiskRejectionFailsFullOrder(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "r1",
		Kind:      order.KindTakeProfit,
		Side:      order.SideBuy,
		TokenID:   "tok",
		TotalSize: 5,
		Status:    order.StatusActive,
		Params:    order.Params{TakeProfitPrice: 0.6},
	}}}
	client := &fakeClient{midpointFn: func(string) (float64, error) { return 0.65, nil }}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, denyAllValidator{})

	require.NoError(t, e.RunTick(context.Background()))

	got := repo.algo[0]
	assert.Equal(t, order.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "position value cap exceeded")
	assert.Zero(t, client.submitCount())
	assert.Equal(t, []notify.Kind{notify.KindOrderFailed}, notifier.kinds())
}

type transientDenyValidator struct{}

func (transientDenyValidator) Validate(ctx context.Context, req risk.Request) risk.Result {
	return risk.Result{
		Allowed:   false,
		Transient: true,
		Errors:    []string{"daily loss cap reached: 500.00 of 500.00"},
	}
}

func TestTransientRiskRejectionDefersWithoutFailing(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "d1",
		Kind:      order.KindTakeProfit,
		Side:      order.SideBuy,
		TokenID:   "tok",
		TotalSize: 5,
		Status:    order.StatusActive,
		Params:    order.Params{TakeProfitPrice: 0.6},
	}}}
	client := &fakeClient{midpointFn: func(string) (float64, error) { return 0.65, nil }}
	notifier := &captureNotifier{}
	e := newTestEngine(repo, client, notifier, transientDenyValidator{})

	require.NoError(t, e.RunTick(context.Background()))

	// The cap clears at the next UTC day: the order waits, it does not fail.
	got := repo.algo[0]
	assert.Equal(t, order.StatusActive, got.Status)
	assert.Empty(t, got.State.Executions)
	assert.Zero(t, client.submitCount())
	assert.Empty(t, notifier.kinds())
}

func TestUserCancelDuringTickIsNotReverted(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "c1",
		Kind:      order.KindStopLoss,
		Side:      order.SideBuy,
		TokenID:   "tok",
		TotalSize: 5,
		Status:    order.StatusActive,
		Params:    order.Params{StopLossPrice: 0.40},
	}}}
	gate := &sync.Mutex{}
	cancelled := make(chan struct{})
	var once sync.Once
	client := &fakeClient{midpointFn: func(string) (float64, error) {
		// A command-surface cancel lands while the tick holds the gate: it
		// queues behind the batched save instead of being overwritten by it.
		once.Do(func() {
			go func() {
				gate.Lock()
				defer gate.Unlock()
				all, err := repo.LoadAlgoOrders(context.Background())
				assert.NoError(t, err)
				assert.NoError(t, all[0].Cancel(time.Now()))
				assert.NoError(t, repo.SaveAlgoOrders(context.Background(), all))
				close(cancelled)
			}()
		})
		return 0.50, nil
	}}
	notifier := &captureNotifier{}
	e := New(Params{
		Repo:     repo,
		Session:  NewSession("0xowner", client),
		Notifier: notifier,
		Gate:     gate,
	})

	ctx := context.Background()
	require.NoError(t, e.RunTick(ctx))
	<-cancelled
	assert.Equal(t, order.StatusCancelled, repo.algo[0].Status)

	// The cancel takes effect at the next tick boundary: no evaluation even
	// at a price that would have triggered.
	client.midpointFn = func(string) (float64, error) { return 0.30, nil }
	require.NoError(t, e.RunTick(ctx))
	assert.Equal(t, order.StatusCancelled, repo.algo[0].Status)
	assert.Zero(t, client.submitCount())
	assert.Empty(t, notifier.kinds())
}

func TestPausedOrdersAreNotEvaluated(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID:        "p1",
		Kind:      order.KindStopLoss,
		Side:      order.SideSell,
		TokenID:   "tok",
		TotalSize: 5,
		Status:    order.StatusPaused,
		Params:    order.Params{StopLossPrice: 0.6},
	}}}
	client := &fakeClient{midpointFn: func(string) (float64, error) { return 0.5, nil }}
	e := newTestEngine(repo, client, &captureNotifier{}, allowAllValidator{})

	require.NoError(t, e.RunTick(context.Background()))

	assert.Equal(t, order.StatusPaused, repo.algo[0].Status)
	assert.Zero(t, client.submitCount())
}

func TestTickSkippedWhenSessionNotReady(t *testing.T) {
	repo := &memRepo{algo: []order.AlgoOrder{{
		ID: "x", Kind: order.KindStopLoss, Side: order.SideSell,
		TokenID: "tok", TotalSize: 1, Status: order.StatusActive,
		Params: order.Params{StopLossPrice: 0.4},
	}}}
	e := New(Params{Repo: repo, Session: NewSession("", nil)})

	require.NoError(t, e.RunTick(context.Background()))
	assert.Zero(t, repo.algoSaves)
}
