package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"polytrader/internal/logger"
	"polytrader/internal/notify"
	"polytrader/internal/order"
	"polytrader/internal/positions"
	"polytrader/internal/risk"
	"polytrader/internal/strategy"
)

const priceFetchConcurrency = 8

// Repository is the slice of the store the tick engine reads and writes.
// Collections are read fully at tick start and written fully at tick end.
type Repository interface {
	LoadAlgoOrders(ctx context.Context) ([]order.AlgoOrder, error)
	SaveAlgoOrders(ctx context.Context, orders []order.AlgoOrder) error
	LoadRestingOrders(ctx context.Context) ([]order.RestingOrder, error)
	SaveRestingOrders(ctx context.Context, orders []order.RestingOrder) error
}

// Validator gates capital-committing submissions.
type Validator interface {
	Validate(ctx context.Context, req risk.Request) risk.Result
}

// AuditLog records every execution attempt. Optional.
type AuditLog interface {
	Record(ctx context.Context, o *order.AlgoOrder, e order.Execution) error
}

// Engine drives one tick: gather prices, reconcile resting orders, evaluate
// strategies, execute triggers, persist. One order's failure never aborts
// the tick or touches sibling orders.
type Engine struct {
	repo      Repository
	session   *Session
	cache     *positions.Cache
	validator Validator
	tracker   *risk.Tracker
	audit     AuditLog
	notifier  notify.Notifier
	nowFn     func() time.Time

	// gate serializes the tick's load→save span against command-surface
	// writers sharing the same collections. A command landing mid-tick
	// waits and applies after the batched write, so the next tick sees it
	// instead of the save reverting it.
	gate sync.Locker

	inFlight atomic.Bool
}

type Params struct {
	Repo      Repository
	Session   *Session
	Cache     *positions.Cache
	Validator Validator
	Tracker   *risk.Tracker
	Audit     AuditLog
	Notifier  notify.Notifier
	Gate      sync.Locker
}

func New(p Params) *Engine {
	notifier := p.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	gate := p.Gate
	if gate == nil {
		gate = &sync.Mutex{}
	}
	return &Engine{
		repo:      p.Repo,
		session:   p.Session,
		cache:     p.Cache,
		validator: p.Validator,
		tracker:   p.Tracker,
		audit:     p.Audit,
		notifier:  notifier,
		nowFn:     time.Now,
		gate:      gate,
	}
}

// SetNowFunc overrides the clock for tests.
func (e *Engine) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		e.nowFn = fn
	}
}

// RunTick executes one full evaluation cycle. It runs to completion and
// logs-and-continues per order; the only errors returned are the ones that
// make the whole tick impossible (store unavailable, session absent).
func (e *Engine) RunTick(ctx context.Context) error {
	if e == nil || e.repo == nil {
		return nil
	}
	if !e.inFlight.CompareAndSwap(false, true) {
		logger.Warnf("engine: tick already in flight, skipping")
		return nil
	}
	defer e.inFlight.Store(false)

	if err := e.session.Ready(); err != nil {
		logger.Warnf("engine: session not ready, skipping tick: %v", err)
		return nil
	}

	e.gate.Lock()
	defer e.gate.Unlock()

	start := e.nowFn()

	algoOrders, err := e.repo.LoadAlgoOrders(ctx)
	if err != nil {
		return err
	}
	restingOrders, err := e.repo.LoadRestingOrders(ctx)
	if err != nil {
		return err
	}

	tokens := collectTokens(algoOrders, restingOrders)
	if len(tokens) == 0 {
		return nil
	}

	prices := e.fetchPrices(ctx, tokens)

	restingChanged := e.reconcile(ctx, restingOrders)

	evaluated, executed := 0, 0
	for i := range algoOrders {
		o := &algoOrders[i]
		if o.Status != order.StatusActive {
			continue
		}
		price, ok := prices[o.TokenID]
		if !ok {
			// Transient: no price this tick means skip, not fail.
			logger.Debugf("engine: no price for %s, skipping order %s", o.TokenID, o.ID)
			continue
		}
		evaluated++
		if e.evaluateOrder(ctx, o, price) {
			executed++
		}
	}

	// One batched write per collection, after all evaluations.
	if err := e.repo.SaveAlgoOrders(ctx, algoOrders); err != nil {
		logger.Errorf("engine: persisting algo orders failed: %v", err)
	}
	if restingChanged {
		if err := e.repo.SaveRestingOrders(ctx, restingOrders); err != nil {
			logger.Errorf("engine: persisting resting orders failed: %v", err)
		}
	}

	logger.Infof("engine: tick done tokens=%d evaluated=%d executed=%d duration=%s",
		len(tokens), evaluated, executed, time.Since(start).Truncate(time.Millisecond))
	return nil
}

// evaluateOrder applies one strategy evaluation to one order. Returns true
// when an execution was attempted.
func (e *Engine) evaluateOrder(ctx context.Context, o *order.AlgoOrder, price float64) bool {
	ev, ok := strategy.ForKind(o.Kind)
	if !ok {
		logger.Warnf("engine: order %s has unknown kind %s", o.ID, o.Kind)
		return false
	}
	now := e.nowFn()
	d := ev.Evaluate(o, price, now)

	// State updates apply unconditionally, trigger or not.
	o.State = d.State
	o.UpdatedAt = now

	if d.Complete {
		e.completeOrder(o, now)
		return false
	}
	if !d.Trigger {
		return false
	}

	size := o.RemainingSize()
	if d.Partial {
		size = d.Size
	}
	e.execute(ctx, o, price, size, d.Reason, d.Partial)
	return true
}

func (e *Engine) completeOrder(o *order.AlgoOrder, now time.Time) {
	o.MarkCompleted(now)
	if o.Kind == order.KindTWAP {
		e.send(notify.TWAPCompleted(o))
	}
	logger.Infof("engine: order %s completed (%s %s)", o.ID, o.Kind, o.TokenID)
}

// fetchPrices resolves a midpoint for every token concurrently. A failure
// on one token never fails the others; missing tokens are simply absent
// from the result.
func (e *Engine) fetchPrices(ctx context.Context, tokens []string) map[string]float64 {
	prices := make(map[string]float64, len(tokens))
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(priceFetchConcurrency)
	for _, tokenID := range tokens {
		tokenID := tokenID
		group.Go(func() error {
			price, err := e.session.Client.Midpoint(gctx, tokenID)
			if err != nil {
				logger.Warnf("engine: price fetch failed token=%s err=%v", tokenID, err)
				return nil
			}
			mu.Lock()
			prices[tokenID] = price
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return prices
}

func (e *Engine) send(n notify.Notification) {
	if err := e.notifier.Send(n); err != nil {
		logger.Warnf("engine: notification failed kind=%s err=%v", n.Kind, err)
	}
}

// collectTokens unions the instruments referenced by live algo orders and
// pending resting orders.
func collectTokens(algo []order.AlgoOrder, resting []order.RestingOrder) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	add := func(tokenID string) {
		if tokenID == "" {
			return
		}
		if _, ok := seen[tokenID]; ok {
			return
		}
		seen[tokenID] = struct{}{}
		out = append(out, tokenID)
	}
	for i := range algo {
		switch algo[i].Status {
		case order.StatusActive, order.StatusPaused:
			add(algo[i].TokenID)
		}
	}
	for i := range resting {
		if resting[i].Status == order.RestingPending {
			add(resting[i].TokenID)
		}
	}
	return out
}
