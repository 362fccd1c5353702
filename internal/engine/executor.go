package engine

import (
	"context"
	"strings"
	"time"

	"polytrader/internal/clob"
	"polytrader/internal/logger"
	"polytrader/internal/notify"
	"polytrader/internal/order"
	"polytrader/internal/risk"
)

// execute submits one triggered execution to the exchange and applies the
// outcome to the order. Partial executions (TWAP slices) never fail the
// whole order; full executions do.
func (e *Engine) execute(ctx context.Context, o *order.AlgoOrder, price, size float64, reason string, partial bool) {
	now := e.nowFn()

	if size <= 0 {
		logger.Warnf("engine: order %s triggered with no remaining size", o.ID)
		o.MarkCompleted(now)
		return
	}

	if res := e.checkRisk(ctx, o, price, size); !res.Allowed {
		// Cap-based rejections clear on their own (ledger resets, holdings
		// move); the order stays ACTIVE and re-evaluates next tick. Only a
		// rejection that can never pass fails the order outright.
		if res.Transient && !partial {
			logger.Warnf("engine: execution deferred by risk order=%s: %s",
				o.ID, strings.Join(res.Errors, "; "))
			return
		}
		e.applyFailure(ctx, o, price, size, reason,
			"risk check rejected: "+strings.Join(res.Errors, "; "), partial, now)
		return
	}

	// Price zero asks the gateway for a marketable order at the current
	// best price; the tick price is what the history records.
	result, err := e.session.Client.SubmitOrder(ctx, clob.OrderRequest{
		TokenID: o.TokenID,
		Side:    o.Side,
		Size:    size,
	})
	if err != nil {
		e.applyFailure(ctx, o, price, size, reason, err.Error(), partial, now)
		return
	}
	if !result.Success {
		e.applyFailure(ctx, o, price, size, reason, result.Error, partial, now)
		return
	}

	exec := order.Execution{
		Price:     price,
		Size:      size,
		Timestamp: now,
		OrderRef:  result.OrderRef,
		Success:   true,
		Reason:    reason,
	}
	o.RecordExecution(exec)
	o.UpdatedAt = now
	e.recordAudit(ctx, o, exec)

	logger.Infof("engine: executed %s %s %.4f of %s @ %.4f (%s)",
		o.Kind, o.Side, size, o.TokenID, price, reason)

	e.settleAfterFill(ctx, o, price, size)

	if partial {
		if o.RemainingSize() <= 0 {
			e.completeOrder(o, now)
		}
		return
	}
	o.MarkCompleted(now)
	e.send(notify.OrderExecuted(o, price, size, reason))
}

// applyFailure records a failed attempt. A failed slice leaves a TWAP order
// ACTIVE; a failed full execution fails the order.
func (e *Engine) applyFailure(ctx context.Context, o *order.AlgoOrder, price, size float64, reason, errMsg string, partial bool, now time.Time) {
	exec := order.Execution{
		Price:     price,
		Size:      size,
		Timestamp: now,
		Success:   false,
		Error:     errMsg,
		Reason:    reason,
	}
	o.RecordExecution(exec)
	o.UpdatedAt = now
	e.recordAudit(ctx, o, exec)

	if partial {
		logger.Warnf("engine: TWAP slice failed order=%s token=%s size=%.4f err=%s",
			o.ID, o.TokenID, size, errMsg)
		return
	}
	o.MarkFailed(now, errMsg)
	logger.Errorf("engine: order %s failed: %s", o.ID, errMsg)
	e.send(notify.OrderFailed(o, errMsg))
}

// checkRisk runs the pre-trade validation. Missing validator means risk
// management was not wired, which is treated as disabled.
func (e *Engine) checkRisk(ctx context.Context, o *order.AlgoOrder, price, size float64) risk.Result {
	if e.validator == nil {
		return risk.Result{Allowed: true}
	}
	res := e.validator.Validate(ctx, risk.Request{
		TokenID: o.TokenID,
		Side:    o.Side,
		Size:    size,
		Price:   price,
	})
	for _, w := range res.Warnings {
		logger.Warnf("engine: risk warning order=%s: %s", o.ID, w)
	}
	return res
}

// settleAfterFill handles the bookkeeping a fill implies: the holdings cache
// is stale, and a sell below average cost realizes a loss that counts
// against the daily cap.
func (e *Engine) settleAfterFill(ctx context.Context, o *order.AlgoOrder, price, size float64) {
	if o.Side == order.SideSell {
		e.recordRealizedLoss(ctx, o, price, size)
	}
	if e.cache != nil {
		e.cache.Invalidate(e.session.Owner)
	}
}

func (e *Engine) recordRealizedLoss(ctx context.Context, o *order.AlgoOrder, price, size float64) {
	if e.tracker == nil || e.cache == nil {
		return
	}
	snap, err := e.cache.Get(ctx, e.session.Owner)
	if err != nil {
		logger.Warnf("engine: cannot resolve avg cost for loss tracking token=%s: %v", o.TokenID, err)
		return
	}
	for _, p := range snap.Positions {
		if p.TokenID != o.TokenID {
			continue
		}
		loss := (p.AvgPrice - price) * size
		if loss <= 0 {
			return
		}
		if err := e.tracker.RecordLoss(ctx, risk.LossEntry{
			TokenID:   o.TokenID,
			Size:      size,
			Loss:      loss,
			Timestamp: e.nowFn(),
		}); err != nil {
			logger.Warnf("engine: recording realized loss failed token=%s: %v", o.TokenID, err)
		}
		return
	}
}

func (e *Engine) recordAudit(ctx context.Context, o *order.AlgoOrder, exec order.Execution) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, o, exec); err != nil {
		logger.Warnf("engine: audit log write failed order=%s: %v", o.ID, err)
	}
}
