package engine

import (
	"context"

	"polytrader/internal/logger"
	"polytrader/internal/notify"
	"polytrader/internal/order"
)

// reconcile compares locally tracked PENDING resting orders against the
// exchange's open set. An order that was submitted (has an exchange ref) and
// is no longer open is marked filled at its limit price. Returns true when
// any order changed.
func (e *Engine) reconcile(ctx context.Context, resting []order.RestingOrder) bool {
	pending := 0
	for i := range resting {
		if resting[i].Status == order.RestingPending && resting[i].OrderRef != "" {
			pending++
		}
	}
	if pending == 0 {
		return false
	}

	open, err := e.session.Client.OpenOrders(ctx)
	if err != nil {
		// Without the open set there is no safe inference; retry next tick.
		logger.Warnf("engine: open orders fetch failed, reconcile deferred: %v", err)
		return false
	}
	openRefs := make(map[string]struct{}, len(open))
	for _, oo := range open {
		openRefs[oo.OrderRef] = struct{}{}
	}

	changed := false
	now := e.nowFn()
	for i := range resting {
		r := &resting[i]
		if r.Status != order.RestingPending || r.OrderRef == "" {
			continue
		}
		if _, stillOpen := openRefs[r.OrderRef]; stillOpen {
			continue
		}
		r.Status = order.RestingFilled
		r.FillPrice = r.LimitPrice
		r.FillInferred = true
		filledAt := now
		r.FilledAt = &filledAt
		r.UpdatedAt = now
		changed = true

		logger.Infof("engine: resting order %s inferred filled (%s %.4f %s @ %.4f)",
			r.ID, r.Side, r.Size, r.TokenID, r.LimitPrice)
		e.send(notify.RestingOrderFilled(r))
		if e.cache != nil {
			e.cache.Invalidate(e.session.Owner)
		}
	}
	return changed
}
