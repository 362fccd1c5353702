package alerts

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"polytrader/internal/logger"
	"polytrader/internal/notify"
)

const priceFetchConcurrency = 8

// Quoter is the slice of the exchange client the monitor needs.
type Quoter interface {
	Midpoint(ctx context.Context, tokenID string) (float64, error)
}

// Repo persists the alert collection as one whole document.
type Repo interface {
	LoadAlerts(ctx context.Context) ([]Alert, error)
	SaveAlerts(ctx context.Context, items []Alert) error
}

// Monitor evaluates price alerts on each tick, independently of the order
// engine. A triggered alert fires exactly one notification and leaves the
// evaluable set until re-armed.
type Monitor struct {
	repo     Repo
	quoter   Quoter
	notifier notify.Notifier
	nowFn    func() time.Time
}

func NewMonitor(repo Repo, quoter Quoter, notifier notify.Notifier) *Monitor {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Monitor{repo: repo, quoter: quoter, notifier: notifier, nowFn: time.Now}
}

// SetNowFunc overrides the clock for tests.
func (m *Monitor) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		m.nowFn = fn
	}
}

// RunTick fetches one price per watched token and fires any hit alerts.
// Alerts on a token whose price cannot be fetched are skipped this tick.
func (m *Monitor) RunTick(ctx context.Context) error {
	if m == nil || m.repo == nil || m.quoter == nil {
		return nil
	}
	items, err := m.repo.LoadAlerts(ctx)
	if err != nil {
		return err
	}
	now := m.nowFn()

	tokens := make(map[string]struct{})
	for i := range items {
		if items[i].Evaluable(now) {
			tokens[items[i].TokenID] = struct{}{}
		}
	}
	if len(tokens) == 0 {
		return nil
	}

	prices := m.fetchPrices(ctx, tokens)

	changed := false
	for i := range items {
		a := &items[i]
		if !a.Evaluable(now) {
			continue
		}
		price, ok := prices[a.TokenID]
		if !ok || !a.Hit(price) {
			continue
		}
		n := notify.PriceAlertTriggered(a.TokenID, string(a.Direction), a.TargetPrice, price)
		a.Trigger(price, n.ID, now)
		changed = true
		logger.Infof("alerts: %s fired token=%s price=%.4f (%s %.4f)",
			a.ID, a.TokenID, price, a.Direction, a.TargetPrice)
		if err := m.notifier.Send(n); err != nil {
			logger.Warnf("alerts: notification failed alert=%s: %v", a.ID, err)
		}
	}

	if changed {
		if err := m.repo.SaveAlerts(ctx, items); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) fetchPrices(ctx context.Context, tokens map[string]struct{}) map[string]float64 {
	prices := make(map[string]float64, len(tokens))
	var mu sync.Mutex

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(priceFetchConcurrency)
	for tokenID := range tokens {
		tokenID := tokenID
		group.Go(func() error {
			price, err := m.quoter.Midpoint(gctx, tokenID)
			if err != nil {
				logger.Warnf("alerts: price fetch failed token=%s err=%v", tokenID, err)
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
