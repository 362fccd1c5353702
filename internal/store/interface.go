package store

import (
	"context"

	"polytrader/internal/alerts"
	"polytrader/internal/clob"
	"polytrader/internal/order"
	"polytrader/internal/risk"
)

// Stable collection keys. The core always reads a full collection, mutates
// it in memory, and writes the full collection back; no partial-record
// updates exist at this layer.
const (
	KeyAlgoOrders     = "algo_orders"
	KeyLimitOrders    = "limit_orders"
	KeyPriceAlerts    = "price_alerts"
	KeyRiskSettings   = "risk_settings"
	KeyDailyLoss      = "daily_loss_tracking"
	KeyPositionsCache = "positions_cache"
)

// Store owns all persisted entities. Collections are whole JSON documents
// under the keys above.
type Store interface {
	LoadAlgoOrders(ctx context.Context) ([]order.AlgoOrder, error)
	SaveAlgoOrders(ctx context.Context, orders []order.AlgoOrder) error

	LoadRestingOrders(ctx context.Context) ([]order.RestingOrder, error)
	SaveRestingOrders(ctx context.Context, orders []order.RestingOrder) error

	LoadAlerts(ctx context.Context) ([]alerts.Alert, error)
	SaveAlerts(ctx context.Context, items []alerts.Alert) error

	RiskSettings(ctx context.Context) (risk.Settings, error)
	SaveRiskSettings(ctx context.Context, s risk.Settings) error
	DeleteRiskSettings(ctx context.Context) error

	LoadLedger(ctx context.Context) (risk.Ledger, error)
	SaveLedger(ctx context.Context, l risk.Ledger) error

	LoadPositionsCache(ctx context.Context) (map[string]clob.Snapshot, error)
	SavePositionsCache(ctx context.Context, entries map[string]clob.Snapshot) error

	Close() error
}
