package clob

import (
	"context"
	"time"

	"polytrader/internal/order"
)

// PriceSide selects which side of the book a best-price quote comes from.
type PriceSide string

const (
	PriceSideBuy  PriceSide = "BUY"
	PriceSideSell PriceSide = "SELL"
)

// OpenOrder is one entry of the exchange's open-order set.
type OpenOrder struct {
	OrderRef  string  `json:"id"`
	TokenID   string  `json:"asset_id"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"original_size"`
	Remaining float64 `json:"size_matched"`
}

// OrderRequest describes a submission. Price is optional: zero means a
// marketable order at the current best price.
type OrderRequest struct {
	TokenID string
	Side    order.Side
	Size    float64
	Price   float64
}

// OrderResult is the exchange's answer to a submission.
type OrderResult struct {
	Success  bool   `json:"success"`
	OrderRef string `json:"orderID"`
	Error    string `json:"errorMsg,omitempty"`
}

// Position is one holding of the trading identity.
type Position struct {
	TokenID  string  `json:"asset"`
	Market   string  `json:"market"`
	Outcome  string  `json:"outcome"`
	Size     float64 `json:"size"`
	AvgPrice float64 `json:"avg_price"`
	CurPrice float64 `json:"cur_price"`
	Value    float64 `json:"current_value"`
}

// Snapshot is a point-in-time view of one owner's holdings.
type Snapshot struct {
	Owner     string     `json:"owner"`
	Positions []Position `json:"positions"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// TotalValue sums current position values.
func (s Snapshot) TotalValue() float64 {
	total := 0.0
	for _, p := range s.Positions {
		total += p.Value
	}
	return total
}

// Client is the exchange trading surface the engine depends on. The
// concrete implementation signs nothing here: credentials and signatures
// live behind the exchange gateway.
type Client interface {
	BestPrice(ctx context.Context, tokenID string, side PriceSide) (float64, error)
	Midpoint(ctx context.Context, tokenID string) (float64, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	CancelOrder(ctx context.Context, orderRef string) error
	Positions(ctx context.Context, owner string) ([]Position, error)
}
