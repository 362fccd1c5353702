package order

import "time"

type RestingStatus string

const (
	RestingPending   RestingStatus = "PENDING"
	RestingFilled    RestingStatus = "FILLED"
	RestingCancelled RestingStatus = "CANCELLED"
	RestingFailed    RestingStatus = "FAILED"
)

// RestingOrder is a maker order placed directly by the user and tracked
// locally, outside the exchange's own bookkeeping. Only PENDING orders are
// subject to reconciliation.
type RestingOrder struct {
	ID         string        `json:"id"`
	TokenID    string        `json:"token_id"`
	Side       Side          `json:"side"`
	Size       float64       `json:"size"`
	LimitPrice float64       `json:"limit_price"`
	Status     RestingStatus `json:"status"`
	OrderRef   string        `json:"order_ref,omitempty"`
	FillPrice  float64       `json:"fill_price,omitempty"`
	FilledAt   *time.Time    `json:"filled_at,omitempty"`
	// FillInferred marks fills deduced from the order disappearing from the
	// exchange's open set. The exchange does not expose enough state to tell
	// a fill from an external cancel at this layer, so the fill price is the
	// resting limit price, not an observed trade price.
	FillInferred bool      `json:"fill_inferred,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *RestingOrder) Terminal() bool {
	return r.Status != RestingPending
}
