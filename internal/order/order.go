package order

import (
	"fmt"
	"time"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

type Kind string

const (
	KindTrailingStop Kind = "TRAILING_STOP"
	KindStopLoss     Kind = "STOP_LOSS"
	KindTakeProfit   Kind = "TAKE_PROFIT"
	KindTWAP         Kind = "TWAP"
)

func (k Kind) Valid() bool {
	switch k {
	case KindTrailingStop, KindStopLoss, KindTakeProfit, KindTWAP:
		return true
	}
	return false
}

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusFailed    Status = "FAILED"
)

// Execution is one append-only entry of the order's execution history.
type Execution struct {
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	OrderRef  string    `json:"order_ref,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// RuntimeState carries mutable per-tick strategy state. It survives pauses
// and is only reset when the order is recreated.
type RuntimeState struct {
	HighestPrice   float64     `json:"highest_price,omitempty"`
	LowestPrice    float64     `json:"lowest_price,omitempty"`
	Activated      bool        `json:"activated,omitempty"`
	ExecutedSize   float64     `json:"executed_size"`
	ExecutedSlices int         `json:"executed_slices,omitempty"`
	StartedAt      time.Time   `json:"started_at"`
	Executions     []Execution `json:"executions,omitempty"`
}

// AlgoOrder is a user intent to act automatically on price.
type AlgoOrder struct {
	ID        string       `json:"id"`
	Kind      Kind         `json:"kind"`
	Side      Side         `json:"side"`
	TokenID   string       `json:"token_id"`
	TotalSize float64      `json:"total_size"`
	Status    Status       `json:"status"`
	Params    Params       `json:"params"`
	State     RuntimeState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (o *AlgoOrder) Terminal() bool {
	switch o.Status {
	case StatusCompleted, StatusCancelled, StatusFailed:
		return true
	}
	return false
}

func (o *AlgoOrder) RemainingSize() float64 {
	rem := o.TotalSize - o.State.ExecutedSize
	if rem < 0 {
		return 0
	}
	return rem
}

// Pause moves ACTIVE to PAUSED. Runtime state is retained.
func (o *AlgoOrder) Pause(now time.Time) error {
	if o.Status != StatusActive {
		return fmt.Errorf("order %s: cannot pause from %s", o.ID, o.Status)
	}
	o.Status = StatusPaused
	o.UpdatedAt = now
	return nil
}

// Resume moves PAUSED back to ACTIVE.
func (o *AlgoOrder) Resume(now time.Time) error {
	if o.Status != StatusPaused {
		return fmt.Errorf("order %s: cannot resume from %s", o.ID, o.Status)
	}
	o.Status = StatusActive
	o.UpdatedAt = now
	return nil
}

// Cancel is allowed from ACTIVE and PAUSED only.
func (o *AlgoOrder) Cancel(now time.Time) error {
	if o.Status != StatusActive && o.Status != StatusPaused {
		return fmt.Errorf("order %s: cannot cancel from %s", o.ID, o.Status)
	}
	o.Status = StatusCancelled
	o.UpdatedAt = now
	return nil
}

func (o *AlgoOrder) MarkCompleted(now time.Time) {
	if o.Terminal() {
		return
	}
	o.Status = StatusCompleted
	o.UpdatedAt = now
}

func (o *AlgoOrder) MarkFailed(now time.Time, reason string) {
	if o.Terminal() {
		return
	}
	o.Status = StatusFailed
	o.Error = reason
	o.UpdatedAt = now
}

// RecordExecution appends to the audit history and advances executed size on
// success. ExecutedSize never exceeds TotalSize.
func (o *AlgoOrder) RecordExecution(e Execution) {
	o.State.Executions = append(o.State.Executions, e)
	if e.Success {
		o.State.ExecutedSize += e.Size
		if o.State.ExecutedSize > o.TotalSize {
			o.State.ExecutedSize = o.TotalSize
		}
	}
}
