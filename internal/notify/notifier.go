package notify

import (
	"time"

	"github.com/google/uuid"

	"polytrader/internal/logger"
)

type Kind string

const (
	KindOrderExecuted      Kind = "ORDER_EXECUTED"
	KindOrderFailed        Kind = "ORDER_FAILED"
	KindTWAPCompleted      Kind = "TWAP_COMPLETED"
	KindRestingOrderFilled Kind = "RESTING_ORDER_FILLED"
	KindPriceAlert         Kind = "PRICE_ALERT"
)

// Notification is one user-visible event. The ID makes later actions
// (snooze/dismiss clicks) attributable to the exact notification that
// triggered them instead of a recency guess.
type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

func New(kind Kind, title, body string) Notification {
	return Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
}

// Notifier delivers notifications to the user. Implementations must not
// block the tick for long; failures are logged by callers, never fatal.
type Notifier interface {
	Send(n Notification) error
}

// LogNotifier writes notifications to the process log. It is the fallback
// sink when no external channel is configured.
type LogNotifier struct{}

func (LogNotifier) Send(n Notification) error {
	logger.Infof("notify[%s] %s: %s", n.Kind, n.Title, n.Body)
	return nil
}
