package alerts

import (
	"fmt"
	"time"
)

type Direction string

const (
	DirectionAbove Direction = "ABOVE"
	DirectionBelow Direction = "BELOW"
)

func (d Direction) Valid() bool { return d == DirectionAbove || d == DirectionBelow }

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSnoozed   Status = "SNOOZED"
	StatusTriggered Status = "TRIGGERED"
	StatusDismissed Status = "DISMISSED"
)

// TriggerRecord is one audit entry of a firing, keyed back to the
// notification that carried it.
type TriggerRecord struct {
	Price          float64   `json:"price"`
	TriggeredAt    time.Time `json:"triggered_at"`
	NotificationID string    `json:"notification_id"`
}

// Alert is a price-threshold watch. A TRIGGERED alert is excluded from
// evaluation until dismissed or re-armed; a SNOOZED alert until its snooze
// expiry passes.
type Alert struct {
	ID           string          `json:"id"`
	TokenID      string          `json:"token_id"`
	Direction    Direction       `json:"direction"`
	TargetPrice  float64         `json:"target_price"`
	Status       Status          `json:"status"`
	SnoozedUntil *time.Time      `json:"snoozed_until,omitempty"`
	History      []TriggerRecord `json:"history,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Evaluable reports whether the alert should be compared against price this
// tick.
func (a *Alert) Evaluable(now time.Time) bool {
	switch a.Status {
	case StatusActive:
		return true
	case StatusSnoozed:
		return a.SnoozedUntil != nil && !now.Before(*a.SnoozedUntil)
	}
	return false
}

// Hit applies the side-aware inequality: ABOVE fires at price >= target,
// BELOW at price <= target.
func (a *Alert) Hit(price float64) bool {
	if a.Direction == DirectionAbove {
		return price >= a.TargetPrice
	}
	return price <= a.TargetPrice
}

// Trigger transitions ACTIVE/SNOOZED to TRIGGERED and appends the audit
// record.
func (a *Alert) Trigger(price float64, notificationID string, now time.Time) {
	a.Status = StatusTriggered
	a.SnoozedUntil = nil
	a.History = append(a.History, TriggerRecord{
		Price:          price,
		TriggeredAt:    now,
		NotificationID: notificationID,
	})
	a.UpdatedAt = now
}

// Snooze silences the alert until the given expiry.
func (a *Alert) Snooze(until time.Time, now time.Time) error {
	if a.Status == StatusDismissed {
		return fmt.Errorf("alert %s: cannot snooze a dismissed alert", a.ID)
	}
	a.Status = StatusSnoozed
	a.SnoozedUntil = &until
	a.UpdatedAt = now
	return nil
}

// Dismiss retires the alert permanently.
func (a *Alert) Dismiss(now time.Time) {
	a.Status = StatusDismissed
	a.SnoozedUntil = nil
	a.UpdatedAt = now
}

// Rearm returns a triggered or snoozed alert to ACTIVE.
func (a *Alert) Rearm(now time.Time) error {
	if a.Status == StatusDismissed {
		return fmt.Errorf("alert %s: cannot re-arm a dismissed alert", a.ID)
	}
	a.Status = StatusActive
	a.SnoozedUntil = nil
	a.UpdatedAt = now
	return nil
}
