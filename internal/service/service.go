package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"polytrader/internal/alerts"
	"polytrader/internal/clob"
	"polytrader/internal/engine"
	"polytrader/internal/logger"
	"polytrader/internal/order"
	"polytrader/internal/positions"
	"polytrader/internal/risk"
	"polytrader/internal/store"
	"polytrader/internal/store/auditlog"
)

// ErrNotFound marks lookups of ids that do not exist in their collection.
var ErrNotFound = errors.New("not found")

// ExecutionLog is the read side of the execution audit trail.
type ExecutionLog interface {
	ListByOrder(ctx context.Context, orderID string, limit int) ([]auditlog.Entry, error)
}

// Service is the command surface behind the HTTP transport. All collection
// mutations here are read-modify-write of whole documents, serialized by one
// lock so concurrent commands cannot lose each other's writes. When the lock
// is shared with the tick engine (WithGate), commands landing mid-tick queue
// behind the tick's batched save instead of being reverted by it.
type Service struct {
	store     store.Store
	session   *engine.Session
	cache     *positions.Cache
	validator engine.Validator
	execLog   ExecutionLog
	nowFn     func() time.Time

	mu sync.Locker
}

type Option func(*Service)

// WithGate shares the write lock with the tick engine.
func WithGate(gate sync.Locker) Option {
	return func(s *Service) {
		if gate != nil {
			s.mu = gate
		}
	}
}

// WithExecutionLog wires the audit trail read endpoint.
func WithExecutionLog(l ExecutionLog) Option {
	return func(s *Service) { s.execLog = l }
}

func New(st store.Store, session *engine.Session, cache *positions.Cache, validator engine.Validator, opts ...Option) *Service {
	s := &Service{
		store:     st,
		session:   session,
		cache:     cache,
		validator: validator,
		nowFn:     time.Now,
		mu:        &sync.Mutex{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetNowFunc overrides the clock for tests.
func (s *Service) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// ---- algorithmic orders ----

// CreateAlgoOrderInput is the request payload for a new algorithmic order.
// Params is validated against the kind's JSON schema.
type CreateAlgoOrderInput struct {
	Kind    order.Kind     `json:"kind"`
	Side    order.Side     `json:"side"`
	TokenID string         `json:"token_id"`
	Size    float64        `json:"size"`
	Params  map[string]any `json:"params"`
}

func (s *Service) CreateAlgoOrder(ctx context.Context, in CreateAlgoOrderInput) (*order.AlgoOrder, error) {
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("invalid kind %q", in.Kind)
	}
	if !in.Side.Valid() {
		return nil, fmt.Errorf("invalid side %q", in.Side)
	}
	if strings.TrimSpace(in.TokenID) == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %.4f", in.Size)
	}
	params, err := decodeParams(in.Kind, in.Params)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	o := order.AlgoOrder{
		ID:        uuid.NewString(),
		Kind:      in.Kind,
		Side:      in.Side,
		TokenID:   strings.TrimSpace(in.TokenID),
		TotalSize: in.Size,
		Status:    order.StatusActive,
		Params:    params,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadAlgoOrders(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, o)
	if err := s.store.SaveAlgoOrders(ctx, all); err != nil {
		return nil, err
	}
	logger.Infof("service: created %s order %s (%s %.4f %s)", o.Kind, o.ID, o.Side, o.TotalSize, o.TokenID)
	return &o, nil
}

// ListAlgoOrders returns orders, optionally filtered by status.
func (s *Service) ListAlgoOrders(ctx context.Context, status order.Status) ([]order.AlgoOrder, error) {
	all, err := s.store.LoadAlgoOrders(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return all, nil
	}
	out := make([]order.AlgoOrder, 0, len(all))
	for _, o := range all {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Service) GetAlgoOrder(ctx context.Context, id string) (*order.AlgoOrder, error) {
	all, err := s.store.LoadAlgoOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

// OrderExecutions returns the recorded execution attempts for one order,
// oldest first. Without an audit log the order's own history serves.
func (s *Service) OrderExecutions(ctx context.Context, id string, limit int) ([]auditlog.Entry, error) {
	o, err := s.GetAlgoOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.execLog != nil {
		return s.execLog.ListByOrder(ctx, id, limit)
	}
	out := make([]auditlog.Entry, 0, len(o.State.Executions))
	for _, e := range o.State.Executions {
		out = append(out, auditlog.Entry{
			OrderID:   o.ID,
			Kind:      string(o.Kind),
			TokenID:   o.TokenID,
			Side:      string(o.Side),
			Size:      e.Size,
			Price:     e.Price,
			OrderRef:  e.OrderRef,
			Success:   e.Success,
			Error:     e.Error,
			Reason:    e.Reason,
			CreatedAt: e.Timestamp,
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Service) PauseAlgoOrder(ctx context.Context, id string) (*order.AlgoOrder, error) {
	return s.transitionAlgoOrder(ctx, id, (*order.AlgoOrder).Pause)
}

func (s *Service) ResumeAlgoOrder(ctx context.Context, id string) (*order.AlgoOrder, error) {
	return s.transitionAlgoOrder(ctx, id, (*order.AlgoOrder).Resume)
}

func (s *Service) CancelAlgoOrder(ctx context.Context, id string) (*order.AlgoOrder, error) {
	return s.transitionAlgoOrder(ctx, id, (*order.AlgoOrder).Cancel)
}

func (s *Service) transitionAlgoOrder(ctx context.Context, id string, fn func(*order.AlgoOrder, time.Time) error) (*order.AlgoOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadAlgoOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if err := fn(&all[i], s.nowFn()); err != nil {
			return nil, err
		}
		if err := s.store.SaveAlgoOrders(ctx, all); err != nil {
			return nil, err
		}
		return &all[i], nil
	}
	return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

// ---- resting limit orders ----

type CreateRestingOrderInput struct {
	TokenID    string     `json:"token_id"`
	Side       order.Side `json:"side"`
	Size       float64    `json:"size"`
	LimitPrice float64    `json:"limit_price"`
	Override   bool       `json:"override,omitempty"`
}

// CreateRestingOrder validates, submits the limit order to the exchange, and
// tracks it locally as PENDING for the reconciler.
func (s *Service) CreateRestingOrder(ctx context.Context, in CreateRestingOrderInput) (*order.RestingOrder, error) {
	if !in.Side.Valid() {
		return nil, fmt.Errorf("invalid side %q", in.Side)
	}
	if strings.TrimSpace(in.TokenID) == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	if in.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %.4f", in.Size)
	}
	if in.LimitPrice <= 0 || in.LimitPrice >= 1 {
		return nil, fmt.Errorf("limit_price must be in (0,1), got %.4f", in.LimitPrice)
	}
	if err := s.session.Ready(); err != nil {
		return nil, err
	}

	if s.validator != nil {
		res := s.validator.Validate(ctx, risk.Request{
			TokenID:  in.TokenID,
			Side:     in.Side,
			Size:     in.Size,
			Price:    in.LimitPrice,
			Override: in.Override,
		})
		for _, w := range res.Warnings {
			logger.Warnf("service: risk warning: %s", w)
		}
		if !res.Allowed {
			return nil, fmt.Errorf("risk check rejected: %s", strings.Join(res.Errors, "; "))
		}
	}

	result, err := s.session.Client.SubmitOrder(ctx, clob.OrderRequest{
		TokenID: in.TokenID,
		Side:    in.Side,
		Size:    in.Size,
		Price:   in.LimitPrice,
	})
	if err != nil {
		return nil, fmt.Errorf("submitting limit order: %w", err)
	}
	if !result.Success {
		return nil, fmt.Errorf("exchange rejected limit order: %s", result.Error)
	}

	now := s.nowFn()
	r := order.RestingOrder{
		ID:         uuid.NewString(),
		TokenID:    strings.TrimSpace(in.TokenID),
		Side:       in.Side,
		Size:       in.Size,
		LimitPrice: in.LimitPrice,
		Status:     order.RestingPending,
		OrderRef:   result.OrderRef,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadRestingOrders(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, r)
	if err := s.store.SaveRestingOrders(ctx, all); err != nil {
		return nil, err
	}
	logger.Infof("service: resting order %s placed (%s %.4f %s @ %.4f, ref=%s)",
		r.ID, r.Side, r.Size, r.TokenID, r.LimitPrice, r.OrderRef)
	return &r, nil
}

func (s *Service) ListRestingOrders(ctx context.Context) ([]order.RestingOrder, error) {
	return s.store.LoadRestingOrders(ctx)
}

// CancelRestingOrder cancels on the exchange first; the local record turns
// CANCELLED only after the exchange confirms.
func (s *Service) CancelRestingOrder(ctx context.Context, id string) (*order.RestingOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadRestingOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		r := &all[i]
		if r.ID != id {
			continue
		}
		if r.Terminal() {
			return nil, fmt.Errorf("order %s: cannot cancel from %s", id, r.Status)
		}
		if r.OrderRef != "" {
			if err := s.session.Client.CancelOrder(ctx, r.OrderRef); err != nil {
				return nil, fmt.Errorf("cancelling on exchange: %w", err)
			}
		}
		r.Status = order.RestingCancelled
		r.UpdatedAt = s.nowFn()
		if err := s.store.SaveRestingOrders(ctx, all); err != nil {
			return nil, err
		}
		return r, nil
	}
	return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
}

// DeleteRestingOrder removes a terminal record from the collection.
func (s *Service) DeleteRestingOrder(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadRestingOrders(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if !all[i].Terminal() {
			return fmt.Errorf("order %s is still %s; cancel it first", id, all[i].Status)
		}
		all = append(all[:i], all[i+1:]...)
		return s.store.SaveRestingOrders(ctx, all)
	}
	return fmt.Errorf("order %s: %w", id, ErrNotFound)
}

// ---- price alerts ----

type CreateAlertInput struct {
	TokenID     string           `json:"token_id"`
	Direction   alerts.Direction `json:"direction"`
	TargetPrice float64          `json:"target_price"`
}

func (s *Service) CreateAlert(ctx context.Context, in CreateAlertInput) (*alerts.Alert, error) {
	if !in.Direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", in.Direction)
	}
	if strings.TrimSpace(in.TokenID) == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	if in.TargetPrice <= 0 || in.TargetPrice >= 1 {
		return nil, fmt.Errorf("target_price must be in (0,1), got %.4f", in.TargetPrice)
	}

	now := s.nowFn()
	a := alerts.Alert{
		ID:          uuid.NewString(),
		TokenID:     strings.TrimSpace(in.TokenID),
		Direction:   in.Direction,
		TargetPrice: in.TargetPrice,
		Status:      alerts.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadAlerts(ctx)
	if err != nil {
		return nil, err
	}
	all = append(all, a)
	if err := s.store.SaveAlerts(ctx, all); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) ListAlerts(ctx context.Context) ([]alerts.Alert, error) {
	return s.store.LoadAlerts(ctx)
}

// UpdateAlertInput carries a partial alert update; nil fields keep the
// current value.
type UpdateAlertInput struct {
	Direction   *alerts.Direction `json:"direction,omitempty"`
	TargetPrice *float64          `json:"target_price,omitempty"`
}

func (s *Service) UpdateAlert(ctx context.Context, id string, in UpdateAlertInput) (*alerts.Alert, error) {
	if in.Direction != nil && !in.Direction.Valid() {
		return nil, fmt.Errorf("invalid direction %q", *in.Direction)
	}
	if in.TargetPrice != nil && (*in.TargetPrice <= 0 || *in.TargetPrice >= 1) {
		return nil, fmt.Errorf("target_price must be in (0,1), got %.4f", *in.TargetPrice)
	}
	return s.transitionAlert(ctx, id, func(a *alerts.Alert, now time.Time) error {
		if a.Status == alerts.StatusDismissed {
			return fmt.Errorf("alert %s: cannot update a dismissed alert", a.ID)
		}
		if in.Direction != nil {
			a.Direction = *in.Direction
		}
		if in.TargetPrice != nil {
			a.TargetPrice = *in.TargetPrice
		}
		a.UpdatedAt = now
		return nil
	})
}

// SnoozeAlert silences an alert for the given duration from now.
func (s *Service) SnoozeAlert(ctx context.Context, id string, d time.Duration) (*alerts.Alert, error) {
	if d <= 0 {
		return nil, fmt.Errorf("snooze duration must be positive")
	}
	return s.transitionAlert(ctx, id, func(a *alerts.Alert, now time.Time) error {
		return a.Snooze(now.Add(d), now)
	})
}

func (s *Service) DismissAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	return s.transitionAlert(ctx, id, func(a *alerts.Alert, now time.Time) error {
		a.Dismiss(now)
		return nil
	})
}

func (s *Service) RearmAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	return s.transitionAlert(ctx, id, (*alerts.Alert).Rearm)
}

func (s *Service) DeleteAlert(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadAlerts(ctx)
	if err != nil {
		return err
	}
	for i := range all {
		if all[i].ID == id {
			all = append(all[:i], all[i+1:]...)
			return s.store.SaveAlerts(ctx, all)
		}
	}
	return fmt.Errorf("alert %s: %w", id, ErrNotFound)
}

func (s *Service) transitionAlert(ctx context.Context, id string, fn func(*alerts.Alert, time.Time) error) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.store.LoadAlerts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID != id {
			continue
		}
		if err := fn(&all[i], s.nowFn()); err != nil {
			return nil, err
		}
		if err := s.store.SaveAlerts(ctx, all); err != nil {
			return nil, err
		}
		return &all[i], nil
	}
	return nil, fmt.Errorf("alert %s: %w", id, ErrNotFound)
}

// ---- risk settings ----

func (s *Service) RiskSettings(ctx context.Context) (risk.Settings, error) {
	return s.store.RiskSettings(ctx)
}

type UpdateRiskSettingsInput struct {
	MaxPositionValuePerToken *float64 `json:"max_position_value_per_token,omitempty"`
	MaxDailyLoss             *float64 `json:"max_daily_loss,omitempty"`
	MaxTotalExposure         *float64 `json:"max_total_exposure,omitempty"`
	Enabled                  *bool    `json:"enabled,omitempty"`
}

// UpdateRiskSettings applies a partial update; absent fields keep their
// current values.
func (s *Service) UpdateRiskSettings(ctx context.Context, in UpdateRiskSettingsInput) (risk.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.store.RiskSettings(ctx)
	if err != nil {
		return risk.Settings{}, err
	}
	if in.MaxPositionValuePerToken != nil {
		if *in.MaxPositionValuePerToken < 0 {
			return risk.Settings{}, fmt.Errorf("max_position_value_per_token cannot be negative")
		}
		settings.MaxPositionValuePerToken = *in.MaxPositionValuePerToken
	}
	if in.MaxDailyLoss != nil {
		if *in.MaxDailyLoss < 0 {
			return risk.Settings{}, fmt.Errorf("max_daily_loss cannot be negative")
		}
		settings.MaxDailyLoss = *in.MaxDailyLoss
	}
	if in.MaxTotalExposure != nil {
		if *in.MaxTotalExposure < 0 {
			return risk.Settings{}, fmt.Errorf("max_total_exposure cannot be negative")
		}
		settings.MaxTotalExposure = *in.MaxTotalExposure
	}
	if in.Enabled != nil {
		settings.Enabled = *in.Enabled
	}
	settings.UpdatedAt = s.nowFn()
	if err := s.store.SaveRiskSettings(ctx, settings); err != nil {
		return risk.Settings{}, err
	}
	logger.Infof("service: risk settings updated enabled=%t", settings.Enabled)
	return settings, nil
}

// ResetRiskSettings reverts to configured defaults.
func (s *Service) ResetRiskSettings(ctx context.Context) (risk.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.DeleteRiskSettings(ctx); err != nil {
		return risk.Settings{}, err
	}
	return s.store.RiskSettings(ctx)
}

// ---- positions ----

func (s *Service) Positions(ctx context.Context) (clob.Snapshot, error) {
	if s.cache == nil {
		return clob.Snapshot{}, fmt.Errorf("positions cache unavailable")
	}
	return s.cache.Get(ctx, s.session.Owner)
}

// RefreshPositions bypasses the freshness window.
func (s *Service) RefreshPositions(ctx context.Context) (clob.Snapshot, error) {
	if s.cache == nil {
		return clob.Snapshot{}, fmt.Errorf("positions cache unavailable")
	}
	return s.cache.ForceRefresh(ctx, s.session.Owner)
}
