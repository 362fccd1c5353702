package risk

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polytrader/internal/order"
)

type stubSettings struct {
	s   Settings
	err error
}

func (s stubSettings) RiskSettings(context.Context) (Settings, error) { return s.s, s.err }

type stubLoss struct {
	loss float64
	err  error
}

func (s stubLoss) TodayLoss(context.Context) (float64, error) { return s.loss, s.err }

type stubExposure struct {
	value float64
	err   error
}

func (s stubExposure) TotalHoldingsValue(context.Context) (float64, error) { return s.value, s.err }

func enabledSettings() Settings {
	return Settings{
		MaxPositionValuePerToken: 100,
		MaxDailyLoss:             500,
		MaxTotalExposure:         1000,
		Enabled:                  true,
	}
}

func buyReq(size, price float64) Request {
	return Request{TokenID: "tok-yes", Side: order.SideBuy, Size: size, Price: price}
}

func TestSellAlwaysPasses(t *testing.T) {
	v := NewValidator(stubSettings{err: fmt.Errorf("boom")}, nil, nil)
	res := v.Validate(context.Background(), Request{Side: order.SideSell, Size: 1e9, Price: 1})
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestPositionCapRejectsBuy(t *testing.T) {
	v := NewValidator(stubSettings{s: enabledSettings()}, stubLoss{}, stubExposure{})

	res := v.Validate(context.Background(), buyReq(300, 0.50))
	require.False(t, res.Allowed)
	assert.Contains(t, res.Errors[0], "position cap")

	res = v.Validate(context.Background(), buyReq(100, 0.50))
	assert.True(t, res.Allowed)
}

func TestRejectionTransience(t *testing.T) {
	// The per-token cap cannot clear by waiting: not transient.
	v := NewValidator(stubSettings{s: enabledSettings()}, stubLoss{}, stubExposure{})
	res := v.Validate(context.Background(), buyReq(300, 0.50))
	require.False(t, res.Allowed)
	assert.False(t, res.Transient)

	// The daily loss cap resets at UTC midnight: transient.
	v = NewValidator(stubSettings{s: enabledSettings()}, stubLoss{loss: 500}, stubExposure{})
	res = v.Validate(context.Background(), buyReq(10, 0.50))
	require.False(t, res.Allowed)
	assert.True(t, res.Transient)

	// Exposure moves with holdings: transient.
	v = NewValidator(stubSettings{s: enabledSettings()}, stubLoss{}, stubExposure{value: 990})
	res = v.Validate(context.Background(), buyReq(100, 0.50))
	require.False(t, res.Allowed)
	assert.True(t, res.Transient)

	// A static cause alongside a transient one keeps the rejection final.
	v = NewValidator(stubSettings{s: enabledSettings()}, stubLoss{loss: 500}, stubExposure{})
	res = v.Validate(context.Background(), buyReq(300, 0.50))
	require.False(t, res.Allowed)
	assert.False(t, res.Transient)
}

func TestDisabledChecksPass(t *testing.T) {
	s := enabledSettings()
	s.Enabled = false
	v := NewValidator(stubSettings{s: s}, stubLoss{}, stubExposure{})

	res := v.Validate(context.Background(), buyReq(10000, 0.50))
	assert.True(t, res.Allowed)
	assert.Empty(t, res.Errors)
}

func TestOverridePassesWithAuditWarning(t *testing.T) {
	v := NewValidator(stubSettings{s: enabledSettings()}, stubLoss{}, stubExposure{})

	req := buyReq(10000, 0.50)
	req.Override = true
	res := v.Validate(context.Background(), req)
	assert.True(t, res.Allowed)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "overridden")
}

func TestDailyLossCap(t *testing.T) {
	// At $480 of a $500 cap: allowed with a warning.
	v := NewValidator(stubSettings{s: enabledSettings()}, stubLoss{loss: 480}, stubExposure{})
	res := v.Validate(context.Background(), buyReq(10, 0.50))
	assert.True(t, res.Allowed)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "96% of cap")

	// At $500 exactly: rejected.
	v = NewValidator(stubSettings{s: enabledSettings()}, stubLoss{loss: 500}, stubExposure{})
	res = v.Validate(context.Background(), buyReq(10, 0.50))
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Errors[0], "daily loss cap")
}

func TestExposureCap(t *testing.T) {
	v := NewValidator(stubSettings{s: enabledSettings()}, stubLoss{}, stubExposure{value: 980})
	res := v.Validate(context.Background(), buyReq(100, 0.50))
	assert.False(t, res.Allowed)
	assert.Contains(t, res.Errors[0], "exposure")

	// 90% warn band: 850 held + 50 proposed = 900 of 1000.
	v = NewValidator(stubSettings{s: enabledSettings()}, stubLoss{}, stubExposure{value: 850})
	res = v.Validate(context.Background(), buyReq(100, 0.50))
	assert.True(t, res.Allowed)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "90% of cap")
}

func TestUnavailableDataSkipsCheckNotTrading(t *testing.T) {
	v := NewValidator(
		stubSettings{s: enabledSettings()},
		stubLoss{err: fmt.Errorf("store down")},
		stubExposure{err: fmt.Errorf("fetch failed")},
	)
	res := v.Validate(context.Background(), buyReq(10, 0.50))
	assert.True(t, res.Allowed)
	assert.Len(t, res.Warnings, 2)
}

type memLedgerRepo struct {
	led Ledger
	err error
}

func (m *memLedgerRepo) LoadLedger(context.Context) (Ledger, error) { return m.led, m.err }
func (m *memLedgerRepo) SaveLedger(_ context.Context, l Ledger) error {
	m.led = l
	return nil
}

func TestLedgerRollsOverOnNewDay(t *testing.T) {
	repo := &memLedgerRepo{led: Ledger{Date: "2026-08-27", RealizedLoss: 120}}
	tr := NewTracker(repo)
	tr.SetNowFunc(func() time.Time {
		return time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	})

	led, err := tr.Today(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2026-08-28", led.Date)
	assert.Zero(t, led.RealizedLoss)

	require.NoError(t, tr.RecordLoss(context.Background(), LossEntry{TokenID: "tok", Loss: 30}))
	assert.Equal(t, "2026-08-28", repo.led.Date)
	assert.Equal(t, 30.0, repo.led.RealizedLoss)
	assert.Len(t, repo.led.Trades, 1)
}

func TestLedgerAccumulatesSameDay(t *testing.T) {
	repo := &memLedgerRepo{}
	tr := NewTracker(repo)

	require.NoError(t, tr.RecordLoss(context.Background(), LossEntry{Loss: 10.10}))
	require.NoError(t, tr.RecordLoss(context.Background(), LossEntry{Loss: 20.20}))
	assert.InDelta(t, 30.30, repo.led.RealizedLoss, 1e-9)

	// Gains never enter the ledger.
	require.NoError(t, tr.RecordLoss(context.Background(), LossEntry{Loss: -5}))
	assert.Len(t, repo.led.Trades, 2)
}
