package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"polytrader/internal/alerts"
	"polytrader/internal/clob"
	"polytrader/internal/order"
	"polytrader/internal/risk"
	"polytrader/internal/store"
	"polytrader/internal/store/model"
)

// SqliteStore persists all collections in one sqlite database, one row per
// stable collection key.
type SqliteStore struct {
	db              *gorm.DB
	defaultSettings risk.Settings
}

func NewSqliteStore(path string, defaults risk.Settings) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return newSqliteStore(db, defaults)
}

// NewSqliteStoreFromDB wraps an existing gorm handle (used by tests with an
// in-memory database).
func NewSqliteStoreFromDB(db *gorm.DB, defaults risk.Settings) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newSqliteStore(db, defaults)
}

func newSqliteStore(db *gorm.DB, defaults risk.Settings) (*SqliteStore, error) {
	if err := db.AutoMigrate(&model.CollectionModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &SqliteStore{db: db, defaultSettings: defaults}, nil
}

var _ store.Store = (*SqliteStore)(nil)

func (s *SqliteStore) loadDoc(ctx context.Context, key string, out any) (bool, error) {
	var rec model.CollectionModel
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(rec.Doc) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rec.Doc, out); err != nil {
		return false, fmt.Errorf("decoding collection %s: %w", key, err)
	}
	return true, nil
}

func (s *SqliteStore) saveDoc(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding collection %s: %w", key, err)
	}
	rec := model.CollectionModel{Key: key, Doc: datatypes.JSON(raw), UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Save(&rec).Error
}

func (s *SqliteStore) LoadAlgoOrders(ctx context.Context) ([]order.AlgoOrder, error) {
	var out []order.AlgoOrder
	if _, err := s.loadDoc(ctx, store.KeyAlgoOrders, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SqliteStore) SaveAlgoOrders(ctx context.Context, orders []order.AlgoOrder) error {
	return s.saveDoc(ctx, store.KeyAlgoOrders, orders)
}

func (s *SqliteStore) LoadRestingOrders(ctx context.Context) ([]order.RestingOrder, error) {
	var out []order.RestingOrder
	if _, err := s.loadDoc(ctx, store.KeyLimitOrders, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SqliteStore) SaveRestingOrders(ctx context.Context, orders []order.RestingOrder) error {
	return s.saveDoc(ctx, store.KeyLimitOrders, orders)
}

func (s *SqliteStore) LoadAlerts(ctx context.Context) ([]alerts.Alert, error) {
	var out []alerts.Alert
	if _, err := s.loadDoc(ctx, store.KeyPriceAlerts, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SqliteStore) SaveAlerts(ctx context.Context, items []alerts.Alert) error {
	return s.saveDoc(ctx, store.KeyPriceAlerts, items)
}

// RiskSettings returns the stored settings, or the configured defaults when
// none were ever saved.
func (s *SqliteStore) RiskSettings(ctx context.Context) (risk.Settings, error) {
	var out risk.Settings
	found, err := s.loadDoc(ctx, store.KeyRiskSettings, &out)
	if err != nil {
		return risk.Settings{}, err
	}
	if !found {
		return s.defaultSettings, nil
	}
	return out, nil
}

func (s *SqliteStore) SaveRiskSettings(ctx context.Context, settings risk.Settings) error {
	return s.saveDoc(ctx, store.KeyRiskSettings, settings)
}

// DeleteRiskSettings drops the stored row, reverting reads to defaults.
func (s *SqliteStore) DeleteRiskSettings(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Delete(&model.CollectionModel{}, "key = ?", store.KeyRiskSettings).Error
}

func (s *SqliteStore) LoadLedger(ctx context.Context) (risk.Ledger, error) {
	var out risk.Ledger
	if _, err := s.loadDoc(ctx, store.KeyDailyLoss, &out); err != nil {
		return risk.Ledger{}, err
	}
	return out, nil
}

func (s *SqliteStore) SaveLedger(ctx context.Context, l risk.Ledger) error {
	return s.saveDoc(ctx, store.KeyDailyLoss, l)
}

func (s *SqliteStore) LoadPositionsCache(ctx context.Context) (map[string]clob.Snapshot, error) {
	out := make(map[string]clob.Snapshot)
	if _, err := s.loadDoc(ctx, store.KeyPositionsCache, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SqliteStore) SavePositionsCache(ctx context.Context, entries map[string]clob.Snapshot) error {
	return s.saveDoc(ctx, store.KeyPositionsCache, entries)
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
