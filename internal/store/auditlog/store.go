package auditlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"polytrader/internal/order"
)

// Entry is one execution attempt against the exchange, success or failure.
type Entry struct {
	ID        int64
	OrderID   string
	Kind      string
	TokenID   string
	Side      string
	Size      float64
	Price     float64
	OrderRef  string
	Success   bool
	Error     string
	Reason    string
	CreatedAt time.Time
}

// Store keeps the append-only execution audit log in its own sqlite
// database, separate from the live collections.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit log path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS execution_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	token_id TEXT NOT NULL,
	side TEXT NOT NULL,
	size REAL NOT NULL,
	price REAL NOT NULL,
	order_ref TEXT,
	success INTEGER NOT NULL,
	error TEXT,
	reason TEXT,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_execution_log_order ON execution_log(order_id);`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one execution attempt.
func (s *Store) Record(ctx context.Context, o *order.AlgoOrder, e order.Execution) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("audit log not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO execution_log (order_id, kind, token_id, side, size, price, order_ref, success, error, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, string(o.Kind), o.TokenID, string(o.Side),
		e.Size, e.Price, e.OrderRef, e.Success, e.Error, e.Reason, e.Timestamp)
	return err
}

// ListByOrder returns the recorded attempts for one order, oldest first.
func (s *Store) ListByOrder(ctx context.Context, orderID string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("audit log not initialized")
	}
	if limit <= 0 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx, `
SELECT id, order_id, kind, token_id, side, size, price, order_ref, success, error, reason, created_at
FROM execution_log WHERE order_id = ? ORDER BY id ASC LIMIT ?`, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var ref, errMsg, reason sql.NullString
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &e.TokenID, &e.Side, &e.Size,
			&e.Price, &ref, &e.Success, &errMsg, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.OrderRef = ref.String
		e.Error = errMsg.String
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
