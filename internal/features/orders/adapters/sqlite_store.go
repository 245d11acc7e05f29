package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lotus-reconciler/internal/features/orders/domain"
	"lotus-reconciler/internal/features/orders/ports"

	"github.com/mattn/go-sqlite3"
)

// schema is applied on every open; the store is self-migrating so the
// subsystem deploys without a separate migration step.
const schema = `
CREATE TABLE IF NOT EXISTS external_orders (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	local_order_id INTEGER NOT NULL UNIQUE,
	external_order_id INTEGER,
	status TEXT NOT NULL,
	content TEXT,
	last_checked_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_external_orders_pending ON external_orders(status, updated_at);
`

// statement timeout per store call.
const stmtTimeout = 3 * time.Second

// SQLiteStore implements ports.OrderStore on a local SQLite file, independent
// of the main application database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the store file and ensures the schema
// exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = "external_orders.db"
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open order store: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate order store: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// FindByLocalOrderID fetches a row by local order id, nil when absent.
func (s *SQLiteStore) FindByLocalOrderID(ctx context.Context, localOrderID int64) (*domain.ExternalOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT local_order_id, external_order_id, status, content, last_checked_at, created_at, updated_at
		 FROM external_orders WHERE local_order_id = ?`, localOrderID)

	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return order, nil
}

// Insert creates a new row. The UNIQUE constraint on local_order_id turns a
// concurrent double-placement into ports.ErrDuplicateLocalOrder for the loser.
func (s *SQLiteStore) Insert(ctx context.Context, order *domain.ExternalOrder) error {
	if order == nil {
		return errors.New("order is nil")
	}
	if order.Status == "" {
		order.Status = domain.OrderStatusPending
	}

	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO external_orders (local_order_id, external_order_id, status, content) VALUES (?, ?, ?, ?)`,
		order.LocalOrderID, order.ExternalOrderID, string(order.Status), nullableString(order.Content))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ports.ErrDuplicateLocalOrder
		}
		return fmt.Errorf("failed to insert order %d: %w", order.LocalOrderID, err)
	}
	return nil
}

// UpdateStatusContent overwrites status and content and bumps updated_at.
func (s *SQLiteStore) UpdateStatusContent(ctx context.Context, localOrderID int64, status domain.OrderStatus, content string) error {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE external_orders SET status = ?, content = ?, updated_at = CURRENT_TIMESTAMP WHERE local_order_id = ?`,
		string(status), nullableString(content), localOrderID)
	if err != nil {
		return fmt.Errorf("failed to update order %d: %w", localOrderID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// TouchCheckedAt records a poll attempt. It deliberately leaves updated_at
// alone so the pending scan order only rotates on real status writes.
func (s *SQLiteStore) TouchCheckedAt(ctx context.Context, localOrderID int64) error {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx,
		`UPDATE external_orders SET last_checked_at = CURRENT_TIMESTAMP WHERE local_order_id = ?`, localOrderID)
	if err != nil {
		return fmt.Errorf("failed to touch order %d: %w", localOrderID, err)
	}
	return nil
}

// FindPending returns up to limit pending rows, oldest updated_at first.
func (s *SQLiteStore) FindPending(ctx context.Context, limit int) ([]domain.ExternalOrder, error) {
	ctx, cancel := context.WithTimeout(ctx, stmtTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT local_order_id, external_order_id, status, content, last_checked_at, created_at, updated_at
		 FROM external_orders WHERE status = ? ORDER BY updated_at ASC, id ASC LIMIT ?`,
		string(domain.OrderStatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.ExternalOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanOrder.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanOrder maps one result row to the domain entity.
func scanOrder(row scanner) (*domain.ExternalOrder, error) {
	var o domain.ExternalOrder
	var status string
	var externalID sql.NullInt64
	var content sql.NullString
	var lastChecked sql.NullTime

	if err := row.Scan(&o.LocalOrderID, &externalID, &status, &content, &lastChecked, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}

	o.Status = domain.OrderStatus(status)
	if externalID.Valid {
		o.ExternalOrderID = externalID.Int64
	}
	if content.Valid {
		o.Content = content.String
	}
	if lastChecked.Valid {
		t := lastChecked.Time
		o.LastCheckedAt = &t
	}
	return &o, nil
}

// nullableString maps "" to NULL so optional columns stay NULL until set.
func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
