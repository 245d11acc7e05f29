package ports

import (
	"context"
	"errors"

	ordersdomain "lotus-reconciler/internal/features/orders/domain"
	providerdomain "lotus-reconciler/internal/features/provider/domain"
)

// ErrDuplicateLocalOrder is returned by OrderStore.Insert when a row with the
// same local order id already exists. The unique constraint backing it is the
// atomic guarantee behind placement idempotency under concurrent callers.
var ErrDuplicateLocalOrder = errors.New("local order id already exists")

// ProviderGateway is the slice of the upstream API the reconciliation engine
// needs. This is a Secondary Port (Driven Port).
type ProviderGateway interface {
	// CreateOrder places an order upstream and returns the provider receipt.
	CreateOrder(ctx context.Context, productID int64, note string) (*providerdomain.Order, error)
	// GetOrder re-queries the current state of a provider order.
	GetOrder(ctx context.Context, orderID int64) (*providerdomain.Order, error)
}

// OrderStore is the durable, idempotent bookkeeping of externally placed
// orders. Implementations must enforce uniqueness of the local order id.
type OrderStore interface {
	// FindByLocalOrderID returns the row for the given local order id, or
	// nil when absent. This is the idempotency gate for placement.
	FindByLocalOrderID(ctx context.Context, localOrderID int64) (*ordersdomain.ExternalOrder, error)

	// Insert creates a new row. Returns ErrDuplicateLocalOrder when the
	// local order id is already present.
	Insert(ctx context.Context, order *ordersdomain.ExternalOrder) error

	// UpdateStatusContent overwrites status and content and bumps updated_at.
	UpdateStatusContent(ctx context.Context, localOrderID int64, status ordersdomain.OrderStatus, content string) error

	// TouchCheckedAt records a poll attempt without changing status.
	TouchCheckedAt(ctx context.Context, localOrderID int64) error

	// FindPending returns up to limit pending rows, oldest updated_at
	// first, so every outstanding order is polled fairly across cycles.
	FindPending(ctx context.Context, limit int) ([]ordersdomain.ExternalOrder, error)
}
