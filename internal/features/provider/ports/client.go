package ports

import (
	"context"

	"lotus-reconciler/internal/features/provider/domain"
)

// Client defines the operations offered by the upstream supplier API.
// This is a Secondary Port (Driven Port).
type Client interface {
	// GetUser retrieves account and credit information.
	GetUser(ctx context.Context) (*domain.Account, error)
	// GetProducts retrieves the product catalog.
	GetProducts(ctx context.Context) ([]domain.Product, error)
	// CreateOrder places an order for the given product. The note is
	// optional and forwarded verbatim to the provider.
	CreateOrder(ctx context.Context, productID int64, note string) (*domain.Order, error)
	// ListOrders retrieves all orders known to the provider for this account.
	ListOrders(ctx context.Context) ([]domain.Order, error)
	// GetOrder retrieves the current state of a single provider order.
	GetOrder(ctx context.Context, orderID int64) (*domain.Order, error)
}
