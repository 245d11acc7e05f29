package domain

import (
	"strings"
	"time"
)

// OrderStatus represents the lifecycle state of an externally placed order,
// mirroring the state reported by the upstream provider.
type OrderStatus string

const (
	// OrderStatusPending indicates the provider accepted the order but has
	// not fulfilled it yet; pending orders are subject to polling.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted indicates the provider delivered the order.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailed indicates the provider could not fulfill the order.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusCancelled indicates the provider cancelled the order.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusFailed, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus maps a raw provider status string to an OrderStatus. Unknown
// or empty strings yield the fallback, so a truncated poll response never
// invents a transition.
func ParseStatus(raw string, fallback OrderStatus) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending", "processing", "in_progress":
		return OrderStatusPending
	case "completed", "complete", "delivered":
		return OrderStatusCompleted
	case "failed", "error":
		return OrderStatusFailed
	case "cancelled", "canceled", "refunded":
		return OrderStatusCancelled
	default:
		return fallback
	}
}

// ExternalOrder is the durable local record of one order forwarded to the
// upstream provider. LocalOrderID is caller-assigned and unique: it is the
// idempotency key for placement.
type ExternalOrder struct {
	// LocalOrderID is the caller's order id, unique per row.
	LocalOrderID int64 `json:"local_order_id"`
	// ExternalOrderID is the provider-assigned order id; 0 until known.
	ExternalOrderID int64 `json:"external_order_id"`
	// Status mirrors the provider's reported lifecycle state.
	Status OrderStatus `json:"status"`
	// Content is the delivered payload once the order completes.
	Content string `json:"content,omitempty"`
	// LastCheckedAt is the last time the status was polled upstream.
	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	// CreatedAt is when the row was first persisted.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped on every status write.
	UpdatedAt time.Time `json:"updated_at"`
}
