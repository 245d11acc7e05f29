package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestOrderStatus_IsTerminal verifies terminal state classification.
func TestOrderStatus_IsTerminal(t *testing.T) {
	assert.False(t, OrderStatusPending.IsTerminal())
	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusFailed.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatus("unknown").IsTerminal())
}

// TestParseStatus verifies provider status string mapping.
func TestParseStatus(t *testing.T) {
	assert.Equal(t, OrderStatusPending, ParseStatus("pending", OrderStatusFailed))
	assert.Equal(t, OrderStatusPending, ParseStatus("Processing", OrderStatusFailed))
	assert.Equal(t, OrderStatusCompleted, ParseStatus("COMPLETED", OrderStatusPending))
	assert.Equal(t, OrderStatusCompleted, ParseStatus("delivered", OrderStatusPending))
	assert.Equal(t, OrderStatusFailed, ParseStatus("failed", OrderStatusPending))
	assert.Equal(t, OrderStatusCancelled, ParseStatus("canceled", OrderStatusPending))
	assert.Equal(t, OrderStatusCancelled, ParseStatus("refunded", OrderStatusPending))
}

// TestParseStatus_Fallback verifies unknown and empty strings keep the previous status.
func TestParseStatus_Fallback(t *testing.T) {
	assert.Equal(t, OrderStatusPending, ParseStatus("", OrderStatusPending))
	assert.Equal(t, OrderStatusPending, ParseStatus("weird_state", OrderStatusPending))
	assert.Equal(t, OrderStatusCompleted, ParseStatus("  ", OrderStatusCompleted))
}
