package service

import (
	"context"
	"errors"
	"fmt"

	"lotus-reconciler/internal/core/logger"
	"lotus-reconciler/internal/features/orders/domain"
	"lotus-reconciler/internal/features/orders/ports"

	"go.uber.org/zap"
)

// ErrOrderNotFound is returned when no local record exists for the order id.
var ErrOrderNotFound = errors.New("order not found")

// ErrStoreFailure marks a local persistence error so callers can tell it
// apart from upstream provider failures.
var ErrStoreFailure = errors.New("order store failure")

// CompletionFunc is the delivery hook invoked when a poll observes an order
// transitioning to completed. The caller performs delivery-side effects
// (notify the customer, hand over the content).
type CompletionFunc func(localOrderID int64, content string)

// PollStats summarizes one reconciliation cycle.
type PollStats struct {
	// Polled is the number of pending rows fetched for this cycle.
	Polled int `json:"polled"`
	// Completed is how many rows transitioned to completed this cycle.
	Completed int `json:"completed"`
	// Failed is how many rows could not be reconciled this cycle.
	Failed int `json:"failed"`
}

// ReconciliationService enforces end-to-end placement idempotency and drives
// local order state towards the provider's.
type ReconciliationService struct {
	gateway   ports.ProviderGateway
	store     ports.OrderStore
	batchSize int
	logger    *zap.Logger
}

// NewReconciliationService creates a new ReconciliationService. batchSize
// caps how many pending orders one poll cycle reconciles.
func NewReconciliationService(gateway ports.ProviderGateway, store ports.OrderStore, batchSize int) *ReconciliationService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ReconciliationService{
		gateway:   gateway,
		store:     store,
		batchSize: batchSize,
		logger:    logger.Get(),
	}
}

// PlaceExternalOrder forwards a local order to the provider at most once.
// Repeated calls with the same localOrderID return the existing row without
// touching the provider. A failed upstream placement writes no row, so the
// caller is free to retry.
func (s *ReconciliationService) PlaceExternalOrder(ctx context.Context, localOrderID, productID int64, note string) (*domain.ExternalOrder, error) {
	existing, err := s.store.FindByLocalOrderID(ctx, localOrderID)
	if err != nil {
		return nil, fmt.Errorf("service: idempotency lookup failed for order %d: %w: %w", localOrderID, ErrStoreFailure, err)
	}
	if existing != nil {
		s.logger.Info("Placement request deduplicated",
			zap.Int64("local_order_id", localOrderID),
			zap.String("status", string(existing.Status)),
		)
		return existing, nil
	}

	receipt, err := s.gateway.CreateOrder(ctx, productID, note)
	if err != nil {
		return nil, err
	}

	record := &domain.ExternalOrder{
		LocalOrderID:    localOrderID,
		ExternalOrderID: receipt.OrderID,
		Status:          domain.ParseStatus(receipt.Status, domain.OrderStatusPending),
		Content:         receipt.Content,
	}

	if err := s.store.Insert(ctx, record); err != nil {
		if errors.Is(err, ports.ErrDuplicateLocalOrder) {
			// Lost a placement race; the winner's row is the truth.
			s.logger.Warn("Concurrent placement detected, returning existing row",
				zap.Int64("local_order_id", localOrderID),
			)
			return s.GetOrder(ctx, localOrderID)
		}
		return nil, fmt.Errorf("service: failed to persist order %d: %w: %w", localOrderID, ErrStoreFailure, err)
	}

	s.logger.Info("External order placed",
		zap.Int64("local_order_id", localOrderID),
		zap.Int64("external_order_id", record.ExternalOrderID),
		zap.String("status", string(record.Status)),
	)

	// Return the canonical stored state, not the raw receipt.
	return s.GetOrder(ctx, localOrderID)
}

// GetOrder returns the stored record for a local order id.
func (s *ReconciliationService) GetOrder(ctx context.Context, localOrderID int64) (*domain.ExternalOrder, error) {
	order, err := s.store.FindByLocalOrderID(ctx, localOrderID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to read order %d: %w: %w", localOrderID, ErrStoreFailure, err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// PollPending re-queries the provider for every pending order and converges
// local state. A failure on one row never aborts the batch; the row is
// retried on the next cycle. onCompleted fires at most once per observed
// pending-to-completed transition.
func (s *ReconciliationService) PollPending(ctx context.Context, onCompleted CompletionFunc) (PollStats, error) {
	var stats PollStats

	pending, err := s.store.FindPending(ctx, s.batchSize)
	if err != nil {
		return stats, fmt.Errorf("service: failed to list pending orders: %w", err)
	}
	stats.Polled = len(pending)

	for i := range pending {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		row := &pending[i]
		if !s.reconcileRow(ctx, row, onCompleted) {
			stats.Failed++
			continue
		}
		if row.Status == domain.OrderStatusCompleted {
			stats.Completed++
		}
	}

	s.logger.Info("Poll cycle finished",
		zap.Int("polled", stats.Polled),
		zap.Int("completed", stats.Completed),
		zap.Int("failed", stats.Failed),
	)

	return stats, nil
}

// reconcileRow updates one pending row from the provider. Returns false when
// the row could not be reconciled; row.Status carries the new status on
// success.
func (s *ReconciliationService) reconcileRow(ctx context.Context, row *domain.ExternalOrder, onCompleted CompletionFunc) bool {
	if row.ExternalOrderID == 0 {
		s.logger.Warn("Pending order has no external id, skipping",
			zap.Int64("local_order_id", row.LocalOrderID),
		)
		return false
	}

	receipt, err := s.gateway.GetOrder(ctx, row.ExternalOrderID)
	if err != nil {
		s.logger.Warn("Failed to poll order status",
			zap.Int64("local_order_id", row.LocalOrderID),
			zap.Int64("external_order_id", row.ExternalOrderID),
			zap.Error(err),
		)
		return false
	}

	// Absent fields keep the previously stored values.
	status := domain.ParseStatus(receipt.Status, row.Status)
	content := receipt.Content
	if content == "" {
		content = row.Content
	}

	if err := s.store.UpdateStatusContent(ctx, row.LocalOrderID, status, content); err != nil {
		s.logger.Warn("Failed to persist polled status",
			zap.Int64("local_order_id", row.LocalOrderID),
			zap.Error(err),
		)
		return false
	}

	if err := s.store.TouchCheckedAt(ctx, row.LocalOrderID); err != nil {
		s.logger.Warn("Failed to record poll timestamp",
			zap.Int64("local_order_id", row.LocalOrderID),
			zap.Error(err),
		)
	}

	if status != row.Status {
		s.logger.Info("Order status changed",
			zap.Int64("local_order_id", row.LocalOrderID),
			zap.Int64("external_order_id", row.ExternalOrderID),
			zap.String("from", string(row.Status)),
			zap.String("to", string(status)),
		)
	}

	// The row was pending before this cycle, so observing completed here is
	// the transition; the next cycle no longer selects it.
	if status == domain.OrderStatusCompleted && onCompleted != nil {
		onCompleted(row.LocalOrderID, content)
	}

	row.Status = status
	row.Content = content
	return true
}
