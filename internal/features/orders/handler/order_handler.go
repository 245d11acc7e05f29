package handler

import (
	"errors"
	"net/http"

	"lotus-reconciler/internal/core/logger"
	"lotus-reconciler/internal/features/orders/domain"
	"lotus-reconciler/internal/features/orders/service"
	adapter "lotus-reconciler/internal/features/provider/adapters"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// OrderHandler handles HTTP requests for tracked external orders.
type OrderHandler struct {
	// service is the ReconciliationService instance.
	service *service.ReconciliationService
	// onCompleted is invoked for every order a manual poll completes.
	onCompleted service.CompletionFunc
}

// NewOrderHandler creates a new instance of OrderHandler.
func NewOrderHandler(s *service.ReconciliationService, onCompleted service.CompletionFunc) *OrderHandler {
	return &OrderHandler{
		service:     s,
		onCompleted: onCompleted,
	}
}

// PlaceOrder handles the request to forward a local order to the provider.
// Repeating a local_order_id returns the already tracked order instead of
// placing a second upstream order.
// @Summary Place an external order
// @Description Forward a local order to the upstream provider, at most once per local order ID.
// @Accept json
// @Produce json
// @Param request body PlaceOrderRequest true "Placement request"
// @Success 200 {object} OrderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /orders [post]
func (h *OrderHandler) PlaceOrder(c *fiber.Ctx) error {
	var req PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return h.badRequest(c, "Invalid request body")
	}
	if req.LocalOrderID <= 0 {
		return h.badRequest(c, "local_order_id must be a positive integer")
	}
	if req.ProductID <= 0 {
		return h.badRequest(c, "product_id must be a positive integer")
	}

	order, err := h.service.PlaceExternalOrder(c.UserContext(), req.LocalOrderID, req.ProductID, req.Note)
	if err != nil {
		if errors.Is(err, service.ErrStoreFailure) {
			return h.storeError(c, "Failed to persist placed order", err)
		}
		return h.upstreamError(c, "Failed to place external order", err)
	}

	return c.Status(http.StatusOK).JSON(newOrderResponse(order))
}

// GetOrder handles the request to read a tracked order.
// @Summary Get tracked order by local order ID
// @Produce json
// @Param id path int true "Local order ID"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} ErrorResponse
// @Router /orders/{id} [get]
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	localOrderID, err := c.ParamsInt("id")
	if err != nil || localOrderID <= 0 {
		return h.badRequest(c, "id must be a positive integer")
	}

	order, err := h.service.GetOrder(c.UserContext(), int64(localOrderID))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "Order not found",
				RayID:   rayID(c),
			})
		}
		return h.storeError(c, "Failed to read tracked order", err)
	}

	return c.Status(http.StatusOK).JSON(newOrderResponse(order))
}

// Poll handles the request to run one reconciliation cycle immediately.
// @Summary Run one reconciliation poll cycle now
// @Produce json
// @Success 200 {object} PollResponse
// @Failure 500 {object} ErrorResponse
// @Router /admin/poll [post]
func (h *OrderHandler) Poll(c *fiber.Ctx) error {
	stats, err := h.service.PollPending(c.UserContext(), h.onCompleted)
	if err != nil {
		logger.Get().Error("Manual poll cycle failed",
			zap.String("ray_id", rayID(c)),
			zap.Error(err),
		)
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Poll cycle failed",
			RayID:   rayID(c),
		})
	}

	return c.Status(http.StatusOK).JSON(PollResponse{
		Polled:    stats.Polled,
		Completed: stats.Completed,
		Failed:    stats.Failed,
	})
}

// storeError logs and maps a local persistence failure to a 500.
func (h *OrderHandler) storeError(c *fiber.Ctx, logMsg string, err error) error {
	id := rayID(c)

	logger.Get().Error(logMsg,
		zap.String("ray_id", id),
		zap.Error(err),
	)

	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		Message: "Internal storage error",
		RayID:   id,
	})
}

func (h *OrderHandler) badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
		Message: msg,
		RayID:   rayID(c),
	})
}

// upstreamError logs and maps a placement failure to an HTTP response. A
// well-formed provider rejection keeps its message; everything else is a
// generic bad gateway.
func (h *OrderHandler) upstreamError(c *fiber.Ctx, logMsg string, err error) error {
	id := rayID(c)

	logger.Get().Error(logMsg,
		zap.String("ray_id", id),
		zap.Error(err),
	)

	msg := "Upstream provider unavailable"
	var upstreamErr *adapter.UpstreamError
	if errors.As(err, &upstreamErr) {
		msg = upstreamErr.Message
	}

	return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
		Message: msg,
		RayID:   id,
	})
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return "unknown"
}

// PlaceOrderRequest is the body of a placement request.
type PlaceOrderRequest struct {
	// LocalOrderID is the caller's own order identifier, unique per order.
	LocalOrderID int64 `json:"local_order_id"`
	// ProductID identifies the provider product to order.
	ProductID int64 `json:"product_id"`
	// Note is free-form text forwarded to the provider.
	Note string `json:"note,omitempty"`
}

// OrderResponse represents a tracked order as returned to callers.
type OrderResponse struct {
	LocalOrderID    int64  `json:"local_order_id"`
	ExternalOrderID int64  `json:"external_order_id"`
	Status          string `json:"status"`
	Content         string `json:"content,omitempty"`
	// Delivery is "delivered" once the order completed, "pending" otherwise.
	Delivery string `json:"delivery"`
}

func newOrderResponse(order *domain.ExternalOrder) OrderResponse {
	delivery := "pending"
	if order.Status == domain.OrderStatusCompleted {
		delivery = "delivered"
	}
	return OrderResponse{
		LocalOrderID:    order.LocalOrderID,
		ExternalOrderID: order.ExternalOrderID,
		Status:          string(order.Status),
		Content:         order.Content,
		Delivery:        delivery,
	}
}

// PollResponse reports the outcome of one reconciliation cycle.
type PollResponse struct {
	Polled    int `json:"polled"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}
