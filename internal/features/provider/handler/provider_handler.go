package handler

import (
	"errors"
	"net/http"

	"lotus-reconciler/internal/core/logger"
	adapter "lotus-reconciler/internal/features/provider/adapters"
	"lotus-reconciler/internal/features/provider/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ProviderHandler handles read-only HTTP requests against the upstream provider.
type ProviderHandler struct {
	// service is the ProviderService instance.
	service *service.ProviderService
}

// NewProviderHandler creates a new instance of ProviderHandler.
func NewProviderHandler(s *service.ProviderService) *ProviderHandler {
	return &ProviderHandler{
		service: s,
	}
}

// GetAccount handles the request to read the provider account credit.
// @Summary Get provider account
// @Description Fetch remaining credit from the upstream provider.
// @Produce json
// @Success 200 {object} domain.Account
// @Failure 502 {object} ErrorResponse
// @Router /provider/account [get]
func (h *ProviderHandler) GetAccount(c *fiber.Ctx) error {
	account, err := h.service.GetAccount(c.UserContext())
	if err != nil {
		return h.upstreamError(c, "Failed to fetch provider account", err)
	}

	return c.Status(http.StatusOK).JSON(account)
}

// GetProducts handles the request to read the provider catalog.
// @Summary Get provider catalog
// @Produce json
// @Success 200 {array} domain.Product
// @Failure 502 {object} ErrorResponse
// @Router /provider/products [get]
func (h *ProviderHandler) GetProducts(c *fiber.Ctx) error {
	products, err := h.service.GetProducts(c.UserContext())
	if err != nil {
		return h.upstreamError(c, "Failed to fetch provider catalog", err)
	}

	return c.Status(http.StatusOK).JSON(products)
}

// ListOrders handles the request to list orders as the provider reports them.
// @Summary List provider orders
// @Produce json
// @Success 200 {array} domain.Order
// @Failure 502 {object} ErrorResponse
// @Router /provider/orders [get]
func (h *ProviderHandler) ListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(c.UserContext())
	if err != nil {
		return h.upstreamError(c, "Failed to list provider orders", err)
	}

	return c.Status(http.StatusOK).JSON(orders)
}

// upstreamError logs and maps a provider failure to an HTTP response. A
// well-formed provider rejection keeps its message; everything else is a
// generic bad gateway.
func (h *ProviderHandler) upstreamError(c *fiber.Ctx, logMsg string, err error) error {
	rayID, ok := c.Locals("requestid").(string)
	if !ok {
		rayID = "unknown"
	}

	logger.Get().Error(logMsg,
		zap.String("ray_id", rayID),
		zap.Error(err),
	)

	msg := "Upstream provider unavailable"
	var upstreamErr *adapter.UpstreamError
	if errors.As(err, &upstreamErr) {
		msg = upstreamErr.Message
	}

	return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
		Message: msg,
		RayID:   rayID,
	})
}

// ErrorResponse represents the structure of an error response.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for debugging.
	RayID string `json:"ray_id"`
}
