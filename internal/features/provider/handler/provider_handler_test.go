package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	adapter "lotus-reconciler/internal/features/provider/adapters"
	"lotus-reconciler/internal/features/provider/domain"
	"lotus-reconciler/internal/features/provider/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClient is a mock implementation of ports.Client for testing.
type mockClient struct {
	account     *domain.Account
	products    []domain.Product
	orders      []domain.Order
	returnError error
}

func (m *mockClient) GetUser(ctx context.Context) (*domain.Account, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.account, nil
}

func (m *mockClient) GetProducts(ctx context.Context) ([]domain.Product, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.products, nil
}

func (m *mockClient) CreateOrder(ctx context.Context, productID int64, note string) (*domain.Order, error) {
	return nil, errors.New("not implemented")
}

func (m *mockClient) ListOrders(ctx context.Context) ([]domain.Order, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.orders, nil
}

func (m *mockClient) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	return nil, errors.New("not implemented")
}

func testApp(client *mockClient) *fiber.App {
	svc := service.NewProviderService(client, nil, time.Minute)
	h := NewProviderHandler(svc)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	app.Get("/provider/account", h.GetAccount)
	app.Get("/provider/products", h.GetProducts)
	app.Get("/provider/orders", h.ListOrders)
	return app
}

// TestProviderHandler_GetAccount_Success verifies the account response.
func TestProviderHandler_GetAccount_Success(t *testing.T) {
	app := testApp(&mockClient{account: &domain.Account{Credit: 5.5, Currency: "USD"}})

	resp, err := app.Test(httptest.NewRequest("GET", "/provider/account", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var account domain.Account
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&account))
	assert.Equal(t, 5.5, account.Credit)
}

// TestProviderHandler_GetAccount_UpstreamRejection verifies the provider message surfaces with 502.
func TestProviderHandler_GetAccount_UpstreamRejection(t *testing.T) {
	app := testApp(&mockClient{returnError: &adapter.UpstreamError{Message: "invalid key", StatusCode: 401}})

	resp, err := app.Test(httptest.NewRequest("GET", "/provider/account", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "invalid key", errResp.Message)
	assert.Equal(t, "test-ray-id", errResp.RayID)
}

// TestProviderHandler_GetAccount_GenericError verifies transport errors are not leaked verbatim.
func TestProviderHandler_GetAccount_GenericError(t *testing.T) {
	app := testApp(&mockClient{returnError: errors.New("dial tcp: connection refused")})

	resp, err := app.Test(httptest.NewRequest("GET", "/provider/account", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "Upstream provider unavailable", errResp.Message)
}

// TestProviderHandler_GetProducts_Success verifies the catalog response.
func TestProviderHandler_GetProducts_Success(t *testing.T) {
	app := testApp(&mockClient{products: []domain.Product{{ID: 7, Name: "License A"}}})

	resp, err := app.Test(httptest.NewRequest("GET", "/provider/products", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var products []domain.Product
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&products))
	require.Len(t, products, 1)
	assert.Equal(t, "License A", products[0].Name)
}

// TestProviderHandler_ListOrders_Success verifies the order list response.
func TestProviderHandler_ListOrders_Success(t *testing.T) {
	app := testApp(&mockClient{orders: []domain.Order{{OrderID: 1, Status: "pending"}}})

	resp, err := app.Test(httptest.NewRequest("GET", "/provider/orders", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var orders []domain.Order
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	require.Len(t, orders, 1)
	assert.Equal(t, int64(1), orders[0].OrderID)
}
