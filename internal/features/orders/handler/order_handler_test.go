package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lotus-reconciler/internal/features/orders/domain"
	"lotus-reconciler/internal/features/orders/ports"
	"lotus-reconciler/internal/features/orders/service"
	adapter "lotus-reconciler/internal/features/provider/adapters"
	providerdomain "lotus-reconciler/internal/features/provider/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockGateway is a mock implementation of ports.ProviderGateway for testing.
type mockGateway struct {
	receipt   *providerdomain.Order
	createErr error
}

func (m *mockGateway) CreateOrder(ctx context.Context, productID int64, note string) (*providerdomain.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.receipt, nil
}

func (m *mockGateway) GetOrder(ctx context.Context, orderID int64) (*providerdomain.Order, error) {
	if m.receipt != nil && m.receipt.OrderID == orderID {
		return m.receipt, nil
	}
	return nil, errors.New("unknown order")
}

// mockStore is an in-memory implementation of ports.OrderStore for testing.
type mockStore struct {
	rows map[int64]*domain.ExternalOrder
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[int64]*domain.ExternalOrder)}
}

func (m *mockStore) FindByLocalOrderID(ctx context.Context, localOrderID int64) (*domain.ExternalOrder, error) {
	if row, ok := m.rows[localOrderID]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (m *mockStore) Insert(ctx context.Context, order *domain.ExternalOrder) error {
	if _, ok := m.rows[order.LocalOrderID]; ok {
		return ports.ErrDuplicateLocalOrder
	}
	cp := *order
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.rows[order.LocalOrderID] = &cp
	return nil
}

func (m *mockStore) UpdateStatusContent(ctx context.Context, localOrderID int64, status domain.OrderStatus, content string) error {
	row, ok := m.rows[localOrderID]
	if !ok {
		return errors.New("row not found")
	}
	row.Status = status
	row.Content = content
	row.UpdatedAt = time.Now()
	return nil
}

func (m *mockStore) TouchCheckedAt(ctx context.Context, localOrderID int64) error {
	now := time.Now()
	m.rows[localOrderID].LastCheckedAt = &now
	return nil
}

func (m *mockStore) FindPending(ctx context.Context, limit int) ([]domain.ExternalOrder, error) {
	var pending []domain.ExternalOrder
	for _, row := range m.rows {
		if row.Status == domain.OrderStatusPending && len(pending) < limit {
			pending = append(pending, *row)
		}
	}
	return pending, nil
}

func testApp(gateway *mockGateway, store ports.OrderStore, onCompleted service.CompletionFunc) *fiber.App {
	svc := service.NewReconciliationService(gateway, store, 100)
	h := NewOrderHandler(svc, onCompleted)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("requestid", "test-ray-id")
		return c.Next()
	})
	app.Post("/orders", h.PlaceOrder)
	app.Get("/orders/:id", h.GetOrder)
	app.Post("/admin/poll", h.Poll)
	return app
}

// TestOrderHandler_PlaceOrder_Success verifies a placement returns the tracked order.
func TestOrderHandler_PlaceOrder_Success(t *testing.T) {
	gateway := &mockGateway{receipt: &providerdomain.Order{OrderID: 900, Status: "pending"}}
	app := testApp(gateway, newMockStore(), nil)

	req := httptest.NewRequest("POST", "/orders", strings.NewReader(`{"local_order_id": 42, "product_id": 7, "note": "user@example.com"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var order OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, int64(42), order.LocalOrderID)
	assert.Equal(t, int64(900), order.ExternalOrderID)
	assert.Equal(t, "pending", order.Status)
	assert.Equal(t, "pending", order.Delivery)
}

// TestOrderHandler_PlaceOrder_Delivered verifies an instantly completed order
// reports its content and delivery flag.
func TestOrderHandler_PlaceOrder_Delivered(t *testing.T) {
	gateway := &mockGateway{receipt: &providerdomain.Order{OrderID: 900, Status: "completed", Content: "KEY-XYZ"}}
	app := testApp(gateway, newMockStore(), nil)

	req := httptest.NewRequest("POST", "/orders", strings.NewReader(`{"local_order_id": 42, "product_id": 7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var order OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, "KEY-XYZ", order.Content)
	assert.Equal(t, "delivered", order.Delivery)
}

// TestOrderHandler_PlaceOrder_InvalidBody verifies malformed JSON is rejected.
func TestOrderHandler_PlaceOrder_InvalidBody(t *testing.T) {
	app := testApp(&mockGateway{}, newMockStore(), nil)

	req := httptest.NewRequest("POST", "/orders", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestOrderHandler_PlaceOrder_MissingIDs verifies field validation.
func TestOrderHandler_PlaceOrder_MissingIDs(t *testing.T) {
	app := testApp(&mockGateway{}, newMockStore(), nil)

	for _, body := range []string{
		`{"product_id": 7}`,
		`{"local_order_id": 42}`,
		`{"local_order_id": -1, "product_id": 7}`,
	} {
		req := httptest.NewRequest("POST", "/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "body: %s", body)
	}
}

// TestOrderHandler_PlaceOrder_UpstreamRejection verifies the provider message surfaces with 502.
func TestOrderHandler_PlaceOrder_UpstreamRejection(t *testing.T) {
	gateway := &mockGateway{createErr: &adapter.UpstreamError{Message: "insufficient credit", StatusCode: 200}}
	app := testApp(gateway, newMockStore(), nil)

	req := httptest.NewRequest("POST", "/orders", strings.NewReader(`{"local_order_id": 42, "product_id": 7}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "insufficient credit", errResp.Message)
	assert.Equal(t, "test-ray-id", errResp.RayID)
}

// TestOrderHandler_GetOrder_Success verifies the lookup by local order ID.
func TestOrderHandler_GetOrder_Success(t *testing.T) {
	store := newMockStore()
	require.NoError(t, store.Insert(context.Background(), &domain.ExternalOrder{
		LocalOrderID:    42,
		ExternalOrderID: 900,
		Status:          domain.OrderStatusCompleted,
		Content:         "KEY-XYZ",
	}))
	app := testApp(&mockGateway{}, store, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/orders/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var order OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, int64(900), order.ExternalOrderID)
	assert.Equal(t, "delivered", order.Delivery)
}

// TestOrderHandler_GetOrder_NotFound verifies unknown ids return 404.
func TestOrderHandler_GetOrder_NotFound(t *testing.T) {
	app := testApp(&mockGateway{}, newMockStore(), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/orders/9999", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

// failingStore reports a persistence error on every lookup.
type failingStore struct {
	*mockStore
}

func (f *failingStore) FindByLocalOrderID(ctx context.Context, localOrderID int64) (*domain.ExternalOrder, error) {
	return nil, errors.New("database is locked")
}

// TestOrderHandler_GetOrder_StoreFailure verifies persistence errors map to 500.
func TestOrderHandler_GetOrder_StoreFailure(t *testing.T) {
	app := testApp(&mockGateway{}, &failingStore{newMockStore()}, nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/orders/42", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.Equal(t, "Internal storage error", errResp.Message)
}

// TestOrderHandler_GetOrder_InvalidID verifies non-numeric ids return 400.
func TestOrderHandler_GetOrder_InvalidID(t *testing.T) {
	app := testApp(&mockGateway{}, newMockStore(), nil)

	resp, err := app.Test(httptest.NewRequest("GET", "/orders/abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

// TestOrderHandler_Poll_ReportsStats verifies a manual poll cycle runs and
// fires the completion hook.
func TestOrderHandler_Poll_ReportsStats(t *testing.T) {
	store := newMockStore()
	require.NoError(t, store.Insert(context.Background(), &domain.ExternalOrder{
		LocalOrderID:    42,
		ExternalOrderID: 900,
		Status:          domain.OrderStatusPending,
	}))
	gateway := &mockGateway{receipt: &providerdomain.Order{OrderID: 900, Status: "completed", Content: "KEY-XYZ"}}

	completions := 0
	app := testApp(gateway, store, func(localOrderID int64, content string) {
		completions++
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/admin/poll", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var poll PollResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&poll))
	assert.Equal(t, 1, poll.Polled)
	assert.Equal(t, 1, poll.Completed)
	assert.Equal(t, 1, completions)
}
