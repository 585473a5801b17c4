package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/cbs/internal/domain"
	"github.com/vladislavdragonenkov/cbs/internal/httpapi"
	"github.com/vladislavdragonenkov/cbs/internal/metrics"
	"github.com/vladislavdragonenkov/cbs/internal/money"
	"github.com/vladislavdragonenkov/cbs/internal/service/orders"
	"github.com/vladislavdragonenkov/cbs/internal/service/reservations"
	"github.com/vladislavdragonenkov/cbs/internal/storage/memory"
)

const testAPIKey = "test-secret"

type testEnv struct {
	handler   http.Handler
	customers domain.CustomerRepository
	products  domain.ProductRepository
	registry  *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	customers := memory.NewCustomerRepository()
	products := memory.NewProductRepository()
	orderRepo := memory.NewOrderRepository(customers)
	reservationRepo := memory.NewReservationRepository(customers)
	outbox := memory.NewOutboxRepository()
	timeline := memory.NewTimelineRepository()

	cfg := money.Config{TaxRate: 0.21, CurrencyCode: "EUR"}
	orderService := orders.NewService(orderRepo, products, timeline, outbox, cfg, nil)
	reservationService := reservations.NewService(reservationRepo, outbox, nil)

	registry := prometheus.NewRegistry()
	server := httpapi.NewServer(httpapi.Deps{
		Customers:    customers,
		Products:     products,
		Orders:       orderService,
		Reservations: reservationService,
		Idempotency:  memory.NewIdempotencyRepository(),
		Metrics:      metrics.NewCommerceMetricsWithRegisterer(registry),
		APIKey:       testAPIKey,
	})

	return &testEnv{handler: server.Router(), customers: customers, products: products, registry: registry}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if method != http.MethodGet {
		req.Header.Set("x-api-key", testAPIKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (e *testEnv) seedCustomer(t *testing.T, id string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.customers.Create(domain.Customer{
		ID:        id,
		Email:     id + "@example.com",
		Name:      "Customer " + id,
		CreatedAt: now,
		UpdatedAt: now,
	}))
}

func (e *testEnv) seedProduct(t *testing.T, id string, priceCents int64, active bool) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, e.products.Create(domain.Product{
		ID:         id,
		SKU:        "SKU-" + id,
		Name:       "Product " + id,
		PriceCents: priceCents,
		Active:     active,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
}

// Сквозной сценарий: заказ с двумя позициями, переход OPEN -> PAID,
// затем запрещённый переход PAID -> CANCELLED.
func TestOrderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)
	env.seedProduct(t, "prod-b", 1500, true)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customerId": "cust-1",
		"items": []map[string]any{
			{"productId": "prod-a", "qty": 2},
			{"productId": "prod-b", "qty": 1},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody(t, rec)
	assert.Equal(t, "OPEN", created["status"])
	assert.EqualValues(t, 2500, created["subtotalCents"])
	assert.EqualValues(t, 525, created["taxCents"])
	assert.EqualValues(t, 3025, created["totalCents"])
	assert.EqualValues(t, 25, created["subtotal"])
	assert.EqualValues(t, 5.25, created["tax"])
	assert.EqualValues(t, 30.25, created["total"])
	assert.Equal(t, "EUR", created["currencyCode"])
	assert.NotEmpty(t, created["totalFormatted"])
	assert.Len(t, created["items"], 2)

	orderID := created["id"].(string)

	rec = env.do(t, http.MethodPatch, "/api/v1/orders/"+orderID, map[string]string{"status": "PAID"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "PAID", decodeBody(t, rec)["status"])

	rec = env.do(t, http.MethodPatch, "/api/v1/orders/"+orderID, map[string]string{"status": "CANCELLED"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "InvalidStatusTransition", body["error"])
	assert.Equal(t, "PAID", body["from"])
	assert.Equal(t, "CANCELLED", body["to"])

	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+orderID+"/timeline", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	require.Len(t, timeline, 2)
	assert.Equal(t, "OrderCreated", timeline[0]["type"])
	assert.Equal(t, "OrderStatusChanged", timeline[1]["type"])
}

// Ответ заказа несёт не только productId: в каждую позицию вложена
// карточка товара, а в сам заказ — карточка покупателя.
func TestOrderResponseResolvesProductAndCustomer(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customerId": "cust-1",
		"items":      []map[string]any{{"productId": "prod-a", "qty": 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeBody(t, rec)
	items, ok := created["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	item := items[0].(map[string]any)
	assert.Equal(t, "prod-a", item["productId"])

	product, ok := item["product"].(map[string]any)
	require.True(t, ok, "item must embed the resolved product: %s", rec.Body.String())
	assert.Equal(t, "prod-a", product["id"])
	assert.Equal(t, "SKU-prod-a", product["sku"])
	assert.Equal(t, "Product prod-a", product["name"])
	assert.EqualValues(t, 500, product["priceCents"])

	customer, ok := created["customer"].(map[string]any)
	require.True(t, ok, "order must embed the resolved customer")
	assert.Equal(t, "cust-1", customer["id"])
	assert.Equal(t, "cust-1@example.com", customer["email"])

	// GET по id и список отдают те же вложенные карточки.
	orderID := created["id"].(string)
	rec = env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fetched := decodeBody(t, rec)
	assert.NotNil(t, fetched["customer"])
	assert.NotNil(t, fetched["items"].([]any)[0].(map[string]any)["product"])

	rec = env.do(t, http.MethodGet, "/api/v1/orders?customerId=cust-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed, ok := decodeBody(t, rec)["items"].([]any)
	require.True(t, ok)
	require.Len(t, listed, 1)
	first := listed[0].(map[string]any)
	assert.NotNil(t, first["customer"])
	assert.NotNil(t, first["items"].([]any)[0].(map[string]any)["product"])
}

func TestCreateOrderMergesDuplicateItems(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)
	env.seedProduct(t, "prod-b", 300, true)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customerId": "cust-1",
		"items": []map[string]any{
			{"productId": "prod-a", "qty": 1},
			{"productId": "prod-b", "qty": 1},
			{"productId": "prod-a", "qty": 2},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Items []struct {
			ProductID string `json:"productId"`
			Qty       int32  `json:"qty"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Items, 2)
	assert.Equal(t, "prod-a", created.Items[0].ProductID)
	assert.EqualValues(t, 3, created.Items[0].Qty)
	assert.Equal(t, "prod-b", created.Items[1].ProductID)
	assert.EqualValues(t, 1, created.Items[1].Qty)
}

func TestCreateOrderItemErrors(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-active", 500, true)
	env.seedProduct(t, "prod-inactive", 500, false)

	tests := []struct {
		name      string
		items     []map[string]any
		wantCode  string
		productID string
	}{
		{
			name:      "inactive product",
			items:     []map[string]any{{"productId": "prod-inactive", "qty": 1}},
			wantCode:  "ProductInactive",
			productID: "prod-inactive",
		},
		{
			name:     "unknown product",
			items:    []map[string]any{{"productId": "prod-ghost", "qty": 1}},
			wantCode: "InvalidProductInItems",
		},
		{
			name:      "zero qty",
			items:     []map[string]any{{"productId": "prod-active", "qty": 0}},
			wantCode:  "InvalidQty",
			productID: "prod-active",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
				"customerId": "cust-1",
				"items":      tc.items,
			}, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			body := decodeBody(t, rec)
			assert.Equal(t, tc.wantCode, body["error"])
			if tc.productID != "" {
				assert.Equal(t, tc.productID, body["productId"])
			}
		})
	}
}

func TestCreateOrderMissingQtyDefaultsToOne(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customerId": "cust-1",
		"items":      []map[string]any{{"productId": "prod-a"}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.EqualValues(t, 500, decodeBody(t, rec)["subtotalCents"])
}

func TestCreateOrderIdempotency(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)

	payload := map[string]any{
		"customerId": "cust-1",
		"items":      []map[string]any{{"productId": "prod-a", "qty": 1}},
	}
	headers := map[string]string{"Idempotency-Key": "key-1"}

	first := env.do(t, http.MethodPost, "/api/v1/orders", payload, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := env.do(t, http.MethodPost, "/api/v1/orders", payload, headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.JSONEq(t, first.Body.String(), replay.Body.String())

	// Тот же ключ с другим телом — повторное использование ключа.
	other := map[string]any{
		"customerId": "cust-1",
		"items":      []map[string]any{{"productId": "prod-a", "qty": 2}},
	}
	reuse := env.do(t, http.MethodPost, "/api/v1/orders", other, headers)
	require.Equal(t, http.StatusConflict, reuse.Code)
	assert.Equal(t, "IdempotencyKeyReuse", decodeBody(t, reuse)["error"])
}

func TestPatchOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)

	rec := env.do(t, http.MethodPatch, "/api/v1/orders/missing", map[string]string{"status": "PAID"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "OrderNotFound", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPatch, "/api/v1/orders/missing", map[string]string{"status": "SHIPPED"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ValidationError", decodeBody(t, rec)["error"])
}

// Счётчик переходов помечается фактическим статусом заказа до перехода.
func TestStatusTransitionMetricLabels(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)

	rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customerId": "cust-1",
		"items":      []map[string]any{{"productId": "prod-a", "qty": 1}},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	orderID := decodeBody(t, rec)["id"].(string)

	rec = env.do(t, http.MethodPatch, "/api/v1/orders/"+orderID, map[string]string{"status": "CANCELLED"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expected := `
# HELP cbs_order_status_transitions_total Total number of order status transitions
# TYPE cbs_order_status_transitions_total counter
cbs_order_status_transitions_total{from="OPEN",to="CANCELLED"} 1
`
	require.NoError(t, testutil.GatherAndCompare(env.registry, strings.NewReader(expected), "cbs_order_status_transitions_total"))
}

func TestListOrdersFiltersAndEnvelope(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedProduct(t, "prod-a", 500, true)

	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
			"customerId": "cust-1",
			"items":      []map[string]any{{"productId": "prod-a", "qty": 1}},
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/orders?take=2&skip=1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["take"])
	assert.EqualValues(t, 1, body["skip"])
	assert.Len(t, body["items"], 2)

	for _, tc := range []struct {
		query string
		want  string
	}{
		{"dateFrom=nope", "InvalidDateFrom"},
		{"dateTo=nope", "InvalidDateTo"},
		{"updatedSince=nope", "InvalidUpdatedSince"},
	} {
		rec := env.do(t, http.MethodGet, "/api/v1/orders?"+tc.query, nil, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, tc.want, decodeBody(t, rec)["error"])
	}
}

func TestReservations(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")
	env.seedCustomer(t, "cust-2")

	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	rec := env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-1",
		"startAt":    start.Format(time.RFC3339),
		"endAt":      end.Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "PENDING", body["status"])
	assert.EqualValues(t, 1, body["partySize"])

	// Пересечение интервалов у того же клиента.
	rec = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-1",
		"startAt":    start.Add(time.Hour).Format(time.RFC3339),
		"endAt":      end.Add(time.Hour).Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "OverlappingReservation", decodeBody(t, rec)["error"])

	// Встык (end == start) — не конфликт: интервалы полуоткрытые.
	rec = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-1",
		"startAt":    end.Format(time.RFC3339),
		"endAt":      end.Add(time.Hour).Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Другой клиент тот же интервал — без конфликта.
	rec = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-2",
		"startAt":    start.Format(time.RFC3339),
		"endAt":      end.Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-1",
		"startAt":    "not-a-date",
		"endAt":      end.Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidDate", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-1",
		"startAt":    end.Format(time.RFC3339),
		"endAt":      start.Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "startAt_must_be_before_endAt", decodeBody(t, rec)["error"])

	rec = env.do(t, http.MethodPost, "/api/v1/reservations", map[string]any{
		"customerId": "cust-ghost",
		"startAt":    start.Format(time.RFC3339),
		"endAt":      end.Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "InvalidCustomer", decodeBody(t, rec)["error"])
}

func TestCustomersAndProducts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/customers", map[string]string{
		"email": "ada@example.com",
		"name":  "Ada",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/v1/customers", map[string]string{
		"email": "ada@example.com",
		"name":  "Ada Again",
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Conflict", body["error"])
	assert.Equal(t, "Email already exists", body["details"])

	rec = env.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"sku":        "SKU-1",
		"name":       "Widget",
		"priceCents": 500,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, true, decodeBody(t, rec)["active"])

	rec = env.do(t, http.MethodPost, "/api/v1/products", map[string]any{
		"sku":        "SKU-1",
		"name":       "Widget Again",
		"priceCents": 700,
	}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Conflict", body["error"])
	assert.Equal(t, "SKU already exists", body["details"])

	rec = env.do(t, http.MethodGet, "/api/v1/customers", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody(t, rec)
	assert.EqualValues(t, 1, list["total"])
	assert.EqualValues(t, 50, list["take"])
}

func TestAPIKeyGate(t *testing.T) {
	env := newTestEnv(t)
	env.seedCustomer(t, "cust-1")

	t.Run("get passes without key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewReader([]byte(`{}`)))
		req.Header.Set("x-api-key", "nope")
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "API Key is invalid", decodeBody(t, rec)["error"])
	})

	t.Run("server without key misconfigured", func(t *testing.T) {
		bare := httpapi.NewServer(httpapi.Deps{APIKey: ""})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewReader([]byte(`{}`)))
		rec := httptest.NewRecorder()
		bare.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "API Key not configured on server", decodeBody(t, rec)["error"])
	})
}

func TestTakeClamped(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/customers?take=500", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 200, decodeBody(t, rec)["take"])

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/customers?take=%d", -5), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decodeBody(t, rec)["take"])
}
