package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/pkg/money"
	couponapp "fulfillment/internal/service/coupon/application"
	couponinfra "fulfillment/internal/service/coupon/infrastructure"
	inventoryapp "fulfillment/internal/service/inventory/application"
	inventorydomain "fulfillment/internal/service/inventory/domain"
	inventoryinfra "fulfillment/internal/service/inventory/infrastructure"
	"fulfillment/internal/service/order/application"
	orderinfra "fulfillment/internal/service/order/infrastructure"
	"fulfillment/internal/service/order/infrastructure/adapter"
	"fulfillment/internal/service/order/port"
	paymentinfra "fulfillment/internal/service/payment/infrastructure"
	pointapp "fulfillment/internal/service/point/application"
	pointinfra "fulfillment/internal/service/point/infrastructure"
	"fulfillment/internal/store/memstore"
)

type nopGateway struct{}

func (nopGateway) Submit(context.Context, port.PaymentRequest) error { return nil }

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	store := memstore.New(time.Second)
	tracer := noop.NewTracerProvider().Tracer("test")
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	products := inventoryinfra.NewMemoryProductRepository(store)
	require.NoError(t, products.Create(ctx, &inventorydomain.Product{ID: 1, Name: "mug", Price: money.MustFromInt(10000), Stock: money.MustQuantity(3)}))
	inventory := inventoryapp.NewLedger(products, store, tracer, m)
	points := pointapp.NewLedger(pointinfra.NewMemoryPointRepository(store), store, tracer, m)
	require.NoError(t, points.Open(ctx, "u1", 50000))
	users := adapter.NewMemoryUserDirectory()
	require.NoError(t, users.Register(ctx, "u1", "alice"))

	svc := application.NewOrderApplicationService(application.Deps{
		Tx:       store,
		Users:    users,
		Catalog:  inventory,
		Stock:    inventory,
		Coupons:  couponapp.NewLedger(couponinfra.NewMemoryCouponRepository(store), store, tracer, m),
		Points:   points,
		Orders:   orderinfra.NewMemoryRepository(store),
		Payments: paymentinfra.NewMemoryPaymentRepository(store),
		Gateway:  nopGateway{},
		Metrics:  m,
	}, tracer)

	mux := http.NewServeMux()
	NewOrderHandler(svc, reg).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set(userHeader, user)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestCreateAndGetOrder(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/orders", "u1", map[string]any{
		"items": []map[string]int64{{"productId": 1, "quantity": 2}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[application.OrderDetail](t, resp)
	assert.Equal(t, "COMPLETED", string(created.Status))
	assert.True(t, created.FinalPrice.Equal(money.MustFromInt(20000)))

	resp = do(t, srv, http.MethodGet, "/orders/"+strconv.FormatInt(created.ID, 10), "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created.ID, decode[application.OrderDetail](t, resp).ID)

	resp = do(t, srv, http.MethodGet, "/orders", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]application.OrderSummary](t, resp), 1)

	resp = do(t, srv, http.MethodGet, "/points", "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(30000), decode[pointsResponse](t, resp).Balance)
}

func TestErrorsMapToStatusAndBody(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/orders", "", map[string]any{"items": []map[string]int64{{"productId": 1, "quantity": 1}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/orders", "u1", map[string]any{"items": []map[string]int64{{"productId": 1, "quantity": 9}}})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	assert.Equal(t, string(apperr.KindInsufficientResource), body.Kind)
	assert.Contains(t, body.Message, "current=3, requested=9")

	resp = do(t, srv, http.MethodGet, "/orders/999", "u1", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/orders/abc", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders", bytes.NewBufferString("{"))
	req.Header.Set(userHeader, "u1")
	raw, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestCardPaymentAndCallbackOverHTTP(t *testing.T) {
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/orders", "u1", map[string]any{
		"items":       []map[string]int64{{"productId": 1, "quantity": 1}},
		"paymentMode": "DEFERRED",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[application.OrderDetail](t, resp)
	orderPath := "/orders/" + strconv.FormatInt(order.ID, 10)

	resp = do(t, srv, http.MethodPost, orderPath+"/payments", "u1", map[string]any{
		"method": "CARD", "amount": "10000", "cardType": "VISA", "cardNo": "4111111111111111",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	result := decode[application.PaymentResult](t, resp)
	assert.Equal(t, "PROCESSING", string(result.Status))

	cb := port.PaymentCallback{TransactionKey: result.TransactionKey, Outcome: port.OutcomeSuccess}
	resp = do(t, srv, http.MethodPost, "/payments/callback", "", cb)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/payments/callback", "", cb)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(apperr.KindInvalidState), decode[ErrorResponse](t, resp).Kind)

	resp = do(t, srv, http.MethodGet, "/payments/"+result.TransactionKey, "u1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payment := decode[application.PaymentDetail](t, resp)
	assert.Equal(t, "SUCCESS", string(payment.Status))
	assert.Equal(t, "************1111", payment.CardNo)

	resp = do(t, srv, http.MethodPost, orderPath+"/cancel", "u1", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t)
	do(t, srv, http.MethodPost, "/orders", "u1", map[string]any{"items": []map[string]int64{{"productId": 1, "quantity": 1}}})

	resp := do(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "fulfillment_orders_total")
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(apperr.KindLockTimeout))
	assert.Equal(t, http.StatusConflict, statusOf(apperr.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusOf(apperr.KindExternalNotify))
}
