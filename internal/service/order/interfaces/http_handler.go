package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/service/order/application"
	"fulfillment/internal/service/order/port"
)

const (
	userHeader        = "X-USER-ID"
	idempotencyHeader = "Idempotency-Key"
	maxBodyBytes      = 1 << 20
)

var errBadRequest = apperr.New(apperr.KindValidation, "BAD_REQUEST")

// ErrorResponse 是所有错误响应的统一格式
type ErrorResponse struct {
	Code    string `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// OrderHandler 封装了履约服务的 HTTP 处理器
type OrderHandler struct {
	service  *application.OrderApplicationService
	gatherer prometheus.Gatherer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例，gatherer 为空时使用默认注册表
func NewOrderHandler(service *application.OrderApplicationService, gatherer prometheus.Gatherer) *OrderHandler {
	return &OrderHandler{service: service, gatherer: gatherer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("GET /metrics", metrics.Handler(h.gatherer))

	mux.HandleFunc("POST /orders", h.createOrder)
	mux.HandleFunc("GET /orders", h.listOrders)
	mux.HandleFunc("GET /orders/{orderId}", h.getOrder)
	mux.HandleFunc("POST /orders/{orderId}/cancel", h.cancelOrder)
	mux.HandleFunc("POST /orders/{orderId}/payments", h.processPayment)
	mux.HandleFunc("GET /orders/{orderId}/payments", h.listPayments)
	mux.HandleFunc("GET /payments/{transactionKey}", h.getPayment)
	mux.HandleFunc("POST /payments/callback", h.paymentCallback)
	mux.HandleFunc("GET /points", h.getPoints)
	mux.HandleFunc("POST /points/charge", h.chargePoints)
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req application.CreateOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.UserID = userID
	req.IdempotencyKey = r.Header.Get(idempotencyHeader)

	detail, err := h.service.CreateOrder(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orders, err := h.service.ListOrders(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	detail, err := h.service.GetOrder(r.Context(), orderID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	detail, err := h.service.CancelOrder(r.Context(), orderID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *OrderHandler) processPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	var req application.ProcessPaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.OrderID = orderID
	req.UserID = userID

	result, err := h.service.ProcessPayment(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (h *OrderHandler) listPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orderID, ok := pathID(w, r, "orderId")
	if !ok {
		return
	}
	payments, err := h.service.ListPayments(r.Context(), orderID, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

func (h *OrderHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	payment, err := h.service.GetPayment(r.Context(), r.PathValue("transactionKey"), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, payment)
}

// paymentCallback 供外部支付网关回调
func (h *OrderHandler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	var cb port.PaymentCallback
	if !decodeBody(w, r, &cb) {
		return
	}
	if err := h.service.HandlePaymentCallback(r.Context(), cb); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pointsResponse struct {
	UserID  string `json:"userId"`
	Balance int64  `json:"balance"`
}

func (h *OrderHandler) getPoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	balance, err := h.service.GetPoints(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{UserID: userID, Balance: balance})
}

func (h *OrderHandler) chargePoints(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var body struct {
		Amount int64 `json:"amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	balance, err := h.service.ChargePoints(r.Context(), userID, body.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{UserID: userID, Balance: balance})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := strings.TrimSpace(r.Header.Get(userHeader))
	if userID == "" {
		writeError(w, r, errBadRequest.Of("%s header is required", userHeader))
		return "", false
	}
	return userID, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, errBadRequest.Of("invalid %s %q", name, r.PathValue(name)))
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, r, apperr.Wrap(apperr.KindValidation, errBadRequest.Code, err, "malformed request body"))
		return false
	}
	return true
}

// statusOf 把错误类别映射到 HTTP 状态码
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInsufficientResource, apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindLockTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    "INTERNAL",
			Kind:    string(apperr.KindInternal),
			Message: "internal error",
		})
		return
	}

	status := statusOf(appErr.Kind)
	if status == http.StatusInternalServerError {
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, ErrorResponse{Code: apperr.CodeOf(err), Kind: string(appErr.Kind), Message: appErr.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
