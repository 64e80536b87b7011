package application

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"fulfillment/internal/pkg/apperr"
	"fulfillment/internal/pkg/logger"
	"fulfillment/internal/pkg/metrics"
	"fulfillment/internal/pkg/money"
	"fulfillment/internal/pkg/tracing"
	"fulfillment/internal/pkg/txn"
	"fulfillment/internal/service/order/domain"
	"fulfillment/internal/service/order/port"
	paymentdomain "fulfillment/internal/service/payment/domain"
)

const (
	pointKeyPrefix = "POINT_"
	cardKeyPrefix  = "TR_"

	// 同时读取商品目录的并发上限
	catalogConcurrency = 8
)

var (
	errInvalidRequest     = apperr.New(apperr.KindValidation, "INVALID_REQUEST")
	errUserNotFound       = apperr.New(apperr.KindNotFound, "USER_NOT_FOUND")
	errAmountMismatch     = apperr.New(apperr.KindValidation, "PAYMENT_AMOUNT_MISMATCH")
	errDuplicateInFlight  = apperr.New(apperr.KindConflict, "DUPLICATE_REQUEST_IN_PROGRESS")
	errExportFailed       = apperr.New(apperr.KindExternalNotify, "ORDER_EXPORT_FAILED")
	errCallbackRejected   = apperr.New(apperr.KindInvalidState, "CALLBACK_REJECTED")
	errUnsupportedPayment = apperr.New(apperr.KindValidation, "UNSUPPORTED_PAYMENT_METHOD")
)

// Deps 是应用服务依赖的端口和仓储
type Deps struct {
	Tx       txn.Manager
	Users    port.UserDirectory
	Catalog  port.ProductCatalog
	Stock    port.StockLedger
	Coupons  domain.CouponApplier
	Points   port.PointLedger
	Orders   domain.OrderRepository
	Payments paymentdomain.PaymentRepository

	// 以下可以为空
	Exporter    port.OrderExporter
	Gateway     port.PaymentGateway
	Idempotency port.IdempotencyStore
	Metrics     *metrics.Metrics
}

// OrderApplicationService 编排库存、优惠券、积分三个台账和订单、支付两个聚合。
// 下单和支付的所有写操作都在一个事务里完成，任何一步失败都整体回滚。
type OrderApplicationService struct {
	Deps
	tracer trace.Tracer
	now    func() time.Time
	newKey func() string
}

func NewOrderApplicationService(deps Deps, tracer trace.Tracer) *OrderApplicationService {
	return &OrderApplicationService{
		Deps:   deps,
		tracer: tracer,
		now:    time.Now,
		newKey: uuid.NewString,
	}
}

// WithClock 替换时间源
func (s *OrderApplicationService) WithClock(now func() time.Time) *OrderApplicationService {
	s.now = now
	return s
}

// CreateOrder 校验用户、扣减库存、核销优惠券、扣减积分并保存订单。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, req CreateOrderRequest) (detail *OrderDetail, err error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", req.UserID), attribute.Int("order.lines", len(req.Items)))
	defer func() {
		s.Metrics.ObserveOrder(err)
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	mode, err := validateCreateOrder(&req)
	if err != nil {
		return nil, err
	}

	if s.Idempotency != nil && req.IdempotencyKey != "" {
		key := req.UserID + ":" + req.IdempotencyKey
		existing, reserved, err := s.Idempotency.Reserve(ctx, key)
		if err != nil {
			return nil, err
		}
		if !reserved {
			if existing == 0 {
				return nil, errDuplicateInFlight.Of("order request %s is still being processed", req.IdempotencyKey)
			}
			logger.Ctx(ctx).Info().Int64("order_id", existing).Str("idempotency_key", req.IdempotencyKey).
				Msg("duplicate order request, returning existing order")
			return s.GetOrder(ctx, existing, req.UserID)
		}
		defer func() {
			if err != nil {
				if rerr := s.Idempotency.Release(ctx, key); rerr != nil {
					logger.Ctx(ctx).Warn().Err(rerr).Msg("failed to release idempotency key")
				}
				return
			}
			if cerr := s.Idempotency.Complete(ctx, key, detail.ID); cerr != nil {
				logger.Ctx(ctx).Warn().Err(cerr).Int64("order_id", detail.ID).Msg("failed to record idempotency key")
			}
		}()
	}

	exists, err := s.Users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errUserNotFound.Of("user %s not found", req.UserID)
	}

	prices, err := s.lookupPrices(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.placeOrder(ctx, req, mode, prices)
		order = o
		return err
	})
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("user_id", req.UserID).Str("kind", string(apperr.KindOf(err))).
			Msg("order creation aborted")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.status", string(order.Status)))
	logger.Ctx(ctx).Info().Int64("order_id", order.ID).Str("user_id", order.UserID).
		Str("final_price", order.FinalPrice().String()).Str("status", string(order.Status)).Msg("order created")

	s.export(ctx, order)
	return toOrderDetail(order), nil
}

func validateCreateOrder(req *CreateOrderRequest) (PaymentMode, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", errInvalidRequest.Of("user id is required")
	}
	if len(req.Items) == 0 {
		return "", errInvalidRequest.Of("order must contain at least one item")
	}
	for _, line := range req.Items {
		if line.ProductID <= 0 {
			return "", errInvalidRequest.Of("product id must be positive: %d", line.ProductID)
		}
		if line.Quantity <= 0 {
			return "", errInvalidRequest.Of("quantity for product %d must be positive: %d", line.ProductID, line.Quantity)
		}
	}
	if req.CouponID != nil && *req.CouponID <= 0 {
		return "", errInvalidRequest.Of("coupon id must be positive: %d", *req.CouponID)
	}
	switch req.PaymentMode {
	case "", PaymentModePoint:
		return PaymentModePoint, nil
	case PaymentModeDeferred:
		return PaymentModeDeferred, nil
	default:
		return "", errInvalidRequest.Of("unknown payment mode %q", req.PaymentMode)
	}
}

// lookupPrices 并发读取商品目录，任一商品不存在则整体失败。
func (s *OrderApplicationService) lookupPrices(ctx context.Context, lines []OrderLine) (map[int64]money.Money, error) {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, line := range lines {
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}

	found := make([]money.Money, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(catalogConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			p, err := s.Catalog.GetProduct(gctx, id)
			if err != nil {
				return err
			}
			found[i] = p.Price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	prices := make(map[int64]money.Money, len(ids))
	for i, id := range ids {
		prices[id] = found[i]
	}
	return prices, nil
}

// placeOrder 在外层事务中执行。库存行按商品 ID 升序加锁，积分行最后加锁。
func (s *OrderApplicationService) placeOrder(ctx context.Context, req CreateOrderRequest, mode PaymentMode, prices map[int64]money.Money) (*domain.Order, error) {
	now := s.now()

	totals := make(map[int64]int64, len(req.Items))
	for _, line := range req.Items {
		totals[line.ProductID] += line.Quantity
	}
	productIDs := make([]int64, 0, len(totals))
	for id := range totals {
		productIDs = append(productIDs, id)
	}
	sort.Slice(productIDs, func(i, j int) bool { return productIDs[i] < productIDs[j] })

	for _, id := range productIDs {
		qty, err := money.NewQuantity(totals[id])
		if err != nil {
			return nil, err
		}
		if _, err := s.Stock.DecreaseStock(ctx, id, qty); err != nil {
			return nil, err
		}
	}

	order, err := domain.NewOrder(req.UserID, now)
	if err != nil {
		return nil, err
	}
	for _, line := range req.Items {
		qty, err := money.NewQuantity(line.Quantity)
		if err != nil {
			return nil, err
		}
		if err := order.AddItem(line.ProductID, prices[line.ProductID], qty); err != nil {
			return nil, err
		}
	}

	if err := order.ApplyCoupon(ctx, req.CouponID, s.Coupons); err != nil {
		return nil, err
	}

	if err := order.StartPayment(now); err != nil {
		return nil, err
	}

	if mode == PaymentModeDeferred {
		if err := s.Orders.Create(ctx, order); err != nil {
			return nil, err
		}
		return order, nil
	}

	if err := s.debitPoints(ctx, order.UserID, order.FinalPrice()); err != nil {
		return nil, err
	}
	if err := order.ProcessPayment(now); err != nil {
		return nil, err
	}
	if err := order.CompletePayment(now); err != nil {
		return nil, err
	}
	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, err
	}

	payment, err := paymentdomain.CreateForPoint(order.ID, order.UserID, order.FinalPrice(), now)
	if err != nil {
		return nil, err
	}
	if err := payment.StartProcessing(pointKeyPrefix+s.newKey(), now); err != nil {
		return nil, err
	}
	if err := payment.CompleteSuccess(now); err != nil {
		return nil, err
	}
	if err := s.Payments.Create(ctx, payment); err != nil {
		return nil, err
	}
	return order, nil
}

// debitPoints 积分以整数计，按应付金额的整数部分扣减，0 元订单不扣。
func (s *OrderApplicationService) debitPoints(ctx context.Context, userID string, amount money.Money) error {
	units := amount.Units()
	if units <= 0 {
		return nil
	}
	_, err := s.Points.Use(ctx, userID, units)
	return err
}

// export 把订单推送给外部导出方，失败只记录日志。
func (s *OrderApplicationService) export(ctx context.Context, order *domain.Order) {
	if s.Exporter == nil {
		return
	}
	if err := s.Exporter.Notify(ctx, toSnapshot(order)); err != nil {
		wrapped := apperr.Wrap(apperr.KindExternalNotify, errExportFailed.Code, err, "order export failed")
		trace.SpanFromContext(ctx).RecordError(wrapped)
		logger.Ctx(ctx).Warn().Err(wrapped).Int64("order_id", order.ID).Msg("order export failed, order kept")
	}
}

// GetOrder 只返回属于该用户的订单，否则视为不存在。
func (s *OrderApplicationService) GetOrder(ctx context.Context, orderID int64, userID string) (*OrderDetail, error) {
	order, err := s.ownedOrder(ctx, orderID, userID, false)
	if err != nil {
		return nil, err
	}
	return toOrderDetail(order), nil
}

// ListOrders 按下单时间倒序返回用户的订单。
func (s *OrderApplicationService) ListOrders(ctx context.Context, userID string) ([]OrderSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errInvalidRequest.Of("user id is required")
	}
	orders, err := s.Orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]OrderSummary, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderSummary(o))
	}
	return out, nil
}

func (s *OrderApplicationService) ownedOrder(ctx context.Context, orderID int64, userID string, forUpdate bool) (*domain.Order, error) {
	if orderID <= 0 || strings.TrimSpace(userID) == "" {
		return nil, errInvalidRequest.Of("order id and user id are required")
	}
	var (
		order *domain.Order
		err   error
	)
	if forUpdate {
		order, err = s.Orders.FindByIDForUpdate(ctx, orderID)
	} else {
		order, err = s.Orders.FindByID(ctx, orderID)
	}
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound.Of("order %d not found", orderID)
	}
	return order, nil
}

// ProcessPayment 为 PAYMENT_PENDING 的订单发起支付。
// 积分支付同步完成；卡支付提交给网关后返回 PROCESSING，结果由回调驱动。
func (s *OrderApplicationService) ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (result *PaymentResult, err error) {
	ctx, span := s.tracer.Start(ctx, "app.ProcessPayment")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("order.id", req.OrderID),
		attribute.String("user.id", req.UserID),
		attribute.String("payment.method", string(req.Method)),
	)
	defer func() {
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	if req.Method != paymentdomain.MethodCard && req.Method != paymentdomain.MethodPoint {
		return nil, errUnsupportedPayment.Of("unsupported payment method %q", req.Method)
	}
	if req.Method == paymentdomain.MethodCard && s.Gateway == nil {
		return nil, errUnsupportedPayment.Of("card payments are not enabled")
	}

	var payment *paymentdomain.Payment
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		order, err := s.ownedOrder(ctx, req.OrderID, req.UserID, true)
		if err != nil {
			return err
		}
		if !req.Amount.Equal(order.FinalPrice()) {
			return errAmountMismatch.Of("payment amount %s does not match order final price %s", req.Amount, order.FinalPrice())
		}
		if err := order.ProcessPayment(now); err != nil {
			return err
		}

		switch req.Method {
		case paymentdomain.MethodCard:
			payment, err = paymentdomain.CreateForCard(order.ID, order.UserID, req.Amount, req.CardType, req.CardNo, now)
			if err != nil {
				return err
			}
			if err := payment.StartProcessing(cardKeyPrefix+s.newKey(), now); err != nil {
				return err
			}
		case paymentdomain.MethodPoint:
			if err := s.debitPoints(ctx, order.UserID, req.Amount); err != nil {
				return err
			}
			payment, err = paymentdomain.CreateForPoint(order.ID, order.UserID, req.Amount, now)
			if err != nil {
				return err
			}
			if err := payment.StartProcessing(pointKeyPrefix+s.newKey(), now); err != nil {
				return err
			}
			if err := payment.CompleteSuccess(now); err != nil {
				return err
			}
			if err := order.CompletePayment(now); err != nil {
				return err
			}
		}

		if err := s.Payments.Create(ctx, payment); err != nil {
			return err
		}
		return s.Orders.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("payment.transaction_key", payment.TransactionKey))
	log := logger.Ctx(ctx).Info().Int64("order_id", req.OrderID).Str("transaction_key", payment.TransactionKey).
		Str("method", string(payment.Method))
	if payment.Method == paymentdomain.MethodCard {
		log = log.Str("card_no", logger.MaskCardNo(payment.CardNo))
	}
	log.Str("status", string(payment.Status)).Msg("payment started")

	result = &PaymentResult{TransactionKey: payment.TransactionKey, Status: payment.Status}
	if payment.Method != paymentdomain.MethodCard {
		return result, nil
	}

	submitErr := s.Gateway.Submit(ctx, port.PaymentRequest{
		TransactionKey: payment.TransactionKey,
		OrderID:        payment.OrderID,
		UserID:         payment.UserID,
		Amount:         payment.Amount,
		CardType:       payment.CardType,
		CardNo:         payment.CardNo,
	})
	if submitErr == nil {
		return result, nil
	}

	logger.Ctx(ctx).Warn().Err(submitErr).Str("transaction_key", payment.TransactionKey).
		Msg("payment gateway rejected submission, marking payment failed")
	status, err := s.settle(ctx, payment.TransactionKey, port.OutcomeFailed, "gateway submission failed: "+submitErr.Error(), false)
	if err != nil {
		return nil, err
	}
	result.Status = status
	return result, nil
}

// HandlePaymentCallback 处理网关回调。支付不在 PROCESSING 状态时拒绝，重复回调不会被静默吞掉。
func (s *OrderApplicationService) HandlePaymentCallback(ctx context.Context, cb port.PaymentCallback) (err error) {
	ctx, span := s.tracer.Start(ctx, "app.HandlePaymentCallback", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.transaction_key", cb.TransactionKey),
		attribute.String("payment.outcome", string(cb.Outcome)),
	)
	defer func() {
		s.Metrics.ObserveCallback(err)
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	if strings.TrimSpace(cb.TransactionKey) == "" {
		return errInvalidRequest.Of("transaction key is required")
	}
	if cb.Outcome != port.OutcomeSuccess && cb.Outcome != port.OutcomeFailed {
		return errInvalidRequest.Of("unknown callback outcome %q", cb.Outcome)
	}

	status, err := s.settle(ctx, cb.TransactionKey, cb.Outcome, cb.Reason, true)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("transaction_key", cb.TransactionKey).
			Str("outcome", string(cb.Outcome)).Msg("payment callback rejected")
		return err
	}
	logger.Ctx(ctx).Info().Str("transaction_key", cb.TransactionKey).Str("status", string(status)).
		Msg("payment callback applied")
	return nil
}

// settle 把 PROCESSING 的支付和对应订单推进到终态。先锁订单再锁支付，与取消订单的加锁顺序一致。
// strict 为 false 时，支付已不在 PROCESSING（回调先到）则直接返回当前状态。
func (s *OrderApplicationService) settle(ctx context.Context, key string, outcome port.Outcome, reason string, strict bool) (paymentdomain.Status, error) {
	var status paymentdomain.Status
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		found, err := s.Payments.FindByTransactionKey(ctx, key)
		if err != nil {
			return err
		}
		order, err := s.Orders.FindByIDForUpdate(ctx, found.OrderID)
		if err != nil {
			return err
		}
		payment, err := s.Payments.FindByTransactionKeyForUpdate(ctx, key)
		if err != nil {
			return err
		}

		if payment.Status != paymentdomain.StatusProcessing {
			if !strict {
				status = payment.Status
				return nil
			}
			return errCallbackRejected.Of("payment %s is %s, callback rejected", key, payment.Status)
		}

		if outcome == port.OutcomeSuccess {
			if err := payment.CompleteSuccess(now); err != nil {
				return err
			}
			if err := order.CompletePayment(now); err != nil {
				return err
			}
		} else {
			if reason == "" {
				reason = "payment failed"
			}
			if err := payment.CompleteFailure(reason, now); err != nil {
				return err
			}
			if err := order.FailPayment(now); err != nil {
				return err
			}
		}

		if err := s.Payments.Update(ctx, payment); err != nil {
			return err
		}
		if err := s.Orders.Update(ctx, order); err != nil {
			return err
		}
		status = payment.Status
		return nil
	})
	return status, err
}

// CancelOrder 取消订单，并取消该订单上仍在进行中的支付。库存和积分不退回。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, orderID int64, userID string) (detail *OrderDetail, err error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.String("user.id", userID))
	defer func() {
		if err != nil {
			tracing.Fail(span, err)
		}
	}()

	var order *domain.Order
	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.now()
		o, err := s.ownedOrder(ctx, orderID, userID, true)
		if err != nil {
			return err
		}
		if err := o.Cancel(now); err != nil {
			return err
		}
		payments, err := s.Payments.ListByOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		for _, p := range payments {
			if !p.IsOpen() {
				continue
			}
			if err := p.Cancel(now); err != nil {
				return err
			}
			if err := s.Payments.Update(ctx, p); err != nil {
				return err
			}
		}
		order = o
		return s.Orders.Update(ctx, o)
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().Int64("order_id", orderID).Str("user_id", userID).Msg("order cancelled")
	return toOrderDetail(order), nil
}

// GetPayment 按交易号查询用户自己的支付。
func (s *OrderApplicationService) GetPayment(ctx context.Context, transactionKey, userID string) (*PaymentDetail, error) {
	if strings.TrimSpace(transactionKey) == "" || strings.TrimSpace(userID) == "" {
		return nil, errInvalidRequest.Of("transaction key and user id are required")
	}
	p, err := s.Payments.FindByTransactionKey(ctx, transactionKey)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, paymentdomain.ErrPaymentNotFound.Of("payment with transaction key %s not found", transactionKey)
	}
	return toPaymentDetail(p), nil
}

// ListPayments 返回订单上的全部支付尝试。
func (s *OrderApplicationService) ListPayments(ctx context.Context, orderID int64, userID string) ([]*PaymentDetail, error) {
	if _, err := s.ownedOrder(ctx, orderID, userID, false); err != nil {
		return nil, err
	}
	payments, err := s.Payments.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]*PaymentDetail, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentDetail(p))
	}
	return out, nil
}

// ChargePoints 充值积分，返回新余额。
func (s *OrderApplicationService) ChargePoints(ctx context.Context, userID string, amount int64) (int64, error) {
	return s.Points.Charge(ctx, userID, amount)
}

func (s *OrderApplicationService) GetPoints(ctx context.Context, userID string) (int64, error) {
	return s.Points.Balance(ctx, userID)
}
