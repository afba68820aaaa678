package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	sideEffectTimeout = 5 * time.Second

	// publishTimeout bounds the broker metadata lookup; the write itself
	// completes in the background
	publishTimeout = time.Second
)

// OrderItemInput is one requested line. Price and Name are what the client
// saw; both are replaced from the catalog.
type OrderItemInput struct {
	ProductID uint    `json:"product_id"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name,omitempty"`
	Price     float64 `json:"price,omitempty"`
}

// CreateOrderInput is everything a buyer submits to place an order
type CreateOrderInput struct {
	Items           []OrderItemInput     `json:"items"`
	Address         models.Address       `json:"address"`
	DeliveryAddress *models.Address      `json:"delivery_address,omitempty"`
	DeliveryDate    *time.Time           `json:"delivery_date,omitempty"`
	DeliveryTime    string               `json:"delivery_time,omitempty"`
	PaymentMethod   models.PaymentMethod `json:"payment_method,omitempty"`
	PaymentOrderID  string               `json:"payment_order_id,omitempty"`
}

// PaymentConfirmation is the proof of payment the client sends back after
// checkout. When Order is set the order is created from it; otherwise an
// existing order is looked up by GatewayOrderID.
type PaymentConfirmation struct {
	GatewayOrderID string            `json:"razorpay_order_id"`
	PaymentID      string            `json:"razorpay_payment_id"`
	Signature      string            `json:"razorpay_signature"`
	Order          *CreateOrderInput `json:"orderData,omitempty"`
}

// Pagination describes one page of a listing
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// OrderPage is a page of orders with its pagination info
type OrderPage struct {
	Orders     []models.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// OrderServiceDeps are the collaborators of OrderService. Store, Gateway
// and Notifier are required.
type OrderServiceDeps struct {
	Store    repository.Store
	Gateway  PaymentGateway
	Notifier OrderNotifier
	Receipts ReceiptStore
	Events   EventPublisher
	Logger   *logrus.Logger
	Now      func() time.Time
}

// OrderService owns the order state machine: creation, payment
// confirmation, status changes, delivery hand-off and cancellation
type OrderService struct {
	store    repository.Store
	gateway  PaymentGateway
	notifier OrderNotifier
	receipts ReceiptStore
	events   EventPublisher
	logger   *logrus.Logger
	now      func() time.Time
}

// NewOrderService creates the order service
func NewOrderService(deps OrderServiceDeps) *OrderService {
	s := &OrderService{
		store:    deps.Store,
		gateway:  deps.Gateway,
		notifier: deps.Notifier,
		receipts: deps.Receipts,
		events:   deps.Events,
		logger:   deps.Logger,
		now:      deps.Now,
	}
	if s.receipts == nil {
		s.receipts = NoopReceiptStore{}
	}
	if s.events == nil {
		s.events = NoopEventPublisher{}
	}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// CreateOrder places a pending order for userID. Lines are priced from
// the catalog and stock is taken in the same transaction as the insert.
// Emails are sent after commit and only reported.
func (s *OrderService) CreateOrder(ctx context.Context, userID uint, in CreateOrderInput) (*models.Order, NotificationResult, error) {
	if err := validateCreateOrder(in); err != nil {
		return nil, NotificationResult{}, err
	}

	var paymentOrderID *string
	if ref := strings.TrimSpace(in.PaymentOrderID); ref != "" {
		paymentOrderID = &ref
	}

	order, err := s.placeOrder(ctx, userID, in, placement{
		status:         models.OrderStatusPending,
		paymentStatus:  models.PaymentStatusPending,
		paymentOrderID: paymentOrderID,
	})
	if errors.Is(err, errPaymentOrderTaken) {
		return nil, NotificationResult{}, withMessage(ErrValidation, "Payment order %s is already attached to an order", *paymentOrderID)
	}
	if err != nil {
		return nil, NotificationResult{}, err
	}

	ordersCreated.WithLabelValues(string(order.PaymentMethod)).Inc()
	s.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"user_id":        userID,
		"total_amount":   order.TotalAmount,
		"payment_method": order.PaymentMethod,
	}).Info("Order created")

	s.publish(ctx, EventOrderCreated, order)
	result := s.notifier.NotifyOrderPlaced(ctx, order)
	return order, result, nil
}

// VerifyPayment authenticates a gateway confirmation and applies it. A
// bad signature is rejected before anything is read or written.
func (s *OrderService) VerifyPayment(ctx context.Context, userID uint, conf PaymentConfirmation) (*models.Order, NotificationResult, error) {
	if conf.GatewayOrderID == "" || conf.PaymentID == "" || conf.Signature == "" {
		return nil, NotificationResult{}, withMessage(ErrValidation, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	if !s.gateway.VerifySignature(conf.GatewayOrderID, conf.PaymentID, conf.Signature) {
		paymentVerifications.WithLabelValues("invalid_signature").Inc()
		s.logger.WithFields(logrus.Fields{
			"gateway_order_id": conf.GatewayOrderID,
			"user_id":          userID,
		}).Warn("Rejected payment confirmation with invalid signature")
		return nil, NotificationResult{}, ErrInvalidSignature
	}

	if conf.Order != nil {
		return s.confirmNewOrder(ctx, userID, conf)
	}
	return s.confirmExistingOrder(ctx, userID, conf)
}

// confirmNewOrder creates the order straight into confirmed/paid. A
// replay of the same confirmation returns the order it already created.
// The money is already taken, so a stock shortfall does not reject the
// order; the short lines are backordered and the order flagged for staff.
func (s *OrderService) confirmNewOrder(ctx context.Context, userID uint, conf PaymentConfirmation) (*models.Order, NotificationResult, error) {
	if err := validateCreateOrder(*conf.Order); err != nil {
		return nil, NotificationResult{}, err
	}

	existing, err := s.store.Orders().FindByPaymentOrderID(ctx, conf.GatewayOrderID)
	switch {
	case err == nil:
		return s.replayedConfirmation(existing, userID, conf.PaymentID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, NotificationResult{}, internal(err)
	}

	gatewayOrderID, paymentID := conf.GatewayOrderID, conf.PaymentID
	order, err := s.placeOrder(ctx, userID, *conf.Order, placement{
		status:         models.OrderStatusConfirmed,
		paymentStatus:  models.PaymentStatusPaid,
		paymentOrderID: &gatewayOrderID,
		paymentID:      &paymentID,
		backorder:      true,
	})
	if errors.Is(err, errPaymentOrderTaken) {
		// A concurrent confirmation inserted it first.
		existing, err := s.store.Orders().FindByPaymentOrderID(ctx, conf.GatewayOrderID)
		if err != nil {
			return nil, NotificationResult{}, internal(err)
		}
		return s.replayedConfirmation(existing, userID, conf.PaymentID)
	}
	if err != nil {
		return nil, NotificationResult{}, err
	}

	ordersCreated.WithLabelValues(string(order.PaymentMethod)).Inc()
	if order.NeedsReview {
		paidBackorders.Inc()
		s.logger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"payment_id": paymentID,
		}).Warn("Paid order placed with stock shortfall, needs review")
	}
	return s.afterPayment(ctx, order), s.notifier.NotifyOrderPlaced(ctx, order), nil
}

// confirmExistingOrder moves a pending order created with a placeholder
// gateway reference to confirmed/paid
func (s *OrderService) confirmExistingOrder(ctx context.Context, userID uint, conf PaymentConfirmation) (*models.Order, NotificationResult, error) {
	order, err := s.store.Orders().FindByPaymentOrderID(ctx, conf.GatewayOrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotificationResult{}, ErrOrderNotFound
		}
		return nil, NotificationResult{}, internal(err)
	}
	if order.UserID != userID {
		return nil, NotificationResult{}, ErrForbidden
	}
	if order.PaymentStatus == models.PaymentStatusPaid {
		return s.replayedConfirmation(order, userID, conf.PaymentID)
	}
	if order.Status != models.OrderStatusPending {
		return nil, NotificationResult{}, withMessage(ErrInvalidTransition, "Order is %s and can no longer be paid", order.Status)
	}

	changed, err := s.store.Orders().TransitionStatus(ctx, order.ID, models.OrderStatusPending, map[string]interface{}{
		"status":         string(models.OrderStatusConfirmed),
		"payment_status": string(models.PaymentStatusPaid),
		"payment_id":     conf.PaymentID,
	})
	if err != nil {
		return nil, NotificationResult{}, internal(err)
	}

	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, NotificationResult{}, err
	}
	if !changed {
		// Lost a race with another confirmation or a cancellation.
		if updated.PaymentStatus == models.PaymentStatusPaid {
			return s.replayedConfirmation(updated, userID, conf.PaymentID)
		}
		return nil, NotificationResult{}, withMessage(ErrInvalidTransition, "Order is %s and can no longer be paid", updated.Status)
	}

	statusTransitions.WithLabelValues(string(models.OrderStatusPending), string(models.OrderStatusConfirmed)).Inc()
	return s.afterPayment(ctx, updated), s.notifier.NotifyOrderPlaced(ctx, updated), nil
}

// replayedConfirmation handles a confirmation for an order that is
// already paid. The same payment is accepted without side effects.
func (s *OrderService) replayedConfirmation(order *models.Order, userID uint, paymentID string) (*models.Order, NotificationResult, error) {
	if order.UserID != userID {
		return nil, NotificationResult{}, ErrForbidden
	}
	if order.PaymentID == nil || *order.PaymentID != paymentID {
		paymentVerifications.WithLabelValues("payment_reused").Inc()
		return nil, NotificationResult{}, ErrPaymentReused
	}
	paymentVerifications.WithLabelValues("replayed").Inc()
	s.logger.WithField("order_id", order.ID).Info("Payment confirmation replayed, returning existing order")
	return order, NotificationResult{Skipped: true}, nil
}

// afterPayment runs the post-commit side effects of a verified payment
func (s *OrderService) afterPayment(ctx context.Context, order *models.Order) *models.Order {
	paymentVerifications.WithLabelValues("confirmed").Inc()
	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"payment_id": deref(order.PaymentID),
	}).Info("Payment verified")

	s.publish(ctx, EventOrderPaid, order)
	s.archiveReceipt(ctx, order)
	return order
}

// UpdateStatus moves an order to status on behalf of staff. Cancellation
// goes through the same compensation as a buyer cancel.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, withMessage(ErrInvalidStatus, "Invalid status %q", status)
	}

	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internal(err)
	}

	if status == models.OrderStatusCancelled {
		return s.cancel(ctx, order)
	}
	return s.advance(ctx, order, status)
}

// ConfirmDelivery marks the buyer's order delivered when otp matches the
// code issued at creation
func (s *OrderService) ConfirmDelivery(ctx context.Context, orderID string, userID uint, otp string) (*models.Order, error) {
	order, err := s.store.Orders().FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internal(err)
	}

	if !otpMatches(order.OTP, strings.TrimSpace(otp)) {
		s.logger.WithField("order_id", orderID).Warn("Delivery confirmation with wrong OTP")
		return nil, ErrInvalidOTP
	}

	return s.advance(ctx, order, models.OrderStatusDelivered)
}

// advance applies a forward transition checked against the transition
// table. Delivering a cash on delivery order also marks it paid.
func (s *OrderService) advance(ctx context.Context, order *models.Order, next models.OrderStatus) (*models.Order, error) {
	from := order.Status
	if !from.CanTransitionTo(next) {
		return nil, withMessage(ErrInvalidTransition, "Cannot change order status from %s to %s", from, next)
	}

	fields := map[string]interface{}{"status": string(next)}
	if next == models.OrderStatusDelivered && order.IsCashOnDelivery() {
		fields["payment_status"] = string(models.PaymentStatusPaid)
	}

	changed, err := s.store.Orders().TransitionStatus(ctx, order.ID, from, fields)
	if err != nil {
		return nil, internal(err)
	}
	if !changed {
		return nil, withMessage(ErrInvalidTransition, "Order status changed while updating, please retry")
	}

	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	statusTransitions.WithLabelValues(string(from), string(next)).Inc()
	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     from,
		"to":       next,
	}).Info("Order status updated")
	s.publish(ctx, EventOrderStatusChanged, updated)
	return updated, nil
}

// CancelOrder cancels the buyer's own order and puts its items back in
// stock
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, userID uint) (*models.Order, error) {
	order, err := s.store.Orders().FindByIDForUser(ctx, orderID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internal(err)
	}
	return s.cancel(ctx, order)
}

// cancel flips the order to cancelled and restocks its items in one
// transaction. The conditional update only matches once per order, so
// repeated or concurrent calls never credit stock twice.
func (s *OrderService) cancel(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.Status.IsTerminal() {
		return nil, withMessage(ErrNotCancellable, "Order is already %s", order.Status)
	}

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		cancelled, err := tx.Orders().MarkCancelled(ctx, order.ID)
		if err != nil {
			return err
		}
		if !cancelled {
			return ErrNotCancellable
		}
		for _, item := range order.Items {
			if item.Backordered {
				continue
			}
			if err := tx.Products().Restock(ctx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, internal(err)
	}

	updated, err := s.reload(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	statusTransitions.WithLabelValues(string(order.Status), string(models.OrderStatusCancelled)).Inc()
	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     order.Status,
		"items":    len(order.Items),
	}).Info("Order cancelled and stock restored")
	s.publish(ctx, EventOrderCancelled, updated)
	return updated, nil
}

// GetOrder returns an order to its owner or to an admin
func (s *OrderService) GetOrder(ctx context.Context, orderID string, userID uint, isAdmin bool) (*models.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internal(err)
	}
	if !isAdmin && order.UserID != userID {
		return nil, ErrForbidden
	}

	if order.ReceiptKey != nil && *order.ReceiptKey != "" {
		url, err := s.receipts.GetReceiptURL(ctx, *order.ReceiptKey)
		if err != nil {
			s.logger.WithField("order_id", order.ID).WithError(err).Warn("Failed to generate receipt URL")
		} else if url != "" {
			order.ReceiptURL = &url
		}
	}
	return order, nil
}

// ListUserOrders returns a page of the user's orders, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID uint, page, limit int) (*OrderPage, error) {
	p := normalizePage(page, limit)
	orders, total, err := s.store.Orders().ListByUser(ctx, userID, p)
	if err != nil {
		return nil, internal(err)
	}
	return newOrderPage(orders, total, p), nil
}

// ListAllOrders returns a page of all orders for staff
func (s *OrderService) ListAllOrders(ctx context.Context, page, limit int) (*OrderPage, error) {
	p := normalizePage(page, limit)
	orders, total, err := s.store.Orders().ListAll(ctx, p)
	if err != nil {
		return nil, internal(err)
	}
	return newOrderPage(orders, total, p), nil
}

// CreatePaymentOrder opens a gateway order the client pays against
func (s *OrderService) CreatePaymentOrder(ctx context.Context, amount float64, currency, receipt string) (*RemoteOrder, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, withMessage(ErrValidation, "Amount must be greater than zero")
	}
	remote, err := s.gateway.CreateRemoteOrder(ctx, amount, currency, receipt)
	if err != nil {
		s.logger.WithError(err).Error("Failed to create gateway order")
		return nil, err
	}
	return remote, nil
}

// placement is the initial state of an order being inserted
type placement struct {
	status         models.OrderStatus
	paymentStatus  models.PaymentStatus
	paymentOrderID *string
	paymentID      *string

	// backorder keeps lines that cannot be reserved instead of failing.
	// Set once the buyer has already paid.
	backorder bool
}

// errPaymentOrderTaken means another order already carries the gateway
// order reference
var errPaymentOrderTaken = errors.New("payment order is already attached to an order")

// placeOrder prices the lines, takes stock and inserts the order in one
// transaction, then reloads it with items and user
func (s *OrderService) placeOrder(ctx context.Context, userID uint, in CreateOrderInput, p placement) (*models.Order, error) {
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, internal(err)
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, internal(err)
	}

	method := in.PaymentMethod
	if method == "" {
		method = models.PaymentMethodOnline
	}
	deliveryAddress := in.Address
	if in.DeliveryAddress != nil && in.DeliveryAddress.IsComplete() {
		deliveryAddress = *in.DeliveryAddress
	}

	order := &models.Order{
		UserID:          userID,
		Address:         in.Address,
		DeliveryAddress: deliveryAddress,
		DeliveryDate:    in.DeliveryDate,
		DeliveryTime:    in.DeliveryTime,
		Status:          p.status,
		PaymentMethod:   method,
		PaymentStatus:   p.paymentStatus,
		PaymentOrderID:  p.paymentOrderID,
		PaymentID:       p.paymentID,
		OTP:             otp,
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if p.paymentOrderID != nil {
			_, err := tx.Orders().FindByPaymentOrderID(ctx, *p.paymentOrderID)
			if err == nil {
				return errPaymentOrderTaken
			}
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
		}

		items, err := s.priceItems(ctx, tx, in.Items, p.backorder)
		if err != nil {
			return err
		}
		for i := range items {
			if items[i].Backordered {
				continue
			}
			reserved, err := tx.Products().Reserve(ctx, items[i].ProductID, items[i].Quantity)
			if err != nil {
				return err
			}
			if reserved {
				continue
			}
			if !p.backorder {
				return withMessage(ErrInsufficientStock, "Not enough stock for %s", items[i].Name)
			}
			items[i].Backordered = true
		}

		order.Items = items
		order.TotalAmount = models.SumItems(items)
		order.NeedsReview = hasBackorders(items)
		return tx.Orders().Create(ctx, order)
	})
	if errors.Is(err, errPaymentOrderTaken) {
		return nil, err
	}
	if err != nil {
		return nil, internal(err)
	}

	return s.reload(ctx, order.ID)
}

// priceItems snapshots name and current effective price for every line.
// With backorder set, an unavailable product is kept as a backordered
// line instead of failing the order.
func (s *OrderService) priceItems(ctx context.Context, tx repository.Store, lines []OrderItemInput, backorder bool) ([]models.OrderItem, error) {
	ids := make([]uint, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}

	products, err := tx.Products().FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, withMessage(ErrProductNotFound, "Product %d not found", line.ProductID)
		}
		if !product.IsAvailable && !backorder {
			return nil, withMessage(ErrInsufficientStock, "%s is not available", product.Name)
		}
		if line.Price > 0 && models.RoundMoney(line.Price) != product.EffectivePrice(now) {
			s.logger.WithFields(logrus.Fields{
				"product_id":   product.ID,
				"client_price": line.Price,
				"price":        product.EffectivePrice(now),
			}).Debug("Client price differs from catalog, using catalog price")
		}
		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			Name:        product.Name,
			Quantity:    line.Quantity,
			Price:       product.EffectivePrice(now),
			Backordered: !product.IsAvailable,
		})
	}
	return items, nil
}

func hasBackorders(items []models.OrderItem) bool {
	for _, item := range items {
		if item.Backordered {
			return true
		}
	}
	return false
}

func (s *OrderService) reload(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, internal(err)
	}
	return order, nil
}

// publish emits an order event. Failures are logged only.
func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.events.Publish(pubCtx, NewOrderEvent(eventType, order, s.now())); err != nil {
		s.logger.WithFields(logrus.Fields{
			"order_id":   order.ID,
			"event_type": eventType,
		}).WithError(err).Warn("Failed to publish order event")
	}
}

// archiveReceipt stores the receipt for a paid order. Failures are
// logged only; the order stays paid.
func (s *OrderService) archiveReceipt(ctx context.Context, order *models.Order) {
	putCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	key, err := s.receipts.PutReceipt(putCtx, order)
	if err != nil {
		s.logger.WithField("order_id", order.ID).WithError(err).Warn("Failed to archive receipt")
		return
	}
	if key == "" {
		return
	}
	if err := s.store.Orders().SetReceiptKey(putCtx, order.ID, key); err != nil {
		s.logger.WithField("order_id", order.ID).WithError(err).Warn("Failed to record receipt key")
		return
	}
	order.ReceiptKey = &key
}

func validateCreateOrder(in CreateOrderInput) error {
	if len(in.Items) == 0 {
		return withMessage(ErrValidation, "Order must contain at least one item")
	}
	for i, item := range in.Items {
		if item.ProductID == 0 {
			return withMessage(ErrValidation, "Item %d is missing product_id", i+1)
		}
		if item.Quantity < 1 {
			return withMessage(ErrValidation, "Item %d must have a quantity of at least 1", i+1)
		}
	}
	if !in.Address.IsComplete() {
		return withMessage(ErrValidation, "Address requires street, city, state and pincode")
	}
	if in.PaymentMethod != "" && !in.PaymentMethod.IsValid() {
		return withMessage(ErrValidation, "Payment method must be Online or COD")
	}
	return nil
}

func normalizePage(page, limit int) repository.Page {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return repository.Page{Page: page, Limit: limit}
}

func newOrderPage(orders []models.Order, total int64, p repository.Page) *OrderPage {
	if orders == nil {
		orders = []models.Order{}
	}
	return &OrderPage{
		Orders: orders,
		Pagination: Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: int((total + int64(p.Limit) - 1) / int64(p.Limit)),
		},
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
