package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testGatewaySecret = "test_razorpay_secret"
	testAdminEmail    = "orders@bamboobazaar.test"
)

type orderServiceFixture struct {
	svc      *OrderService
	db       *gorm.DB
	gateway  *MockPaymentGateway
	mailer   *MockMailer
	events   *MockEventPublisher
	receipts *MockReceiptStore
	buyer    models.User
	other    models.User
	product  models.Product
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func setupOrderServiceTest(t *testing.T) *orderServiceFixture {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, repository.AutoMigrate(db))

	f := &orderServiceFixture{
		db:       db,
		gateway:  NewMockPaymentGateway(testGatewaySecret),
		mailer:   NewMockMailer(),
		events:   NewMockEventPublisher(),
		receipts: NewMockReceiptStore(),
	}

	log := quietLogger()
	f.svc = NewOrderService(OrderServiceDeps{
		Store:    repository.NewGormStore(db),
		Gateway:  f.gateway,
		Notifier: NewNotifier(f.mailer, testAdminEmail, time.Second, log),
		Receipts: f.receipts,
		Events:   f.events,
		Logger:   log,
	})

	f.buyer = models.User{AuthSubject: "auth0|buyer", Name: "Asha Buyer", Email: "asha@example.com", Phone: "9876543210", Role: models.RoleUser}
	f.other = models.User{AuthSubject: "auth0|other", Name: "Other Buyer", Email: "other@example.com", Role: models.RoleUser}
	require.NoError(t, db.Create(&f.buyer).Error)
	require.NoError(t, db.Create(&f.other).Error)

	f.product = models.Product{Name: "Bamboo Basket", Price: 100, Stock: 10, IsAvailable: true}
	require.NoError(t, db.Create(&f.product).Error)
	return f
}

func testAddress() models.Address {
	return models.Address{Street: "12 Cane Lane", City: "Guwahati", State: "Assam", Pincode: "781001"}
}

func (f *orderServiceFixture) orderInput(qty int) CreateOrderInput {
	return CreateOrderInput{
		Items:   []OrderItemInput{{ProductID: f.product.ID, Quantity: qty}},
		Address: testAddress(),
	}
}

func (f *orderServiceFixture) productState(t *testing.T) models.Product {
	var p models.Product
	require.NoError(t, f.db.First(&p, f.product.ID).Error)
	return p
}

func (f *orderServiceFixture) orderState(t *testing.T, id string) models.Order {
	var o models.Order
	require.NoError(t, f.db.First(&o, "id = ?", id).Error)
	return o
}

func TestCreateOrder(t *testing.T) {
	f := setupOrderServiceTest(t)

	second := models.Product{Name: "Cane Lamp", Price: 349.5, Stock: 3, IsAvailable: true}
	require.NoError(t, f.db.Create(&second).Error)

	in := CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: f.product.ID, Quantity: 2},
			{ProductID: second.ID, Quantity: 1},
		},
		Address:       testAddress(),
		DeliveryTime:  "10am-1pm",
		PaymentMethod: models.PaymentMethodCOD,
	}

	order, result, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	require.NoError(t, err)

	assert.Equal(t, 549.5, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, models.PaymentMethodCOD, order.PaymentMethod)
	assert.Equal(t, testAddress(), order.DeliveryAddress, "delivery address defaults to the shipping address")
	assert.Len(t, order.Items, 2)
	assert.Equal(t, f.buyer.Email, order.User.Email)
	assert.Regexp(t, `^\d{6}$`, order.OTP)

	product := f.productState(t)
	assert.Equal(t, 8, product.Stock)
	assert.Equal(t, 2, product.SoldCount)

	assert.True(t, result.UserSent)
	assert.True(t, result.AdminSent)
	assert.Equal(t, []string{EventOrderCreated}, f.events.Types())
}

func TestCreateOrder_RepricesFromCatalog(t *testing.T) {
	f := setupOrderServiceTest(t)

	in := f.orderInput(2)
	in.Items[0].Price = 1
	in.Items[0].Name = "Free Basket"

	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	require.NoError(t, err)

	require.Len(t, order.Items, 1)
	assert.Equal(t, 100.0, order.Items[0].Price)
	assert.Equal(t, "Bamboo Basket", order.Items[0].Name)
	assert.Equal(t, 200.0, order.TotalAmount)
}

func TestOrder_PriceSnapshotSurvivesCatalogChange(t *testing.T) {
	f := setupOrderServiceTest(t)
	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(2))
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&f.product).Updates(map[string]interface{}{
		"name":  "Deluxe Bamboo Basket",
		"price": 999,
	}).Error)
	f.advanceTo(t, order.ID, models.OrderStatusConfirmed)

	stored, err := f.svc.GetOrder(context.Background(), order.ID, f.buyer.ID, false)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 100.0, stored.Items[0].Price)
	assert.Equal(t, "Bamboo Basket", stored.Items[0].Name)
	assert.Equal(t, 200.0, stored.TotalAmount)
}

func TestCreateOrder_UsesActiveDiscount(t *testing.T) {
	f := setupOrderServiceTest(t)
	require.NoError(t, f.db.Model(&f.product).Updates(map[string]interface{}{
		"discount":           25,
		"is_discount_active": true,
	}).Error)

	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(2))
	require.NoError(t, err)
	assert.Equal(t, 75.0, order.Items[0].Price)
	assert.Equal(t, 150.0, order.TotalAmount)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := setupOrderServiceTest(t)

	tests := []struct {
		name   string
		mutate func(in *CreateOrderInput)
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"zero quantity", func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{"missing product id", func(in *CreateOrderInput) { in.Items[0].ProductID = 0 }},
		{"missing pincode", func(in *CreateOrderInput) { in.Address.Pincode = "" }},
		{"missing street", func(in *CreateOrderInput) { in.Address.Street = "" }},
		{"unknown payment method", func(in *CreateOrderInput) { in.PaymentMethod = "Cheque" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.orderInput(1)
			tt.mutate(&in)

			_, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
	assert.Equal(t, 10, f.productState(t).Stock)
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	f := setupOrderServiceTest(t)

	in := f.orderInput(1)
	in.Items = append(in.Items, OrderItemInput{ProductID: 9999, Quantity: 1})

	_, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Equal(t, KindNotFound, AsServiceError(err).Kind)
	assert.Equal(t, 10, f.productState(t).Stock)
}

func TestCreateOrder_InsufficientStockRollsBack(t *testing.T) {
	f := setupOrderServiceTest(t)

	scarce := models.Product{Name: "Rare Flute", Price: 50, Stock: 1, IsAvailable: true}
	require.NoError(t, f.db.Create(&scarce).Error)

	in := CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: f.product.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		},
		Address: testAddress(),
	}

	_, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// The first line's reservation is rolled back with the transaction
	assert.Equal(t, 10, f.productState(t).Stock)
	assert.Equal(t, 0, f.productState(t).SoldCount)

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, f.events.Events())
	assert.Empty(t, f.mailer.Sent())
}

func TestCreateOrder_UnavailableProduct(t *testing.T) {
	f := setupOrderServiceTest(t)
	require.NoError(t, f.db.Model(&f.product).Update("is_available", false).Error)

	_, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(1))
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestCreateOrder_UnknownUser(t *testing.T) {
	f := setupOrderServiceTest(t)

	_, _, err := f.svc.CreateOrder(context.Background(), 4242, f.orderInput(1))
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreateOrder_NotificationFailureDoesNotFailOrder(t *testing.T) {
	f := setupOrderServiceTest(t)
	f.mailer.FailFor(f.buyer.Email, errors.New("mailbox unavailable"))

	order, result, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(1))
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.False(t, result.UserSent)
	assert.Contains(t, result.UserError, "mailbox unavailable")
	assert.True(t, result.AdminSent)
	assert.Empty(t, result.AdminError)

	persisted := f.orderState(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, persisted.Status)
}

func TestCreateOrder_EventFailureDoesNotFailOrder(t *testing.T) {
	f := setupOrderServiceTest(t)
	f.events.FailWith(errors.New("broker down"))

	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(1))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
}

// stalledPublisher never reaches a broker
type stalledPublisher struct{}

func (stalledPublisher) Publish(ctx context.Context, _ OrderEvent) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stalledPublisher) Close() error { return nil }

func TestCreateOrder_StalledBrokerIsBounded(t *testing.T) {
	f := setupOrderServiceTest(t)
	log := quietLogger()
	svc := NewOrderService(OrderServiceDeps{
		Store:    repository.NewGormStore(f.db),
		Gateway:  f.gateway,
		Notifier: NewNotifier(f.mailer, testAdminEmail, time.Second, log),
		Events:   stalledPublisher{},
		Logger:   log,
	})

	start := time.Now()
	order, _, err := svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(1))
	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Less(t, time.Since(start), publishTimeout+time.Second)
}

func TestCreateOrder_DuplicatePaymentOrderID(t *testing.T) {
	f := setupOrderServiceTest(t)

	in := f.orderInput(1)
	in.PaymentOrderID = "order_dup"
	_, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	require.NoError(t, err)

	_, _, err = f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 9, f.productState(t).Stock)
}

// placePendingOrder creates an order awaiting payment against gatewayOrderID
func (f *orderServiceFixture) placePendingOrder(t *testing.T, gatewayOrderID string, qty int) *models.Order {
	in := f.orderInput(qty)
	in.PaymentOrderID = gatewayOrderID
	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	require.NoError(t, err)
	return order
}

func TestVerifyPayment_ExistingOrder(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "order_RZP100", 1)

	confirmed, result, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP100",
		PaymentID:      "pay_001",
		Signature:      f.gateway.Sign("order_RZP100", "pay_001"),
	})
	require.NoError(t, err)

	assert.Equal(t, order.ID, confirmed.ID)
	assert.Equal(t, models.OrderStatusConfirmed, confirmed.Status)
	assert.Equal(t, models.PaymentStatusPaid, confirmed.PaymentStatus)
	require.NotNil(t, confirmed.PaymentID)
	assert.Equal(t, "pay_001", *confirmed.PaymentID)
	assert.True(t, result.UserSent)

	persisted := f.orderState(t, order.ID)
	require.NotNil(t, persisted.ReceiptKey)
	assert.Equal(t, ReceiptKey(order.ID), *persisted.ReceiptKey)

	receipt, ok := f.receipts.Receipt(ReceiptKey(order.ID))
	require.True(t, ok)
	assert.Equal(t, "pay_001", receipt.PaymentID)
	assert.Equal(t, 100.0, receipt.TotalAmount)

	assert.Equal(t, []string{EventOrderCreated, EventOrderPaid}, f.events.Types())
}

func TestVerifyPayment_SingleBitMutationRejected(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "order_RZP200", 1)
	valid := f.gateway.Sign("order_RZP200", "pay_200")

	for i := 0; i < len(valid); i++ {
		for _, bit := range []byte{0x01, 0x02, 0x10} {
			mutated := []byte(valid)
			mutated[i] ^= bit

			_, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
				GatewayOrderID: "order_RZP200",
				PaymentID:      "pay_200",
				Signature:      string(mutated),
			})
			require.ErrorIs(t, err, ErrInvalidSignature, "position %d bit %#x", i, bit)
		}
	}

	persisted := f.orderState(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, persisted.Status)
	assert.Equal(t, models.PaymentStatusPending, persisted.PaymentStatus)
	assert.Nil(t, persisted.PaymentID)
	assert.Zero(t, f.receipts.Count())
}

func TestVerifyPayment_InvalidSignatureWithPayloadCreatesNothing(t *testing.T) {
	f := setupOrderServiceTest(t)
	in := f.orderInput(1)

	_, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP201",
		PaymentID:      "pay_201",
		Signature:      "deadbeef",
		Order:          &in,
	})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
	assert.Equal(t, 10, f.productState(t).Stock)
}

func TestVerifyPayment_MissingFields(t *testing.T) {
	f := setupOrderServiceTest(t)

	_, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{GatewayOrderID: "order_x"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestVerifyPayment_OrderNotFound(t *testing.T) {
	f := setupOrderServiceTest(t)

	_, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_missing",
		PaymentID:      "pay_1",
		Signature:      f.gateway.Sign("order_missing", "pay_1"),
	})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerifyPayment_OtherUsersOrder(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "order_RZP300", 1)

	_, _, err := f.svc.VerifyPayment(context.Background(), f.other.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP300",
		PaymentID:      "pay_300",
		Signature:      f.gateway.Sign("order_RZP300", "pay_300"),
	})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, models.PaymentStatusPending, f.orderState(t, order.ID).PaymentStatus)
}

func TestVerifyPayment_ReplayIsIdempotent(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "order_RZP400", 1)

	conf := PaymentConfirmation{
		GatewayOrderID: "order_RZP400",
		PaymentID:      "pay_400",
		Signature:      f.gateway.Sign("order_RZP400", "pay_400"),
	}
	_, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, conf)
	require.NoError(t, err)
	sentBefore := len(f.mailer.Sent())

	again, result, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, conf)
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)
	assert.True(t, result.Skipped)
	assert.Len(t, f.mailer.Sent(), sentBefore, "replay must not send email again")
	assert.Equal(t, []string{EventOrderCreated, EventOrderPaid}, f.events.Types())

	_, _, err = f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP400",
		PaymentID:      "pay_other",
		Signature:      f.gateway.Sign("order_RZP400", "pay_other"),
	})
	assert.ErrorIs(t, err, ErrPaymentReused)
}

func TestVerifyPayment_CancelledOrderCannotBePaid(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "order_RZP500", 1)
	_, err := f.svc.CancelOrder(context.Background(), order.ID, f.buyer.ID)
	require.NoError(t, err)

	_, _, err = f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP500",
		PaymentID:      "pay_500",
		Signature:      f.gateway.Sign("order_RZP500", "pay_500"),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.PaymentStatusPending, f.orderState(t, order.ID).PaymentStatus)
}

func TestVerifyPayment_NewOrderFromPayload(t *testing.T) {
	f := setupOrderServiceTest(t)
	in := f.orderInput(3)
	conf := PaymentConfirmation{
		GatewayOrderID: "order_RZP600",
		PaymentID:      "pay_600",
		Signature:      f.gateway.Sign("order_RZP600", "pay_600"),
		Order:          &in,
	}

	order, result, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, conf)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, 300.0, order.TotalAmount)
	require.NotNil(t, order.PaymentOrderID)
	assert.Equal(t, "order_RZP600", *order.PaymentOrderID)
	assert.Equal(t, "pay_600", *order.PaymentID)
	assert.True(t, result.UserSent)
	assert.Equal(t, 7, f.productState(t).Stock)
	assert.Equal(t, 1, f.receipts.Count())

	replay, result, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, conf)
	require.NoError(t, err)
	assert.Equal(t, order.ID, replay.ID)
	assert.True(t, result.Skipped)
	assert.Equal(t, 7, f.productState(t).Stock, "replay must not take stock again")

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestVerifyPayment_StockShortfallIsBackordered(t *testing.T) {
	f := setupOrderServiceTest(t)
	scarce := models.Product{Name: "Rare Flute", Price: 50, Stock: 1, IsAvailable: true}
	retired := models.Product{Name: "Old Cane Lamp", Price: 20, Stock: 5}
	require.NoError(t, f.db.Create(&scarce).Error)
	require.NoError(t, f.db.Create(&retired).Error)

	in := CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: f.product.ID, Quantity: 2},
			{ProductID: scarce.ID, Quantity: 2},
			{ProductID: retired.ID, Quantity: 1},
		},
		Address: testAddress(),
	}
	order, result, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP650",
		PaymentID:      "pay_650",
		Signature:      f.gateway.Sign("order_RZP650", "pay_650"),
		Order:          &in,
	})
	require.NoError(t, err, "a verified payment is never dropped")

	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.True(t, order.NeedsReview)
	assert.Equal(t, 320.0, order.TotalAmount)

	backordered := map[uint]bool{}
	for _, item := range order.Items {
		backordered[item.ProductID] = item.Backordered
	}
	assert.Equal(t, map[uint]bool{f.product.ID: false, scarce.ID: true, retired.ID: true}, backordered)

	assert.Equal(t, 8, f.productState(t).Stock)
	var stock []int
	require.NoError(t, f.db.Model(&models.Product{}).Where("id IN ?", []uint{scarce.ID, retired.ID}).Order("id").Pluck("stock", &stock).Error)
	assert.Equal(t, []int{1, 5}, stock, "short lines take no stock")

	assert.True(t, result.AdminSent)
	admin := f.mailer.SentTo(testAdminEmail)
	require.Len(t, admin, 1)
	assert.Contains(t, admin[0].TextBody, "STOCK SHORTFALL")
	assert.Contains(t, f.events.Types(), EventOrderPaid)
	assert.Equal(t, 1, f.receipts.Count())

	// only the reserved line goes back on cancel
	_, err = f.svc.CancelOrder(context.Background(), order.ID, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.productState(t).Stock)
	require.NoError(t, f.db.Model(&models.Product{}).Where("id IN ?", []uint{scarce.ID, retired.ID}).Order("id").Pluck("stock", &stock).Error)
	assert.Equal(t, []int{1, 5}, stock)
}

func TestVerifyPayment_PendingFlowStillRejectsShortfall(t *testing.T) {
	f := setupOrderServiceTest(t)

	_, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, f.orderInput(11))
	assert.ErrorIs(t, err, ErrInsufficientStock)

	var count int64
	f.db.Model(&models.Order{}).Count(&count)
	assert.Zero(t, count)
}

// staleLookupStore misses the first payment order lookup made outside a
// transaction, as if a concurrent confirmation committed right after it
type staleLookupStore struct {
	repository.Store
	missed bool
}

func (s *staleLookupStore) Orders() repository.OrderRepository {
	return &staleLookupOrders{OrderRepository: s.Store.Orders(), store: s}
}

type staleLookupOrders struct {
	repository.OrderRepository
	store *staleLookupStore
}

func (o *staleLookupOrders) FindByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.Order, error) {
	if !o.store.missed {
		o.store.missed = true
		return nil, repository.ErrNotFound
	}
	return o.OrderRepository.FindByPaymentOrderID(ctx, paymentOrderID)
}

func (f *orderServiceFixture) serviceWithStore(store repository.Store) *OrderService {
	log := quietLogger()
	return NewOrderService(OrderServiceDeps{
		Store:    store,
		Gateway:  f.gateway,
		Notifier: NewNotifier(f.mailer, testAdminEmail, time.Second, log),
		Receipts: f.receipts,
		Events:   f.events,
		Logger:   log,
	})
}

func TestVerifyPayment_ConcurrentInsertIsReplay(t *testing.T) {
	f := setupOrderServiceTest(t)
	in := f.orderInput(2)
	conf := PaymentConfirmation{
		GatewayOrderID: "order_RZP660",
		PaymentID:      "pay_660",
		Signature:      f.gateway.Sign("order_RZP660", "pay_660"),
		Order:          &in,
	}
	first, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, conf)
	require.NoError(t, err)
	sentBefore := len(f.mailer.Sent())

	racing := f.serviceWithStore(&staleLookupStore{Store: repository.NewGormStore(f.db)})
	replay, result, err := racing.VerifyPayment(context.Background(), f.buyer.ID, conf)
	require.NoError(t, err)
	assert.Equal(t, first.ID, replay.ID)
	assert.True(t, result.Skipped)
	assert.Len(t, f.mailer.Sent(), sentBefore, "no second round of emails")
	assert.Equal(t, 8, f.productState(t).Stock)

	other := conf
	other.PaymentID = "pay_661"
	other.Signature = f.gateway.Sign("order_RZP660", "pay_661")
	racing = f.serviceWithStore(&staleLookupStore{Store: repository.NewGormStore(f.db)})
	_, _, err = racing.VerifyPayment(context.Background(), f.buyer.ID, other)
	assert.ErrorIs(t, err, ErrPaymentReused)

	racing = f.serviceWithStore(&staleLookupStore{Store: repository.NewGormStore(f.db)})
	_, _, err = racing.VerifyPayment(context.Background(), f.other.ID, conf)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerifyPayment_ReceiptFailureDoesNotFailPayment(t *testing.T) {
	f := setupOrderServiceTest(t)
	f.receipts.FailWith(errors.New("bucket unavailable"))
	order := f.placePendingOrder(t, "order_RZP700", 1)

	confirmed, _, err := f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP700",
		PaymentID:      "pay_700",
		Signature:      f.gateway.Sign("order_RZP700", "pay_700"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, confirmed.PaymentStatus)
	assert.Nil(t, f.orderState(t, order.ID).ReceiptKey)
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 1)

	_, err := f.svc.UpdateStatus(context.Background(), order.ID, "shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.Equal(t, KindValidation, AsServiceError(err).Kind)
}

func TestUpdateStatus_NotFound(t *testing.T) {
	f := setupOrderServiceTest(t)

	_, err := f.svc.UpdateStatus(context.Background(), "missing", models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestUpdateStatus_TransitionTable(t *testing.T) {
	tests := []struct {
		name    string
		path    []models.OrderStatus
		next    models.OrderStatus
		wantErr error
	}{
		{"pending to confirmed", nil, models.OrderStatusConfirmed, nil},
		{"pending skips to delivered", nil, models.OrderStatusDelivered, ErrInvalidTransition},
		{"pending to out for delivery", nil, models.OrderStatusOutForDelivery, ErrInvalidTransition},
		{"pending to pending", nil, models.OrderStatusPending, ErrInvalidTransition},
		{"confirmed to out for delivery", []models.OrderStatus{models.OrderStatusConfirmed}, models.OrderStatusOutForDelivery, nil},
		{"confirmed back to pending", []models.OrderStatus{models.OrderStatusConfirmed}, models.OrderStatusPending, ErrInvalidTransition},
		{"delivered is terminal", []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusOutForDelivery, models.OrderStatusDelivered}, models.OrderStatusConfirmed, ErrInvalidTransition},
		{"delivered cannot be cancelled", []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusOutForDelivery, models.OrderStatusDelivered}, models.OrderStatusCancelled, ErrNotCancellable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupOrderServiceTest(t)
			order := f.placePendingOrder(t, "", 1)
			for _, step := range tt.path {
				_, err := f.svc.UpdateStatus(context.Background(), order.ID, step)
				require.NoError(t, err)
			}
			before := f.orderState(t, order.ID).Status

			updated, err := f.svc.UpdateStatus(context.Background(), order.ID, tt.next)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, before, f.orderState(t, order.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.next, updated.Status)
		})
	}
}

func (f *orderServiceFixture) advanceTo(t *testing.T, orderID string, statuses ...models.OrderStatus) {
	for _, s := range statuses {
		_, err := f.svc.UpdateStatus(context.Background(), orderID, s)
		require.NoError(t, err)
	}
}

func TestUpdateStatus_DeliveredMarksCODPaid(t *testing.T) {
	f := setupOrderServiceTest(t)
	in := f.orderInput(1)
	in.PaymentMethod = models.PaymentMethodCOD
	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	require.NoError(t, err)

	f.advanceTo(t, order.ID, models.OrderStatusConfirmed, models.OrderStatusOutForDelivery)
	assert.Equal(t, models.PaymentStatusPending, f.orderState(t, order.ID).PaymentStatus)

	delivered, err := f.svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.Equal(t, models.PaymentStatusPaid, delivered.PaymentStatus)
}

func TestUpdateStatus_DeliveredLeavesOnlinePaymentUntouched(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 1)

	// An online order with a payment id whose capture is still pending
	require.NoError(t, f.db.Model(&models.Order{}).Where("id = ?", order.ID).Updates(map[string]interface{}{
		"payment_id": "pay_pending_capture",
		"status":     string(models.OrderStatusOutForDelivery),
	}).Error)

	delivered, err := f.svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.Equal(t, models.PaymentStatusPending, delivered.PaymentStatus)
}

func TestUpdateStatus_CancelRestoresStockOnce(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 4)
	f.advanceTo(t, order.ID, models.OrderStatusConfirmed)
	assert.Equal(t, 6, f.productState(t).Stock)

	cancelled, err := f.svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.productState(t).Stock)

	_, err = f.svc.UpdateStatus(context.Background(), order.ID, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 10, f.productState(t).Stock)
	assert.Equal(t, 0, f.productState(t).SoldCount)
}

func TestConfirmDelivery(t *testing.T) {
	f := setupOrderServiceTest(t)
	in := f.orderInput(1)
	in.PaymentMethod = models.PaymentMethodCOD
	order, _, err := f.svc.CreateOrder(context.Background(), f.buyer.ID, in)
	require.NoError(t, err)
	f.advanceTo(t, order.ID, models.OrderStatusConfirmed, models.OrderStatusOutForDelivery)

	otp := f.orderState(t, order.ID).OTP
	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}

	_, err = f.svc.ConfirmDelivery(context.Background(), order.ID, f.buyer.ID, wrong)
	assert.ErrorIs(t, err, ErrInvalidOTP)
	assert.Equal(t, models.OrderStatusOutForDelivery, f.orderState(t, order.ID).Status)

	_, err = f.svc.ConfirmDelivery(context.Background(), order.ID, f.other.ID, otp)
	assert.ErrorIs(t, err, ErrOrderNotFound, "another user's order is invisible")

	delivered, err := f.svc.ConfirmDelivery(context.Background(), order.ID, f.buyer.ID, otp)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusDelivered, delivered.Status)
	assert.Equal(t, models.PaymentStatusPaid, delivered.PaymentStatus, "COD is paid on delivery")
}

func TestConfirmDelivery_RequiresOutForDelivery(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 1)
	otp := f.orderState(t, order.ID).OTP

	_, err := f.svc.ConfirmDelivery(context.Background(), order.ID, f.buyer.ID, otp)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusPending, f.orderState(t, order.ID).Status)

	// a confirmed order has not been dispatched yet
	f.advanceTo(t, order.ID, models.OrderStatusConfirmed)
	_, err = f.svc.ConfirmDelivery(context.Background(), order.ID, f.buyer.ID, otp)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, models.OrderStatusConfirmed, f.orderState(t, order.ID).Status)
}

func TestCancelOrder(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 3)
	assert.Equal(t, 7, f.productState(t).Stock)

	cancelled, err := f.svc.CancelOrder(context.Background(), order.ID, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.productState(t).Stock)
	assert.True(t, f.orderState(t, order.ID).StockRestored)

	_, err = f.svc.CancelOrder(context.Background(), order.ID, f.buyer.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 10, f.productState(t).Stock)

	assert.Equal(t, []string{EventOrderCreated, EventOrderCancelled}, f.events.Types())
}

func TestCancelOrder_Delivered(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 2)
	f.advanceTo(t, order.ID, models.OrderStatusConfirmed, models.OrderStatusOutForDelivery, models.OrderStatusDelivered)

	_, err := f.svc.CancelOrder(context.Background(), order.ID, f.buyer.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 8, f.productState(t).Stock)
}

func TestCancelOrder_OtherUser(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 1)

	_, err := f.svc.CancelOrder(context.Background(), order.ID, f.other.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, models.OrderStatusPending, f.orderState(t, order.ID).Status)
}

func TestCancelOrder_ConcurrentCallsRestoreOnce(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "", 5)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CancelOrder(context.Background(), order.ID, f.buyer.ID); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 10, f.productState(t).Stock)
}

func TestGetOrder(t *testing.T) {
	f := setupOrderServiceTest(t)
	order := f.placePendingOrder(t, "order_RZP800", 1)

	got, err := f.svc.GetOrder(context.Background(), order.ID, f.buyer.ID, false)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Nil(t, got.ReceiptURL)

	_, err = f.svc.GetOrder(context.Background(), order.ID, f.other.ID, false)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetOrder(context.Background(), order.ID, f.other.ID, true)
	assert.NoError(t, err, "admins can read any order")

	_, err = f.svc.GetOrder(context.Background(), "missing", f.buyer.ID, true)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, _, err = f.svc.VerifyPayment(context.Background(), f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_RZP800",
		PaymentID:      "pay_800",
		Signature:      f.gateway.Sign("order_RZP800", "pay_800"),
	})
	require.NoError(t, err)

	paid, err := f.svc.GetOrder(context.Background(), order.ID, f.buyer.ID, false)
	require.NoError(t, err)
	require.NotNil(t, paid.ReceiptURL)
	assert.Contains(t, *paid.ReceiptURL, ReceiptKey(order.ID))
}

func TestListOrders(t *testing.T) {
	f := setupOrderServiceTest(t)
	for i := 0; i < 3; i++ {
		f.placePendingOrder(t, "", 1)
	}
	_, _, err := f.svc.CreateOrder(context.Background(), f.other.ID, f.orderInput(1))
	require.NoError(t, err)

	page, err := f.svc.ListUserOrders(context.Background(), f.buyer.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, Pagination{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, page.Pagination)

	page, err = f.svc.ListUserOrders(context.Background(), f.buyer.ID, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)

	all, err := f.svc.ListAllOrders(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, all.Orders, 4)
	assert.Equal(t, Pagination{Page: 1, Limit: defaultPageSize, Total: 4, TotalPages: 1}, all.Pagination)

	empty, err := f.svc.ListUserOrders(context.Background(), 4242, 1, 500)
	require.NoError(t, err)
	assert.NotNil(t, empty.Orders)
	assert.Empty(t, empty.Orders)
	assert.Equal(t, maxPageSize, empty.Pagination.Limit)
}

func TestCreatePaymentOrder(t *testing.T) {
	f := setupOrderServiceTest(t)

	remote, err := f.svc.CreatePaymentOrder(context.Background(), 249.99, "", "rcpt_1")
	require.NoError(t, err)
	assert.Equal(t, int64(24999), remote.Amount)
	assert.Equal(t, DefaultCurrency, remote.Currency)
	assert.Equal(t, "rcpt_1", remote.Receipt)

	_, err = f.svc.CreatePaymentOrder(context.Background(), 0, "INR", "")
	assert.ErrorIs(t, err, ErrValidation)

	f.gateway.FailWith(errors.New("connection refused"))
	_, err = f.svc.CreatePaymentOrder(context.Background(), 10, "INR", "")
	assert.ErrorIs(t, err, ErrPaymentGateway)
	assert.Equal(t, KindUpstream, AsServiceError(err).Kind)
}

// Create, pay, then cancel: confirmed orders stay cancellable and a second
// cancel is rejected without touching stock.
func TestOrderLifecycle_EndToEnd(t *testing.T) {
	f := setupOrderServiceTest(t)
	ctx := context.Background()

	in := CreateOrderInput{
		Items:          []OrderItemInput{{ProductID: f.product.ID, Quantity: 2, Price: 100}},
		Address:        testAddress(),
		PaymentOrderID: "order_E2E",
	}
	order, _, err := f.svc.CreateOrder(ctx, f.buyer.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 200.0, order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, 8, f.productState(t).Stock)

	paid, _, err := f.svc.VerifyPayment(ctx, f.buyer.ID, PaymentConfirmation{
		GatewayOrderID: "order_E2E",
		PaymentID:      "pay_E2E",
		Signature:      f.gateway.Sign("order_E2E", "pay_E2E"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, paid.Status)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)

	cancelled, err := f.svc.CancelOrder(ctx, order.ID, f.buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, 10, f.productState(t).Stock)

	_, err = f.svc.CancelOrder(ctx, order.ID, f.buyer.ID)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 10, f.productState(t).Stock)
}
