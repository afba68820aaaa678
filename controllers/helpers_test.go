package controllers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/bamboo-bazaar/storefront-api/services"
	"github.com/bamboo-bazaar/storefront-api/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testGatewaySecret = "controller_test_secret"

type controllerFixture struct {
	db       *gorm.DB
	store    *repository.GormStore
	orders   *services.OrderService
	gateway  *services.MockPaymentGateway
	mailer   *services.MockMailer
	receipts *services.MockReceiptStore
	logger   *logrus.Logger
	buyer    *models.User
	other    *models.User
	admin    *models.User
	product  *models.Product
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

func setupControllerTest(t *testing.T) *controllerFixture {
	db := testutil.NewTestDB(t)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &controllerFixture{
		db:       db,
		store:    repository.NewGormStore(db),
		gateway:  services.NewMockPaymentGateway(testGatewaySecret),
		mailer:   services.NewMockMailer(),
		receipts: services.NewMockReceiptStore(),
		logger:   logger,
	}
	f.orders = services.NewOrderService(services.OrderServiceDeps{
		Store:    f.store,
		Gateway:  f.gateway,
		Notifier: services.NewNotifier(f.mailer, "admin@example.com", time.Second, logger),
		Receipts: f.receipts,
		Events:   services.NewMockEventPublisher(),
		Logger:   logger,
	})

	f.buyer = testutil.CreateUser(t, db, "buyer", models.RoleUser)
	f.other = testutil.CreateUser(t, db, "other", models.RoleUser)
	f.admin = testutil.CreateUser(t, db, "admin", models.RoleAdmin)
	f.product = testutil.CreateProduct(t, db, "Bamboo Basket", 100, 10)
	return f
}

// as returns middleware authenticating requests as user
func as(user *models.User) gin.HandlerFunc {
	return testutil.MockAuthMiddleware(user.AuthSubject, user)
}

func performRequest(router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewBuffer(payload)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

func errorCode(response map[string]interface{}) string {
	errData, ok := response["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := errData["code"].(string)
	return code
}

func testAddressBody() map[string]interface{} {
	return map[string]interface{}{
		"street":  "12 Cane Lane",
		"city":    "Guwahati",
		"state":   "Assam",
		"pincode": "781001",
	}
}

// placeOrder creates an order for user through the service
func (f *controllerFixture) placeOrder(t *testing.T, user *models.User, qty int, paymentOrderID string) *models.Order {
	order, _, err := f.orders.CreateOrder(t.Context(), user.ID, services.CreateOrderInput{
		Items:          []services.OrderItemInput{{ProductID: f.product.ID, Quantity: qty}},
		Address:        models.Address{Street: "12 Cane Lane", City: "Guwahati", State: "Assam", Pincode: "781001"},
		PaymentOrderID: paymentOrderID,
	})
	require.NoError(t, err)
	return order
}
