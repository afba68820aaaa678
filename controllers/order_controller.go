package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bamboo-bazaar/storefront-api/middleware"
	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// OrderItemRequest is one requested line. Storefront clients send the
// product id as "product"; both spellings are accepted.
type OrderItemRequest struct {
	ProductID uint    `json:"product_id"`
	Product   uint    `json:"product"`
	Quantity  int     `json:"quantity"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

func (r OrderItemRequest) toInput() services.OrderItemInput {
	id := r.ProductID
	if id == 0 {
		id = r.Product
	}
	return services.OrderItemInput{
		ProductID: id,
		Quantity:  r.Quantity,
		Name:      r.Name,
		Price:     r.Price,
	}
}

// CreateOrderRequest represents the request body for creating an order.
// The camelCase fields are the storefront's spelling of the same values;
// when both are sent the snake_case one wins.
type CreateOrderRequest struct {
	Items           []OrderItemRequest   `json:"items" binding:"required,min=1"`
	Address         models.Address       `json:"address"`
	DeliveryAddress *models.Address      `json:"delivery_address"`
	DeliveryDate    string               `json:"delivery_date"` // YYYY-MM-DD or RFC 3339
	DeliveryTime    string               `json:"delivery_time"`
	PaymentMethod   models.PaymentMethod `json:"payment_method"`
	PaymentOrderID  string               `json:"payment_order_id"`

	DeliveryAddressCamel *models.Address      `json:"deliveryAddress"`
	DeliveryDateCamel    string               `json:"deliveryDate"`
	DeliveryTimeCamel    string               `json:"deliveryTime"`
	PaymentMethodCamel   models.PaymentMethod `json:"paymentMethod"`
	PaymentOrderIDCamel  string               `json:"paymentOrderId"`

	// PaymentStatus is accepted from older clients and ignored; orders
	// always start unpaid.
	PaymentStatus      string `json:"payment_status"`
	PaymentStatusCamel string `json:"paymentStatus"`
}

func (r CreateOrderRequest) toInput() (services.CreateOrderInput, error) {
	items := make([]services.OrderItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, item.toInput())
	}

	in := services.CreateOrderInput{
		Items:           items,
		Address:         r.Address,
		DeliveryAddress: r.DeliveryAddress,
		DeliveryTime:    firstNonEmptyRaw(r.DeliveryTime, r.DeliveryTimeCamel),
		PaymentMethod:   models.PaymentMethod(firstNonEmptyRaw(string(r.PaymentMethod), string(r.PaymentMethodCamel))),
		PaymentOrderID:  firstNonEmptyRaw(r.PaymentOrderID, r.PaymentOrderIDCamel),
	}
	if in.DeliveryAddress == nil {
		in.DeliveryAddress = r.DeliveryAddressCamel
	}
	if date := firstNonEmptyRaw(r.DeliveryDate, r.DeliveryDateCamel); date != "" {
		parsed, err := parseDeliveryDate(date)
		if err != nil {
			return services.CreateOrderInput{}, err
		}
		in.DeliveryDate = &parsed
	}
	return in, nil
}

func firstNonEmptyRaw(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDeliveryDate(value string) (time.Time, error) {
	if date, err := time.Parse("2006-01-02", value); err == nil {
		return date, nil
	}
	date, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("delivery_date must be YYYY-MM-DD or RFC 3339: %w", err)
	}
	return date, nil
}

// UpdateOrderStatusRequest represents the request body for a staff status change
type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// VerifyOTPRequest represents the request body for confirming delivery.
// The order id may be sent as order_id or orderId.
type VerifyOTPRequest struct {
	OrderID      string `json:"order_id" binding:"required_without=OrderIDCamel"`
	OrderIDCamel string `json:"orderId" binding:"required_without=OrderID"`
	OTP          string `json:"otp" binding:"required"`
}

func (r VerifyOTPRequest) orderID() string {
	return firstNonEmptyRaw(r.OrderID, r.OrderIDCamel)
}

// OrderController serves the /orders endpoints
type OrderController struct {
	orders *services.OrderService
	responder
}

// NewOrderController creates the order handlers
func NewOrderController(orders *services.OrderService, logger *logrus.Logger, production bool) *OrderController {
	return &OrderController{orders: orders, responder: newResponder(logger, production)}
}

// CreateOrder handles POST /api/v1/orders - places a pending order
func (oc *OrderController) CreateOrder(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		oc.unauthorized(c)
		return
	}

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.invalid(c, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		oc.invalid(c, err)
		return
	}

	order, emailStatus, err := oc.orders.CreateOrder(c.Request.Context(), user.ID, in)
	if err != nil {
		oc.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":      true,
		"data":         order,
		"email_status": emailStatus,
	})
}

// ListMyOrders handles GET /api/v1/orders - the caller's orders, newest first
func (oc *OrderController) ListMyOrders(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		oc.unauthorized(c)
		return
	}

	page, limit, err := pageParams(c)
	if err != nil {
		oc.invalid(c, err)
		return
	}

	result, err := oc.orders.ListUserOrders(c.Request.Context(), user.ID, page, limit)
	if err != nil {
		oc.fail(c, err)
		return
	}
	oc.ok(c, http.StatusOK, result)
}

// ListAllOrders handles GET /api/v1/orders/admin/all - every order (admin only)
func (oc *OrderController) ListAllOrders(c *gin.Context) {
	page, limit, err := pageParams(c)
	if err != nil {
		oc.invalid(c, err)
		return
	}

	result, err := oc.orders.ListAllOrders(c.Request.Context(), page, limit)
	if err != nil {
		oc.fail(c, err)
		return
	}
	oc.ok(c, http.StatusOK, result)
}

// GetOrder handles GET /api/v1/orders/:id - visible to the owner and admins
func (oc *OrderController) GetOrder(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		oc.unauthorized(c)
		return
	}

	order, err := oc.orders.GetOrder(c.Request.Context(), c.Param("id"), user.ID, user.IsAdmin())
	if err != nil {
		oc.fail(c, err)
		return
	}
	oc.ok(c, http.StatusOK, order)
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status (admin only)
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.invalid(c, err)
		return
	}

	order, err := oc.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		oc.fail(c, err)
		return
	}
	oc.ok(c, http.StatusOK, order)
}

// VerifyDeliveryOTP handles POST /api/v1/orders/verify-otp - the buyer
// confirms hand-off with the code from the delivery alert
func (oc *OrderController) VerifyDeliveryOTP(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		oc.unauthorized(c)
		return
	}

	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.invalid(c, err)
		return
	}

	order, err := oc.orders.ConfirmDelivery(c.Request.Context(), req.orderID(), user.ID, req.OTP)
	if err != nil {
		oc.fail(c, err)
		return
	}
	oc.ok(c, http.StatusOK, order)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (oc *OrderController) CancelOrder(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		oc.unauthorized(c)
		return
	}

	order, err := oc.orders.CancelOrder(c.Request.Context(), c.Param("id"), user.ID)
	if err != nil {
		oc.fail(c, err)
		return
	}
	oc.ok(c, http.StatusOK, order)
}

// pageParams reads the page and limit query parameters
func pageParams(c *gin.Context) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", key)
	}
	return v, nil
}
