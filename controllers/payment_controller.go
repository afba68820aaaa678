package controllers

import (
	"net/http"

	"github.com/bamboo-bazaar/storefront-api/middleware"
	"github.com/bamboo-bazaar/storefront-api/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CreatePaymentOrderRequest represents the request body for opening a
// gateway order. Amount is in rupees.
type CreatePaymentOrderRequest struct {
	Amount   float64 `json:"amount" binding:"required,gt=0"`
	Currency string  `json:"currency"`
	Receipt  string  `json:"receipt"`
}

// VerifyPaymentRequest is the checkout callback payload. Field names are
// the gateway's own.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string              `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string              `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string              `json:"razorpay_signature" binding:"required"`
	OrderData         *CreateOrderRequest `json:"orderData"`
}

// PaymentController serves the /payment endpoints
type PaymentController struct {
	orders *services.OrderService
	responder
}

// NewPaymentController creates the payment handlers
func NewPaymentController(orders *services.OrderService, logger *logrus.Logger, production bool) *PaymentController {
	return &PaymentController{orders: orders, responder: newResponder(logger, production)}
}

// CreatePaymentOrder handles POST /api/v1/payment/create-order
func (pc *PaymentController) CreatePaymentOrder(c *gin.Context) {
	var req CreatePaymentOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pc.invalid(c, err)
		return
	}

	remote, err := pc.orders.CreatePaymentOrder(c.Request.Context(), req.Amount, req.Currency, req.Receipt)
	if err != nil {
		pc.fail(c, err)
		return
	}

	pc.ok(c, http.StatusOK, gin.H{
		"order_id": remote.ID,
		"orderId":  remote.ID,
		"amount":   remote.Amount,
		"currency": remote.Currency,
		"receipt":  remote.Receipt,
	})
}

// VerifyPayment handles POST /api/v1/payment/verify-payment
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	user, err := middleware.CurrentUser(c)
	if err != nil {
		pc.unauthorized(c)
		return
	}

	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		pc.invalid(c, err)
		return
	}

	conf := services.PaymentConfirmation{
		GatewayOrderID: req.RazorpayOrderID,
		PaymentID:      req.RazorpayPaymentID,
		Signature:      req.RazorpaySignature,
	}
	if req.OrderData != nil {
		in, err := req.OrderData.toInput()
		if err != nil {
			pc.invalid(c, err)
			return
		}
		conf.Order = &in
	}

	order, emailStatus, err := pc.orders.VerifyPayment(c.Request.Context(), user.ID, conf)
	if err != nil {
		pc.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"data":         order,
		"email_status": emailStatus,
	})
}
