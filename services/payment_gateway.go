package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/sirupsen/logrus"
)

// DefaultCurrency is used when a caller does not name one
const DefaultCurrency = "INR"

// RemoteOrder is the gateway's view of a payment order
type RemoteOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // minor units
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentGateway creates gateway orders and authenticates the payment
// confirmations clients send back
type PaymentGateway interface {
	CreateRemoteOrder(ctx context.Context, amount float64, currency, receipt string) (*RemoteOrder, error)
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// SignPayment computes the hex HMAC-SHA256 of "gatewayOrderID|paymentID"
// keyed by the gateway secret
func SignPayment(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// verifyPaymentSignature compares in constant time
func verifyPaymentSignature(secret, gatewayOrderID, paymentID, signature string) bool {
	expected := SignPayment(secret, gatewayOrderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ToMinorUnits converts an amount in rupees to paise
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// RazorpayGateway talks to the Razorpay orders API through the official
// client
type RazorpayGateway struct {
	client    *razorpay.Client
	keySecret string
	logger    *logrus.Logger
}

// NewRazorpayGateway creates a gateway client. baseURL may point at a test
// server.
func NewRazorpayGateway(keyID, keySecret, baseURL string, timeout time.Duration, logger *logrus.Logger) *RazorpayGateway {
	client := razorpay.NewClient(keyID, keySecret)
	if baseURL != "" {
		client.Request.BaseURL = strings.TrimRight(baseURL, "/")
	}
	client.Request.HTTPClient = &http.Client{Timeout: timeout}

	return &RazorpayGateway{
		client:    client,
		keySecret: keySecret,
		logger:    logger,
	}
}

type remoteOrderResult struct {
	body map[string]interface{}
	err  error
}

// CreateRemoteOrder creates a gateway order for amount (in rupees)
func (g *RazorpayGateway) CreateRemoteOrder(ctx context.Context, amount float64, currency, receipt string) (*RemoteOrder, error) {
	if amount <= 0 {
		return nil, withMessage(ErrValidation, "Amount must be greater than zero")
	}
	if currency == "" {
		currency = DefaultCurrency
	}

	data := map[string]interface{}{
		"amount":          ToMinorUnits(amount),
		"currency":        currency,
		"payment_capture": 1,
	}
	if receipt != "" {
		data["receipt"] = receipt
	}

	// The client takes no context, so the call is raced against ctx.
	done := make(chan remoteOrderResult, 1)
	go func() {
		body, err := g.client.Order.Create(data, nil)
		done <- remoteOrderResult{body: body, err: err}
	}()

	var res remoteOrderResult
	select {
	case <-ctx.Done():
		return nil, withCause(ErrPaymentGateway, fmt.Errorf("orders request abandoned: %w", ctx.Err()))
	case res = <-done:
	}
	if res.err != nil {
		return nil, withCause(ErrPaymentGateway, fmt.Errorf("failed to create gateway order: %w", res.err))
	}

	order, err := parseRemoteOrder(res.body)
	if err != nil {
		return nil, withCause(ErrPaymentGateway, err)
	}

	g.logger.WithFields(logrus.Fields{
		"gateway_order_id": order.ID,
		"amount":           order.Amount,
		"currency":         order.Currency,
	}).Info("Created gateway order")

	return order, nil
}

func parseRemoteOrder(body map[string]interface{}) (*RemoteOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("orders response has no id")
	}
	order := &RemoteOrder{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	if amount, ok := body["amount"].(float64); ok {
		order.Amount = int64(math.Round(amount))
	}
	return order, nil
}

// VerifySignature implements PaymentGateway
func (g *RazorpayGateway) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.keySecret)
}
