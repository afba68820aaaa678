package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"strings"
	"sync"
	texttemplate "text/template"
	"time"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/sirupsen/logrus"
)

// NotificationResult reports the outcome of the two order emails. It is
// returned to API clients as emailStatus.
type NotificationResult struct {
	UserSent   bool   `json:"user_sent"`
	AdminSent  bool   `json:"admin_sent"`
	UserError  string `json:"user_error,omitempty"`
	AdminError string `json:"admin_error,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"` // replayed confirmation, nothing sent
}

// OrderNotifier tells the buyer and the staff about a placed order
type OrderNotifier interface {
	NotifyOrderPlaced(ctx context.Context, order *models.Order) NotificationResult
}

var (
	errNoRecipient    = errors.New("order has no customer email")
	errNoAdminAddress = errors.New("admin email is not configured")
)

// Notifier renders order emails and sends them through a Mailer
type Notifier struct {
	mailer     Mailer
	adminEmail string
	timeout    time.Duration
	logger     *logrus.Logger
}

// NewNotifier creates a notifier. Each send is bounded by timeout.
func NewNotifier(mailer Mailer, adminEmail string, timeout time.Duration, logger *logrus.Logger) *Notifier {
	return &Notifier{
		mailer:     mailer,
		adminEmail: adminEmail,
		timeout:    timeout,
		logger:     logger,
	}
}

// NotifyOrderPlaced sends the buyer confirmation and the admin alert
// concurrently and waits for both. Failures are reported in the result,
// never returned.
func (n *Notifier) NotifyOrderPlaced(ctx context.Context, order *models.Order) NotificationResult {
	// The request may finish before the emails do.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	view := newOrderEmailView(order)

	var (
		wg               sync.WaitGroup
		userErr, adminErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		userErr = n.sendUserConfirmation(sendCtx, order.User.Email, view)
	}()
	go func() {
		defer wg.Done()
		adminErr = n.sendAdminAlert(sendCtx, view)
	}()
	wg.Wait()

	recordNotification("user", userErr)
	recordNotification("admin", adminErr)

	result := NotificationResult{UserSent: userErr == nil, AdminSent: adminErr == nil}
	fields := logrus.Fields{"order_id": order.ID}
	if userErr != nil {
		result.UserError = userErr.Error()
		n.logger.WithFields(fields).WithError(userErr).Warn("Failed to send order confirmation to customer")
	}
	if adminErr != nil {
		result.AdminError = adminErr.Error()
		n.logger.WithFields(fields).WithError(adminErr).Warn("Failed to send order alert to admin")
	}
	return result
}

func (n *Notifier) sendUserConfirmation(ctx context.Context, to string, view orderEmailView) error {
	if to == "" {
		return errNoRecipient
	}
	msg, err := renderEmail(to, "Order Confirmation - Your Bamboo Bazaar Order", userEmailTemplates, view)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}

func (n *Notifier) sendAdminAlert(ctx context.Context, view orderEmailView) error {
	if n.adminEmail == "" {
		return errNoAdminAddress
	}
	msg, err := renderEmail(n.adminEmail, "New Order Received - "+view.OrderID, adminEmailTemplates, view)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, msg)
}

// orderEmailView is the data both templates render
type orderEmailView struct {
	OrderID       string
	OrderDate     string
	DeliveryDate  string
	DeliveryTime  string
	PaymentMethod string
	PaymentStatus string
	Paid          bool
	Total         string
	Address       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	OTP           string
	NeedsReview   bool
	Items         []orderEmailItem
}

type orderEmailItem struct {
	Name        string
	Quantity    int
	Price       string
	Backordered bool
}

func newOrderEmailView(order *models.Order) orderEmailView {
	view := orderEmailView{
		OrderID:       order.ID,
		OrderDate:     order.CreatedAt.Format("02 Jan 2006"),
		DeliveryDate:  "To be scheduled",
		DeliveryTime:  order.DeliveryTime,
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		Paid:          order.PaymentStatus == models.PaymentStatusPaid,
		Total:         formatRupees(order.TotalAmount),
		Address:       formatAddress(order.Address),
		CustomerName:  order.User.Name,
		CustomerEmail: order.User.Email,
		CustomerPhone: order.User.Phone,
		OTP:           order.OTP,
		NeedsReview:   order.NeedsReview,
	}
	if order.DeliveryDate != nil {
		view.DeliveryDate = order.DeliveryDate.Format("02 Jan 2006")
	}
	if view.DeliveryTime == "" {
		view.DeliveryTime = "-"
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, orderEmailItem{
			Name:        item.Name,
			Quantity:    item.Quantity,
			Price:       formatRupees(item.Price),
			Backordered: item.Backordered,
		})
	}
	return view
}

func formatRupees(amount float64) string {
	return fmt.Sprintf("₹%.2f", amount)
}

func formatAddress(a models.Address) string {
	var parts []string
	for _, p := range []string{a.Street, a.City, a.State} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	out := strings.Join(parts, ", ")
	if a.Pincode != "" {
		out += " - " + a.Pincode
	}
	return out
}

type emailTemplates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func renderEmail(to, subject string, tmpl emailTemplates, view orderEmailView) (EmailMessage, error) {
	var htmlBuf, textBuf bytes.Buffer
	if err := tmpl.html.Execute(&htmlBuf, view); err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render email: %w", err)
	}
	if err := tmpl.text.Execute(&textBuf, view); err != nil {
		return EmailMessage{}, fmt.Errorf("failed to render email: %w", err)
	}
	return EmailMessage{
		To:       to,
		Subject:  subject,
		HTMLBody: htmlBuf.String(),
		TextBody: textBuf.String(),
	}, nil
}

const emailStyle = `<style>
body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; }
.header { background: #2E7D32; color: white; padding: 20px; text-align: center; }
.status { display: inline-block; padding: 5px 10px; border-radius: 15px; font-weight: bold; }
.status-paid { background: #D1FAE5; color: #065F46; }
.status-pending { background: #FEF3C7; color: #92400E; }
.otp { font-size: 24px; letter-spacing: 4px; font-weight: bold; }
</style>`

const orderDetailsHTML = `
<p><strong>Order ID:</strong> {{.OrderID}}</p>
<p><strong>Order Date:</strong> {{.OrderDate}}</p>
<p><strong>Delivery Date:</strong> {{.DeliveryDate}}</p>
<p><strong>Delivery Time:</strong> {{.DeliveryTime}}</p>
<p><strong>Payment Method:</strong> {{.PaymentMethod}}</p>
<p><strong>Payment Status:</strong> <span class="status {{if .Paid}}status-paid{{else}}status-pending{{end}}">{{.PaymentStatus}}</span></p>
<p><strong>Total Amount:</strong> {{.Total}}</p>
<h3>Delivery Address</h3>
<p>{{.Address}}</p>
<h3>Items</h3>
<ul>{{range .Items}}
<li>{{.Name}} - Quantity: {{.Quantity}} - Price: {{.Price}}{{if .Backordered}} (backordered){{end}}</li>{{end}}
</ul>`

const orderDetailsText = `Order ID: {{.OrderID}}
Order Date: {{.OrderDate}}
Delivery: {{.DeliveryDate}} ({{.DeliveryTime}})
Payment: {{.PaymentMethod}}, {{.PaymentStatus}}
Total: {{.Total}}
Address: {{.Address}}
Items:
{{range .Items}}  - {{.Name}} x{{.Quantity}} @ {{.Price}}{{if .Backordered}} (backordered){{end}}
{{end}}`

var userEmailTemplates = emailTemplates{
	html: htmltemplate.Must(htmltemplate.New("user").Parse(`<!DOCTYPE html>
<html><head>` + emailStyle + `</head>
<body><div class="container">
<div class="header"><h1>Order Confirmation</h1></div>
<p>Dear {{.CustomerName}},</p>
<p>Thank you for your order! We have received it and will keep you posted.</p>
` + orderDetailsHTML + `
<p>Thank you for choosing Bamboo Bazaar!</p>
</div></body></html>`)),
	text: texttemplate.Must(texttemplate.New("user").Parse(`Dear {{.CustomerName}},

Thank you for your order!

` + orderDetailsText)),
}

var adminEmailTemplates = emailTemplates{
	html: htmltemplate.Must(htmltemplate.New("admin").Parse(`<!DOCTYPE html>
<html><head>` + emailStyle + `</head>
<body><div class="container">
<div class="header"><h1>New Order Received</h1></div>
<h3>Customer</h3>
<p><strong>Name:</strong> {{.CustomerName}}</p>
<p><strong>Email:</strong> {{.CustomerEmail}}</p>
<p><strong>Phone:</strong> {{.CustomerPhone}}</p>
<p><strong>Delivery OTP:</strong> <span class="otp">{{.OTP}}</span></p>
{{if .NeedsReview}}<p><strong>Stock shortfall:</strong> this order was paid but some items could not be reserved. Review before dispatch.</p>{{end}}
` + orderDetailsHTML + `
</div></body></html>`)),
	text: texttemplate.Must(texttemplate.New("admin").Parse(`New order received.

Customer: {{.CustomerName}} <{{.CustomerEmail}}> {{.CustomerPhone}}
Delivery OTP: {{.OTP}}
{{if .NeedsReview}}STOCK SHORTFALL: paid but some items could not be reserved. Review before dispatch.
{{end}}
` + orderDetailsText)),
}
