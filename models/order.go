package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// orderTransitions lists the statuses each status may move to.
// delivered and cancelled are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusOutForDelivery, OrderStatusCancelled},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

// IsValid reports whether s is one of the known order statuses
func (s OrderStatus) IsValid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible from s
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo reports whether the transition table allows s -> next
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod is how the buyer pays for an order
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "Online"
	PaymentMethodCOD    PaymentMethod = "COD"
)

// IsValid reports whether m is a supported payment method
func (m PaymentMethod) IsValid() bool {
	return m == PaymentMethodOnline || m == PaymentMethodCOD
}

// PaymentStatus tracks whether money has been collected for an order
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Address is a shipping address snapshot stored inline on the order
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

// IsComplete reports whether every address field is filled in
func (a Address) IsComplete() bool {
	return a.Street != "" && a.City != "" && a.State != "" && a.Pincode != ""
}

// Order represents a placed purchase and its fulfilment/payment state
type Order struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	UserID          uint           `gorm:"not null;index" json:"user_id"` // immutable after creation
	User            User           `gorm:"foreignKey:UserID" json:"user"`
	Items           []OrderItem    `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount     float64        `gorm:"not null" json:"total_amount"` // computed once at creation
	Address         Address        `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	DeliveryAddress Address        `gorm:"embedded;embeddedPrefix:delivery_address_" json:"delivery_address"`
	DeliveryDate    *time.Time     `json:"delivery_date"`
	DeliveryTime    string         `json:"delivery_time"`
	Status          OrderStatus    `gorm:"not null;index" json:"status"`
	PaymentMethod   PaymentMethod  `gorm:"not null" json:"payment_method"`
	PaymentStatus   PaymentStatus  `gorm:"not null" json:"payment_status"`
	PaymentOrderID  *string        `gorm:"uniqueIndex" json:"payment_order_id"` // gateway order reference
	PaymentID       *string        `json:"payment_id"`                          // gateway payment reference
	OTP             string         `gorm:"size:6;not null" json:"-"`            // delivery hand-off code
	StockRestored   bool           `gorm:"not null" json:"-"`
	NeedsReview     bool           `gorm:"not null;default:false;index" json:"needs_review"` // paid but not fully reserved
	ReceiptKey      *string        `json:"-"`
	ReceiptURL      *string        `gorm:"-" json:"receipt_url,omitempty"` // computed field, presigned URL for the receipt
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// BeforeCreate assigns the order id
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// IsCashOnDelivery reports whether the order has no gateway payment attached
func (o *Order) IsCashOnDelivery() bool {
	return o.PaymentID == nil || *o.PaymentID == ""
}

// OrderItem is one line of an order. Name and Price are snapshots taken
// when the order was placed and are never re-read from the catalog.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey" json:"-"`
	OrderID   string  `gorm:"size:36;not null;index" json:"-"`
	ProductID uint    `gorm:"not null;index" json:"product_id"`
	Name      string  `gorm:"not null" json:"name"`
	Quantity  int     `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     float64 `gorm:"not null" json:"price"`

	// Backordered lines were paid for but no stock was taken for them
	Backordered bool `gorm:"not null;default:false" json:"backordered"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal is quantity times the snapshot unit price
func (i OrderItem) LineTotal() float64 {
	return RoundMoney(float64(i.Quantity) * i.Price)
}

// SumItems adds up the line totals of items
func SumItems(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return RoundMoney(total)
}

// RoundMoney rounds an amount to two decimal places
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
