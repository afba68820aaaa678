package models

import (
	"time"

	"gorm.io/gorm"
)

// Product is a catalog entry. Orders only read it for pricing and adjust
// its stock; catalog management lives elsewhere.
type Product struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	Name              string         `gorm:"not null" json:"name"`
	Price             float64        `gorm:"not null;check:price >= 0" json:"price"`
	Stock             int            `gorm:"not null;check:stock >= 0" json:"stock"`
	SoldCount         int            `gorm:"not null" json:"sold_count"`
	IsAvailable       bool           `gorm:"not null" json:"is_available"`
	Discount          float64        `gorm:"not null;check:discount >= 0 AND discount <= 100" json:"discount"` // percent
	IsDiscountActive  bool           `gorm:"not null" json:"is_discount_active"`
	DiscountStartDate *time.Time     `json:"discount_start_date"`
	DiscountEndDate   *time.Time     `json:"discount_end_date"`
	OfferPrice        *float64       `json:"offer_price"`
	IsOfferActive     bool           `gorm:"not null" json:"is_offer_active"`
	OfferStartDate    *time.Time     `json:"offer_start_date"`
	OfferEndDate      *time.Time     `json:"offer_end_date"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// EffectivePrice is the unit price charged at time now. An active
// percentage discount wins over an active offer price; a window with a
// nil bound is open on that side.
func (p Product) EffectivePrice(now time.Time) float64 {
	if p.IsDiscountActive && p.Discount > 0 && withinWindow(now, p.DiscountStartDate, p.DiscountEndDate) {
		return RoundMoney(p.Price - p.Price*p.Discount/100)
	}
	if p.IsOfferActive && p.OfferPrice != nil && *p.OfferPrice > 0 && withinWindow(now, p.OfferStartDate, p.OfferEndDate) {
		return RoundMoney(*p.OfferPrice)
	}
	return RoundMoney(p.Price)
}

func withinWindow(now time.Time, start, end *time.Time) bool {
	if start != nil && now.Before(*start) {
		return false
	}
	if end != nil && now.After(*end) {
		return false
	}
	return true
}
