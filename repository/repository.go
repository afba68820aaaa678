// Package repository holds the persistence interfaces the order workflow
// depends on, plus their gorm implementations.
package repository

import (
	"context"
	"errors"

	"github.com/bamboo-bazaar/storefront-api/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("record not found")

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of rows to skip
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// OrderRepository persists orders and their line items
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByIDForUser(ctx context.Context, id string, userID uint) (*models.Order, error)
	FindByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uint, page Page) ([]models.Order, int64, error)
	ListAll(ctx context.Context, page Page) ([]models.Order, int64, error)

	// TransitionStatus applies fields only while the order is still in
	// status from. It reports whether the row was changed.
	TransitionStatus(ctx context.Context, id string, from models.OrderStatus, fields map[string]interface{}) (bool, error)

	// MarkCancelled cancels the order and sets its stock_restored flag in
	// one conditional update. It reports false when the order is already
	// terminal or its stock was already restored.
	MarkCancelled(ctx context.Context, id string) (bool, error)

	SetReceiptKey(ctx context.Context, id, key string) error
}

// ProductRepository reads catalog entries and adjusts their stock
type ProductRepository interface {
	FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Product, error)

	// Reserve takes qty units out of stock if at least qty are available.
	Reserve(ctx context.Context, id uint, qty int) (bool, error)

	// Restock puts qty units back into stock.
	Restock(ctx context.Context, id uint, qty int) error
}

// UserRepository looks up and provisions accounts
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id uint) (*models.User, error)
	FindBySubject(ctx context.Context, subject string) (*models.User, error)
}

// Store groups the repositories and runs units of work across them
type Store interface {
	Orders() OrderRepository
	Products() ProductRepository
	Users() UserRepository

	// Transaction runs fn against a Store bound to a single database
	// transaction. Returning an error rolls everything back.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// GormStore implements Store on top of gorm
type GormStore struct {
	db       *gorm.DB
	orders   *GormOrderRepository
	products *GormProductRepository
	users    *GormUserRepository
}

// NewGormStore wires the gorm repositories around db
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:       db,
		orders:   &GormOrderRepository{db: db},
		products: &GormProductRepository{db: db},
		users:    &GormUserRepository{db: db},
	}
}

func (s *GormStore) Orders() OrderRepository     { return s.orders }
func (s *GormStore) Products() ProductRepository { return s.products }
func (s *GormStore) Users() UserRepository       { return s.users }

// Transaction implements Store
func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// AutoMigrate creates or updates the tables this service owns
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.User{}, &models.Product{}, &models.Order{}, &models.OrderItem{})
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
