package repository

import (
	"context"
	"fmt"

	"github.com/bamboo-bazaar/storefront-api/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements OrderRepository
type GormOrderRepository struct {
	db *gorm.DB
}

func (r *GormOrderRepository) withDetails(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items").Preload("User")
}

// Create inserts the order together with its items
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// FindByID loads an order with items and user
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

// FindByIDForUser loads an order only if it belongs to userID
func (r *GormOrderRepository) FindByIDForUser(ctx context.Context, id string, userID uint) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).Where("user_id = ?", userID).First(&order, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

// FindByPaymentOrderID loads the order correlated with a gateway order
func (r *GormOrderRepository) FindByPaymentOrderID(ctx context.Context, paymentOrderID string) (*models.Order, error) {
	var order models.Order
	if err := r.withDetails(ctx).First(&order, "payment_order_id = ?", paymentOrderID).Error; err != nil {
		return nil, translateError(err)
	}
	return &order, nil
}

// ListByUser returns a page of the user's orders, newest first
func (r *GormOrderRepository) ListByUser(ctx context.Context, userID uint, page Page) ([]models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID), page)
}

// ListAll returns a page of every order, newest first
func (r *GormOrderRepository) ListAll(ctx context.Context, page Page) ([]models.Order, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Model(&models.Order{}), page)
}

func (r *GormOrderRepository) list(ctx context.Context, query *gorm.DB, page Page) ([]models.Order, int64, error) {
	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := query.Session(&gorm.Session{}).
		Preload("Items").
		Preload("User").
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, total, nil
}

// TransitionStatus implements OrderRepository
func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id string, from models.OrderStatus, fields map[string]interface{}) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(fields)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update order %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// MarkCancelled implements OrderRepository
func (r *GormOrderRepository) MarkCancelled(ctx context.Context, id string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND stock_restored = ?", id, false).
		Where("status NOT IN ?", []string{string(models.OrderStatusDelivered), string(models.OrderStatusCancelled)}).
		Updates(map[string]interface{}{
			"status":         string(models.OrderStatusCancelled),
			"stock_restored": true,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to cancel order %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// SetReceiptKey records where the order's receipt was archived
func (r *GormOrderRepository) SetReceiptKey(ctx context.Context, id, key string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("receipt_key", key).Error
	if err != nil {
		return fmt.Errorf("failed to store receipt key for order %s: %w", id, err)
	}
	return nil
}
