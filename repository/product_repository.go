package repository

import (
	"context"
	"fmt"

	"github.com/bamboo-bazaar/storefront-api/models"
	"gorm.io/gorm"
)

// GormProductRepository implements ProductRepository
type GormProductRepository struct {
	db *gorm.DB
}

// FindByIDs loads the products with the given ids, keyed by id. Missing
// ids are simply absent from the map.
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]models.Product, error) {
	var products []models.Product
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, fmt.Errorf("failed to load products: %w", err)
		}
	}

	byID := make(map[uint]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

// Reserve implements ProductRepository
func (r *GormProductRepository) Reserve(ctx context.Context, id uint, qty int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND is_available = ? AND stock >= ?", id, true, qty).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock - ?", qty),
			"sold_count": gorm.Expr("sold_count + ?", qty),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to reserve stock for product %d: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Restock implements ProductRepository. A product that no longer exists
// is skipped.
func (r *GormProductRepository) Restock(ctx context.Context, id uint, qty int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stock":      gorm.Expr("stock + ?", qty),
			"sold_count": gorm.Expr("CASE WHEN sold_count >= ? THEN sold_count - ? ELSE 0 END", qty, qty),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to restock product %d: %w", id, err)
	}
	return nil
}
