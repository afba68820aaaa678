package testutil

import (
	"os"
	"testing"

	"github.com/bamboo-bazaar/storefront-api/models"
	"github.com/bamboo-bazaar/storefront-api/repository"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
// It will fail the test immediately if GO_ENV is not set to "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// NewTestDB opens a migrated in-memory SQLite database
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// every :memory: connection is its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// CreateUser inserts an account with the given subject and role
func CreateUser(t *testing.T, db *gorm.DB, subject, role string) *models.User {
	t.Helper()

	user := &models.User{
		AuthSubject: subject,
		Name:        "Test " + role,
		Email:       subject + "@example.com",
		Phone:       "9000000000",
		Role:        role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateProduct inserts an available product
func CreateProduct(t *testing.T, db *gorm.DB, name string, price float64, stock int) *models.Product {
	t.Helper()

	product := &models.Product{Name: name, Price: price, Stock: stock, IsAvailable: true}
	require.NoError(t, db.Create(product).Error)
	return product
}

// ProductStock reads the current stock of a product
func ProductStock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()

	var product models.Product
	require.NoError(t, db.First(&product, id).Error)
	return product.Stock
}
