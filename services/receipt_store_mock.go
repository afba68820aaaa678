package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bamboo-bazaar/storefront-api/models"
)

// MockReceiptStore is an in-memory ReceiptStore for testing
type MockReceiptStore struct {
	receipts map[string][]byte // map of key to receipt JSON
	err      error
	mu       sync.RWMutex
}

// NewMockReceiptStore creates a new mock receipt store
func NewMockReceiptStore() *MockReceiptStore {
	return &MockReceiptStore{
		receipts: make(map[string][]byte),
	}
}

// FailWith makes every subsequent PutReceipt return err
func (m *MockReceiptStore) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// PutReceipt simulates uploading a receipt
func (m *MockReceiptStore) PutReceipt(ctx context.Context, order *models.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}

	body, err := json.Marshal(NewReceipt(order, time.Now()))
	if err != nil {
		return "", err
	}

	key := ReceiptKey(order.ID)
	m.receipts[key] = body
	return key, nil
}

// GetReceiptURL simulates generating a presigned URL
func (m *MockReceiptStore) GetReceiptURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	m.mu.RLock()
	_, exists := m.receipts[key]
	m.mu.RUnlock()

	if !exists {
		return "", fmt.Errorf("receipt not found in mock store: %s", key)
	}

	return fmt.Sprintf("https://receipts.s3.ap-south-1.amazonaws.com/%s?mock=true", key), nil
}

// Receipt decodes a stored receipt (for testing assertions)
func (m *MockReceiptStore) Receipt(key string) (Receipt, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	body, ok := m.receipts[key]
	if !ok {
		return Receipt{}, false
	}
	var r Receipt
	if err := json.Unmarshal(body, &r); err != nil {
		return Receipt{}, false
	}
	return r, true
}

// Count returns how many receipts are stored
func (m *MockReceiptStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.receipts)
}
