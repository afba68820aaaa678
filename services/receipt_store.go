package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/bamboo-bazaar/storefront-api/models"
)

// ReceiptStore archives a paid order's receipt and hands out links to it
type ReceiptStore interface {
	// PutReceipt stores the receipt for order and returns its key
	PutReceipt(ctx context.Context, order *models.Order) (string, error)

	// GetReceiptURL returns a time-limited URL for a stored receipt
	GetReceiptURL(ctx context.Context, key string) (string, error)
}

// Receipt is the archived document for a paid order
type Receipt struct {
	OrderID        string             `json:"order_id"`
	IssuedAt       time.Time          `json:"issued_at"`
	CustomerName   string             `json:"customer_name"`
	CustomerEmail  string             `json:"customer_email"`
	Items          []models.OrderItem `json:"items"`
	TotalAmount    float64            `json:"total_amount"`
	PaymentMethod  string             `json:"payment_method"`
	PaymentOrderID string             `json:"payment_order_id,omitempty"`
	PaymentID      string             `json:"payment_id,omitempty"`
	Address        models.Address     `json:"address"`
}

// NewReceipt snapshots order into a Receipt
func NewReceipt(order *models.Order, issuedAt time.Time) Receipt {
	r := Receipt{
		OrderID:       order.ID,
		IssuedAt:      issuedAt.UTC(),
		CustomerName:  order.User.Name,
		CustomerEmail: order.User.Email,
		Items:         order.Items,
		TotalAmount:   order.TotalAmount,
		PaymentMethod: string(order.PaymentMethod),
		Address:       order.Address,
	}
	if order.PaymentOrderID != nil {
		r.PaymentOrderID = *order.PaymentOrderID
	}
	if order.PaymentID != nil {
		r.PaymentID = *order.PaymentID
	}
	return r
}

// ReceiptKey is the object key a receipt for orderID is stored under
func ReceiptKey(orderID string) string {
	return fmt.Sprintf("receipts/%s.json", orderID)
}

// S3ReceiptStore implements ReceiptStore on an S3 bucket
type S3ReceiptStore struct {
	client *s3.Client
	bucket string
	now    func() time.Time
}

// NewS3ReceiptStore creates a receipt store writing to bucket
func NewS3ReceiptStore(awsCfg aws.Config, bucket string) *S3ReceiptStore {
	return &S3ReceiptStore{
		client: s3.NewFromConfig(awsCfg),
		bucket: bucket,
		now:    time.Now,
	}
}

// PutReceipt uploads the receipt as JSON
func (s *S3ReceiptStore) PutReceipt(ctx context.Context, order *models.Order) (string, error) {
	body, err := json.Marshal(NewReceipt(order, s.now()))
	if err != nil {
		return "", fmt.Errorf("failed to encode receipt: %w", err)
	}

	key := ReceiptKey(order.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload receipt to S3: %w", err)
	}

	return key, nil
}

// GetReceiptURL generates a presigned URL for a receipt
// The URL expires after 1 hour
func (s *S3ReceiptStore) GetReceiptURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	presignClient := s3.NewPresignClient(s.client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// NoopReceiptStore is used when no bucket is configured
type NoopReceiptStore struct{}

func (NoopReceiptStore) PutReceipt(context.Context, *models.Order) (string, error) { return "", nil }
func (NoopReceiptStore) GetReceiptURL(context.Context, string) (string, error)      { return "", nil }
