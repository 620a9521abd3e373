package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"paymang/paymang-backend/pkg/storage"
)

// DeliveryManager stores rendered exports in object storage
type DeliveryManager struct {
	client     storage.Client
	bucket     string
	prefix     string
	retries    int
	retryDelay time.Duration
	urlExpiry  time.Duration
	logger     *zap.Logger
}

// DeliveryResult represents the result of a delivery attempt
type DeliveryResult struct {
	Bucket      string    `json:"bucket"`
	Key         string    `json:"key"`
	Size        int       `json:"size"`
	DownloadURL string    `json:"download_url,omitempty"`
	DeliveredAt time.Time `json:"delivered_at"`
	RetryCount  int       `json:"retry_count"`
}

// NewDeliveryManager creates a new delivery manager. An empty bucket is
// valid for storage.LocalClient.
func NewDeliveryManager(client storage.Client, bucket, prefix string, logger *zap.Logger) *DeliveryManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryManager{
		client:     client,
		bucket:     bucket,
		prefix:     prefix,
		retries:    3,
		retryDelay: time.Second,
		urlExpiry:  7 * 24 * time.Hour,
		logger:     logger,
	}
}

// Key returns the object key a file name is stored under
func (d *DeliveryManager) Key(name string) string {
	if d.prefix == "" {
		return name
	}
	return path.Join(d.prefix, name)
}

// Deliver uploads data under the prefixed name, retrying failed attempts
func (d *DeliveryManager) Deliver(ctx context.Context, name string, data []byte, contentType string) (*DeliveryResult, error) {
	key := d.Key(name)

	var lastErr error
	for attempt := 0; attempt < d.retries; attempt++ {
		if attempt > 0 {
			d.logger.Warn("Export upload failed, retrying",
				zap.String("key", key),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(d.retryDelay * time.Duration(attempt)):
			}
		}

		lastErr = d.client.Upload(ctx, d.bucket, key, bytes.NewReader(data), contentType)
		if lastErr == nil {
			d.logger.Info("Export delivered",
				zap.String("bucket", d.bucket),
				zap.String("key", key),
				zap.Int("size", len(data)))
			return &DeliveryResult{
				Bucket:      d.bucket,
				Key:         key,
				Size:        len(data),
				DownloadURL: d.downloadURL(ctx, key),
				DeliveredAt: time.Now().UTC(),
				RetryCount:  attempt,
			}, nil
		}
	}
	return nil, fmt.Errorf("failed to upload %s after %d attempts: %w", key, d.retries, lastErr)
}

// downloadURL presigns key; local storage has no URLs
func (d *DeliveryManager) downloadURL(ctx context.Context, key string) string {
	url, err := d.client.GetPresignedURL(ctx, d.bucket, key, d.urlExpiry)
	if err != nil {
		if !errors.Is(err, storage.ErrNoPresign) {
			d.logger.Warn("Failed to presign export", zap.String("key", key), zap.Error(err))
		}
		return ""
	}
	return url
}
