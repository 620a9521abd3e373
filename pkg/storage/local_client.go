package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalClient writes objects under root/bucket/key. It backs exports when
// no S3 bucket is configured.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) *LocalClient {
	return &LocalClient{root: root}
}

func (c *LocalClient) path(bucket, key string) (string, error) {
	clean := filepath.Clean(filepath.Join(c.root, bucket, key))
	if !strings.HasPrefix(clean, filepath.Clean(c.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("key %q escapes storage root", key)
	}
	return clean, nil
}

func (c *LocalClient) Upload(_ context.Context, bucket, key string, body io.Reader, _ string) error {
	p, err := c.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}

	f, err := os.Create(p)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (c *LocalClient) Download(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	p, err := c.path(bucket, key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

func (c *LocalClient) Delete(_ context.Context, bucket, key string) error {
	p, err := c.path(bucket, key)
	if err != nil {
		return err
	}
	return os.Remove(p)
}

func (c *LocalClient) GetPresignedURL(context.Context, string, string, time.Duration) (string, error) {
	return "", ErrNoPresign
}
