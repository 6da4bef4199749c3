package gcsuploader

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Storage is the subset of Cloud Storage operations the import flow needs.
type Storage interface {
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
	UploadReader(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) (string, error)
}

// GCSStorageService holds one shared storage client for all operations.
type GCSStorageService struct {
	client *storage.Client
}

// NewGCSStorageService creates a storage client. Without options it relies on
// Application Default Credentials.
func NewGCSStorageService(ctx context.Context, opts ...option.ClientOption) (*GCSStorageService, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewGCSStorageService: create storage client: %w", err)
	}
	return &GCSStorageService{client: client}, nil
}

// Close releases the underlying client.
func (s *GCSStorageService) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

var _ Storage = (*GCSStorageService)(nil)
