// Package blobstore persists uploaded image bytes.
package blobstore

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// BlobStore writes uploaded image bytes to durable storage and returns the
// path they were stored under.
type BlobStore interface {
	Put(ctx context.Context, hash string, r io.Reader) (storagePath string, err error)
}

// GCSStore stores image bytes as objects in a Cloud Storage bucket, keyed by
// content hash.  Uploading the same bytes twice overwrites the object with
// identical content, so the write is idempotent.
type GCSStore struct {
	gcsClient  *storage.Client
	bucketName string
}

func NewGCSStore(gcsClient *storage.Client, bucketName string) *GCSStore {
	return &GCSStore{
		gcsClient:  gcsClient,
		bucketName: bucketName,
	}
}

func (s *GCSStore) Put(ctx context.Context, hash string, r io.Reader) (string, error) {
	objectName := "images/" + hash

	w := s.gcsClient.Bucket(s.bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("while writing image to gs://%s/%s: %w", s.bucketName, objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("while finishing write to gs://%s/%s: %w", s.bucketName, objectName, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucketName, objectName), nil
}
