// Package gcs stores season results as objects in a Google Cloud Storage bucket.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/appearances-scraper/internal/roster"
	scstorage "github.com/JakeFAU/appearances-scraper/internal/storage"
)

// Config captures the bucket and object prefix.
type Config struct {
	Bucket string
	Prefix string
}

// Store uploads the files of a season result to GCS.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed store.
func New(client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &Store{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// SaveSeason uploads every object of the result's layout.
func (s *Store) SaveSeason(ctx context.Context, result roster.SeasonResult) error {
	objects, err := scstorage.Objects(result)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		name := obj.Path
		if s.prefix != "" {
			name = path.Join(s.prefix, obj.Path)
		}
		if _, err := s.put(ctx, name, obj.ContentType, bytes.NewReader(obj.Data)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) put(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object %s: %w (close writer: %v)", name, err, closeErr)
		}
		return "", fmt.Errorf("copy object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer for %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Name identifies the store in logs.
func (*Store) Name() string { return "gcs" }
