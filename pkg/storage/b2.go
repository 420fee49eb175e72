package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
)

// B2Store keeps objects in a Backblaze B2 bucket.
type B2Store struct {
	client *b2.Client
	bucket *b2.Bucket
}

// NewB2Store authorises against B2 and resolves the bucket.
func NewB2Store(ctx context.Context, keyID, appKey, bucketName string) (*B2Store, error) {
	client, err := b2.NewClient(ctx, keyID, appKey)
	if err != nil {
		return nil, fmt.Errorf("create b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("open b2 bucket: %w", err)
	}
	return &B2Store{client: client, bucket: bucket}, nil
}

// Put uploads the object. Large bodies are streamed through the writer in
// chunks; B2 assembles them into a single object so the returned URL always
// covers the whole file.
func (s *B2Store) Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (string, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrObjectExists
	}

	obj := s.bucket.Object(key)
	w := obj.NewWriter(ctx)
	if opts.ContentType != "" {
		w = w.WithAttrs(&b2.Attrs{ContentType: opts.ContentType})
	}
	if opts.ChunkSize > 0 {
		w.ChunkSize = int(opts.ChunkSize)
	}

	if _, err := copyChunked(w, r, opts.Size, opts.ChunkSize, opts.Progress); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write b2 object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close b2 writer: %w", err)
	}
	return obj.URL(), nil
}

// Exists reports whether the key is present in the bucket.
func (s *B2Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.bucket.Object(key).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if b2.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat b2 object: %w", err)
}

// Open streams the object body.
func (s *B2Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrObjectNotFound
	}
	return s.bucket.Object(key).NewReader(ctx), nil
}

// Delete removes the object; missing keys are ignored.
func (s *B2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete b2 object: %w", err)
	}
	return nil
}

// URL returns the bucket download URL for key.
func (s *B2Store) URL(key string) (string, error) {
	return s.bucket.Object(key).URL(), nil
}
