package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

// ErrObjectExists is returned when a write would replace an existing object.
var ErrObjectExists = errors.New("object already exists")

// ErrObjectNotFound is returned when the requested key is absent.
var ErrObjectNotFound = errors.New("object not found")

// ProgressFunc receives the cumulative upload percentage after each chunk.
type ProgressFunc func(percent int)

// PutOptions tune a single write.
type PutOptions struct {
	Size        int64
	ContentType string
	// ChunkSize > 0 streams the body in fixed-size chunks and reports progress after each one.
	ChunkSize int64
	Progress  ProgressFunc
}

// Store is implemented by every object backend.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(key string) (string, error)
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeName keeps a file name safe for use inside an object key.
func SanitizeName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	base = unsafeName.ReplaceAllString(base, "_")
	base = strings.Trim(base, "._")
	if base == "" {
		return "file"
	}
	return base
}

// copyChunked writes exactly size bytes from r to w in chunk-sized pieces and
// reports the completed percentage after every chunk.
func copyChunked(w io.Writer, r io.Reader, size, chunk int64, progress ProgressFunc) (int64, error) {
	if chunk <= 0 || size <= 0 {
		n, err := io.Copy(w, r)
		if err == nil && progress != nil {
			progress(100)
		}
		return n, err
	}
	var written int64
	for written < size {
		want := chunk
		if remaining := size - written; remaining < want {
			want = remaining
		}
		n, err := io.CopyN(w, r, want)
		written += n
		if err != nil {
			return written, fmt.Errorf("chunk at offset %d: %w", written-n, err)
		}
		if progress != nil {
			progress(int(written * 100 / size))
		}
	}
	return written, nil
}

// ChunkCount is the number of chunks a body of size bytes is split into.
func ChunkCount(size, chunk int64) int64 {
	if chunk <= 0 || size <= 0 {
		return 1
	}
	return (size + chunk - 1) / chunk
}
