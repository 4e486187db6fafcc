package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader checks object storage for existing objects.
type BlobReader interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves old journal entries to cold storage.
type Archiver interface {
	ArchiveActivity(ctx context.Context, before time.Time) (int64, error)
}
