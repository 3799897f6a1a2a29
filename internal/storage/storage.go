// internal/storage/storage.go
package storage

import "context"

// Storage is key-addressed blob storage for attachment bytes. Paths are
// constructed deterministically by the pipeline, e.g.
// personalized-attachments/batch_{batchId}/row_{rowIndex}/{filename}.
type Storage interface {
	Put(ctx context.Context, path string, data []byte) error
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
}
