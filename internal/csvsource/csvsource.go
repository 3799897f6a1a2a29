// internal/csvsource/csvsource.go
package csvsource

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/unclebandit/mailblast-backend/internal/storage"
)

// RowSource supplies the recipient rows of a stored CSV file: the header
// list, the total data row count, and each data row as a header→value map in
// file order. The pipeline treats this as a pure function of the uploaded
// file.
type RowSource interface {
	Headers(ctx context.Context, path string) ([]string, error)
	Rows(ctx context.Context, path string) ([]map[string]string, error)
	Count(ctx context.Context, path string) (int, error)
}

// StorageRowSource reads CSV files out of blob storage.
type StorageRowSource struct {
	store storage.Storage
}

func NewStorageRowSource(store storage.Storage) *StorageRowSource {
	return &StorageRowSource{store: store}
}

func (s *StorageRowSource) open(ctx context.Context, path string) (*csv.Reader, error) {
	data, err := s.store.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // tolerate ragged rows, missing cells become ""
	return r, nil
}

func (s *StorageRowSource) Headers(ctx context.Context, path string) ([]string, error) {
	r, err := s.open(ctx, path)
	if err != nil {
		return nil, err
	}
	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv headers from %s: %w", path, err)
	}
	return headers, nil
}

func (s *StorageRowSource) Rows(ctx context.Context, path string) ([]map[string]string, error) {
	r, err := s.open(ctx, path)
	if err != nil {
		return nil, err
	}

	headers, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv headers from %s: %w", path, err)
	}

	rows := []map[string]string{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row from %s: %w", path, err)
		}

		row := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				row[h] = record[i]
			} else {
				row[h] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *StorageRowSource) Count(ctx context.Context, path string) (int, error) {
	rows, err := s.Rows(ctx, path)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

var _ RowSource = (*StorageRowSource)(nil)
