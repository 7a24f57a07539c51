package storage

import (
	"context"
	"io"
)

// Service keeps uploaded registration documents, such as driver licenses.
type Service interface {
	// Put stores body under key and returns a reference that can be kept in
	// a record and later passed to Delete.
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, ref string) error
}
