package repository

import (
	"context"
	"errors"

	"github.com/collabtext/collabtext/internal/document"
)

var (
	ErrNotFound = errors.New("document not found")
)

// Repository stores document metadata records. Bodies live in storage.BodyStore.
type Repository interface {
	// Create assigns and returns a new id.
	Create(ctx context.Context, doc *document.Document) (int64, error)
	Get(ctx context.Context, id int64) (*document.Document, error)
	// List returns all records ordered by id.
	List(ctx context.Context) ([]*document.Document, error)
	Rename(ctx context.Context, id int64, name string) error
	Delete(ctx context.Context, id int64) error
}
