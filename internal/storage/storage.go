package storage

import (
	"context"
	"errors"
	"strconv"
)

// ErrNotFound is returned when no body is stored for a document id.
var ErrNotFound = errors.New("document body not found")

// BodyStore persists document bodies as flat text objects keyed by document id.
// Writes overwrite; there is no versioning.
type BodyStore interface {
	Save(ctx context.Context, id int64, content string) error
	Load(ctx context.Context, id int64) (string, error)
	Delete(ctx context.Context, id int64) error
}

// objectName is the key used for a document body: "<id>.txt".
func objectName(id int64) string {
	return strconv.FormatInt(id, 10) + ".txt"
}
