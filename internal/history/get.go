package history

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/dyluth/tuplebridge/pkg/space"
)

// Get retrieves a single record by id and writes it as pretty-printed JSON.
func Get(ctx context.Context, store Store, id string, w io.Writer) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid tuple ID format: must be a valid UUID")
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		if space.IsNotFound(err) {
			return &NotFoundError{ID: id}
		}
		return fmt.Errorf("failed to fetch tuple: %w", err)
	}

	return FormatSingleJSON(w, rec)
}

// NotFoundError is returned by Get when no tuple has the requested id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("tuple with ID '%s' not found", e.ID)
}

// IsNotFound returns true if err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
