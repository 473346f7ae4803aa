package ports

import (
	"context"

	"github.com/google/uuid"
)

// ModelLocker serializes work on a single model's deployment row.
type ModelLocker interface {
	// Lock blocks until the model's lock is held or ctx is done. The returned
	// function releases it and is safe to call once.
	Lock(ctx context.Context, modelID uuid.UUID) (unlock func(), err error)
}
