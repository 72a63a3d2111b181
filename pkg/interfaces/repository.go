package interfaces

import (
	"context"

	"github.com/m-mizutani/kioku/pkg/model"
)

// SnapshotRepository defines the interface for memory snapshot persistence
type SnapshotRepository interface {
	// GetSnapshot retrieves the snapshot of a user. It returns an error
	// satisfying errors.Is(err, repository.ErrNotFound) if none exists.
	GetSnapshot(ctx context.Context, userID model.UserID) (*model.MemorySnapshot, error)

	// PutSnapshot replaces the snapshot of a user
	PutSnapshot(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) error

	// DeleteSnapshot removes the snapshot of a user
	DeleteSnapshot(ctx context.Context, userID model.UserID) error
}
