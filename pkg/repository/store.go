package repository

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/m-mizutani/kioku/pkg/utils/logging"
)

// Store wraps a SnapshotRepository with turn semantics: loading never fails
// and saving is best-effort.
type Store struct {
	repo interfaces.SnapshotRepository
}

func NewStore(repo interfaces.SnapshotRepository) *Store {
	return &Store{repo: repo}
}

// Load returns the user's snapshot, or an empty one if it does not exist or
// cannot be read.
func (s *Store) Load(ctx context.Context, userID model.UserID) *model.MemorySnapshot {
	snapshot, err := s.repo.GetSnapshot(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logging.From(ctx).Debug("no snapshot yet, starting empty", "user_id", userID)
		} else {
			logging.From(ctx).Error("failed to load snapshot, starting empty", "error", err, "user_id", userID)
		}
		return model.NewSnapshot()
	}
	return snapshot.Normalize()
}

// Save persists the snapshot. Failures are logged and not returned.
func (s *Store) Save(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) {
	if err := s.repo.PutSnapshot(ctx, userID, snapshot); err != nil {
		logging.From(ctx).Error("failed to save snapshot", "error", err, "user_id", userID)
	}
}

// Delete removes the user's snapshot. Unlike Save, errors are returned
// since deletion is an explicit request.
func (s *Store) Delete(ctx context.Context, userID model.UserID) error {
	if err := s.repo.DeleteSnapshot(ctx, userID); err != nil {
		return goerr.Wrap(err, "failed to delete snapshot", goerr.V("user_id", userID))
	}
	return nil
}
