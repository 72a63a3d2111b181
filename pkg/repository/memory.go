package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Memory keeps snapshots in process memory
type Memory struct {
	mu        sync.RWMutex
	snapshots map[model.UserID]*model.MemorySnapshot
}

var _ interfaces.SnapshotRepository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{snapshots: make(map[model.UserID]*model.MemorySnapshot)}
}

func (r *Memory) GetSnapshot(ctx context.Context, userID model.UserID) (*model.MemorySnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot, ok := r.snapshots[userID]
	if !ok {
		return nil, goerr.Wrap(ErrNotFound, "no snapshot in memory", goerr.V("user_id", userID))
	}
	return snapshot.Clone(), nil
}

func (r *Memory) PutSnapshot(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[userID] = snapshot.Clone().Normalize()
	return nil
}

func (r *Memory) DeleteSnapshot(ctx context.Context, userID model.UserID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.snapshots, userID)
	return nil
}
