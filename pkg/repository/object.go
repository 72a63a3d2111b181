package repository

import (
	"context"
	"errors"
	"io"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
)

// Object stores snapshots as "snapshots/<user>.json" objects
type Object struct {
	storage adapter.Storage
}

var _ interfaces.SnapshotRepository = (*Object)(nil)

func NewObject(storage adapter.Storage) *Object {
	return &Object{storage: storage}
}

func objectKey(userID model.UserID) string {
	return "snapshots/" + string(userID) + ".json"
}

func (r *Object) GetSnapshot(ctx context.Context, userID model.UserID) (*model.MemorySnapshot, error) {
	if err := userID.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}

	reader, err := r.storage.Get(ctx, objectKey(userID))
	if err != nil {
		if errors.Is(err, adapter.ErrObjectNotFound) {
			return nil, goerr.Wrap(ErrNotFound, "no snapshot object", goerr.V("key", objectKey(userID)))
		}
		return nil, goerr.Wrap(err, "failed to get snapshot object")
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read snapshot object", goerr.V("key", objectKey(userID)))
	}
	return decodeSnapshot(data)
}

func (r *Object) PutSnapshot(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) error {
	if err := userID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}

	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	writer, err := r.storage.Put(ctx, objectKey(userID))
	if err != nil {
		return goerr.Wrap(err, "failed to open snapshot object")
	}
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return goerr.Wrap(err, "failed to write snapshot object", goerr.V("key", objectKey(userID)))
	}
	if err := writer.Close(); err != nil {
		return goerr.Wrap(err, "failed to commit snapshot object", goerr.V("key", objectKey(userID)))
	}
	return nil
}

func (r *Object) DeleteSnapshot(ctx context.Context, userID model.UserID) error {
	if err := userID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}
	return r.storage.Delete(ctx, objectKey(userID))
}
