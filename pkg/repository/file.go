package repository

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
)

// File stores one JSON document per user in a directory
type File struct {
	dir string
}

var _ interfaces.SnapshotRepository = (*File)(nil)

// NewFile creates the directory if it does not exist
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, goerr.Wrap(err, "failed to create storage directory", goerr.V("dir", dir))
	}
	return &File{dir: dir}, nil
}

func (r *File) path(userID model.UserID) (string, error) {
	if err := userID.Validate(); err != nil {
		return "", goerr.Wrap(err, "invalid user ID", goerr.V("user_id", userID))
	}
	return filepath.Join(r.dir, string(userID)+".json"), nil
}

func (r *File) GetSnapshot(ctx context.Context, userID model.UserID) (*model.MemorySnapshot, error) {
	path, err := r.path(userID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrNotFound, "snapshot file does not exist", goerr.V("path", path))
		}
		return nil, goerr.Wrap(err, "failed to read snapshot file", goerr.V("path", path))
	}

	snapshot, err := decodeSnapshot(data)
	if err != nil {
		return nil, goerr.Wrap(err, "broken snapshot file", goerr.V("path", path))
	}
	return snapshot, nil
}

// PutSnapshot writes to a temporary file and renames it over the old one
func (r *File) PutSnapshot(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) error {
	path, err := r.path(userID)
	if err != nil {
		return err
	}

	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(r.dir, "."+string(userID)+".*.tmp")
	if err != nil {
		return goerr.Wrap(err, "failed to create temporary file", goerr.V("dir", r.dir))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return goerr.Wrap(err, "failed to write snapshot file", goerr.V("path", tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return goerr.Wrap(err, "failed to close snapshot file", goerr.V("path", tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return goerr.Wrap(err, "failed to replace snapshot file", goerr.V("path", path))
	}
	return nil
}

func (r *File) DeleteSnapshot(ctx context.Context, userID model.UserID) error {
	path, err := r.path(userID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return goerr.Wrap(err, "failed to delete snapshot file", goerr.V("path", path))
	}
	return nil
}
