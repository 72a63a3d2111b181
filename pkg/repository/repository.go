package repository

import (
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/model"
)

// ErrNotFound is returned when no snapshot exists for a user
var ErrNotFound = goerr.New("snapshot not found")

func encodeSnapshot(snapshot *model.MemorySnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snapshot.Clone().Normalize(), "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal snapshot")
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*model.MemorySnapshot, error) {
	var snapshot model.MemorySnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal snapshot")
	}
	return snapshot.Normalize(), nil
}
