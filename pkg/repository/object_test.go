package repository_test

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
	"github.com/m-mizutani/kioku/pkg/repository"
)

// mockStorage is an in-memory implementation of adapter.Storage
type mockStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: map[string][]byte{}}
}

type objectWriter struct {
	bytes.Buffer
	commit func([]byte)
}

func (w *objectWriter) Close() error {
	w.commit(w.Bytes())
	return nil
}

func (m *mockStorage) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &objectWriter{commit: func(data []byte) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.objects[key] = append([]byte{}, data...)
	}}, nil
}

func (m *mockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, goerr.Wrap(adapter.ErrObjectNotFound, "missing", goerr.V("key", key))
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func TestObject(t *testing.T) {
	testRepository(t, repository.NewObject(newMockStorage()))
}

func TestObjectKey(t *testing.T) {
	storage := newMockStorage()
	repo := repository.NewObject(storage)

	gt.NoError(t, repo.PutSnapshot(context.Background(), "alice", newTestSnapshot()))
	_, ok := storage.objects["snapshots/alice.json"]
	gt.True(t, ok)
}
