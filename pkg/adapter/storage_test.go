package adapter_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/adapter"
)

func TestStorage(t *testing.T) {
	bucket := os.Getenv("TEST_STORAGE_BUCKET")
	if bucket == "" {
		t.Skip("TEST_STORAGE_BUCKET is not set")
	}

	ctx := context.Background()
	storage, err := adapter.NewStorage(ctx, bucket)
	gt.NoError(t, err)

	key := "test/" + uuid.NewString() + ".json"
	w, err := storage.Put(ctx, key)
	gt.NoError(t, err)
	_, err = w.Write([]byte(`{"hello":"world"}`))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())

	r, err := storage.Get(ctx, key)
	gt.NoError(t, err)
	data, err := io.ReadAll(r)
	gt.NoError(t, err)
	gt.NoError(t, r.Close())
	gt.Equal(t, string(data), `{"hello":"world"}`)

	gt.NoError(t, storage.Delete(ctx, key))
	_, err = storage.Get(ctx, key)
	gt.True(t, errors.Is(err, adapter.ErrObjectNotFound))
	gt.NoError(t, storage.Delete(ctx, key))
}
