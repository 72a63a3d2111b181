package repository_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/kioku/pkg/repository"
	"github.com/redis/go-redis/v9"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *repository.Redis) {
	mr := miniredis.RunT(t)
	repo, err := repository.NewRedis(context.Background(), mr.Addr(), "", 0, "kioku:")
	gt.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return mr, repo
}

func TestRedis(t *testing.T) {
	_, repo := setupRedis(t)
	testRepository(t, repo)
}

func TestRedisKeyLayout(t *testing.T) {
	mr, repo := setupRedis(t)
	ctx := context.Background()

	gt.NoError(t, repo.PutSnapshot(ctx, "alice", newTestSnapshot()))
	gt.True(t, mr.Exists("kioku:snapshot:alice"))

	gt.NoError(t, repo.DeleteSnapshot(ctx, "alice"))
	gt.False(t, mr.Exists("kioku:snapshot:alice"))
}

func TestRedisBrokenValue(t *testing.T) {
	mr, _ := setupRedis(t)
	gt.NoError(t, mr.Set("kioku:snapshot:bob", "{not json"))

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	repo := repository.NewRedisWithClient(client, "kioku:")
	defer repo.Close()

	_, err := repo.GetSnapshot(context.Background(), "bob")
	gt.Error(t, err)
}

func TestRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := repository.NewRedis(context.Background(), addr, "", 0, "")
	gt.Error(t, err)
}
