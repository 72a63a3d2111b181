package repository

import (
	"context"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/kioku/pkg/interfaces"
	"github.com/m-mizutani/kioku/pkg/model"
	"github.com/redis/go-redis/v9"
)

// Redis stores each snapshot as a JSON string under "<prefix>snapshot:<user>"
type Redis struct {
	client *redis.Client
	prefix string
}

var _ interfaces.SnapshotRepository = (*Redis)(nil)

// NewRedis connects to a Redis server and checks the connection
func NewRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", addr))
	}

	return NewRedisWithClient(client, prefix), nil
}

func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(userID model.UserID) string {
	return r.prefix + "snapshot:" + string(userID)
}

func (r *Redis) GetSnapshot(ctx context.Context, userID model.UserID) (*model.MemorySnapshot, error) {
	data, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, goerr.Wrap(ErrNotFound, "no snapshot in redis", goerr.V("key", r.key(userID)))
		}
		return nil, goerr.Wrap(err, "failed to get snapshot from redis", goerr.V("key", r.key(userID)))
	}

	return decodeSnapshot(data)
}

func (r *Redis) PutSnapshot(ctx context.Context, userID model.UserID, snapshot *model.MemorySnapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.key(userID), data, 0).Err(); err != nil {
		return goerr.Wrap(err, "failed to put snapshot to redis", goerr.V("key", r.key(userID)))
	}
	return nil
}

func (r *Redis) DeleteSnapshot(ctx context.Context, userID model.UserID) error {
	if err := r.client.Del(ctx, r.key(userID)).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete snapshot from redis", goerr.V("key", r.key(userID)))
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
