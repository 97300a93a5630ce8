package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultKeyPrefix namespaces registry keys in a shared Redis database.
const DefaultKeyPrefix = "videooverlay:artifact:"

// Compile-time check that RedisRegistry implements Registry.
var _ Registry = (*RedisRegistry)(nil)

// RedisRegistry stores each record as a JSON string under
// <prefix><id> and keeps the set of identifiers under <prefix>index.
type RedisRegistry struct {
	client *redis.Client
	prefix string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisRegistry creates a registry on client. An empty prefix uses DefaultKeyPrefix.
func NewRedisRegistry(client *redis.Client, prefix string) *RedisRegistry {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisRegistry{client: client, prefix: prefix}
}

func (r *RedisRegistry) key(id string) string {
	return r.prefix + id
}

func (r *RedisRegistry) indexKey() string {
	return r.prefix + "index"
}

// Save records a new artifact. SETNX keeps records write-once; the index
// entry is written in the same transaction. SADD of an existing member is a
// no-op, so a rejected duplicate leaves the index unchanged.
func (r *RedisRegistry) Save(ctx context.Context, a *CompositedArtifact) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal artifact: %w", err)
	}

	var set *redis.BoolCmd
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		set = pipe.SetNX(ctx, r.key(a.ID), data, 0)
		pipe.SAdd(ctx, r.indexKey(), a.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save artifact %s: %w", a.ID, err)
	}
	if !set.Val() {
		return ErrArtifactExists
	}
	return nil
}

// FindByID loads a record.
func (r *RedisRegistry) FindByID(ctx context.Context, id string) (*CompositedArtifact, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load artifact %s: %w", id, err)
	}

	var a CompositedArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact %s: %w", id, err)
	}
	return &a, nil
}

// List loads every indexed record. Index entries whose record vanished are skipped.
func (r *RedisRegistry) List(ctx context.Context) ([]*CompositedArtifact, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list artifact index: %w", err)
	}
	if len(ids) == 0 {
		return []*CompositedArtifact{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load artifacts: %w", err)
	}

	result := make([]*CompositedArtifact, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var a CompositedArtifact
		if err := json.Unmarshal([]byte(s), &a); err != nil {
			return nil, fmt.Errorf("unmarshal artifact %s: %w", ids[i], err)
		}
		result = append(result, &a)
	}
	return result, nil
}

// Delete removes a record and its index entry.
func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.key(id))
		pipe.SRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrArtifactNotFound
	}
	return nil
}
