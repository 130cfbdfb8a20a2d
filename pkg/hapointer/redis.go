package hapointer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis"
)

const defaultKeyPrefix = "resumer:pointer:"

// RedisStore persists pointers in Redis, keyed by job id.
type RedisStore struct {
	db        *redis.Client
	keyPrefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a pointer store on the given Redis endpoint.
// The connection is verified before returning.
func NewRedisStore(endpoint string) (*RedisStore, error) {
	db := redis.NewClient(&redis.Options{Addr: endpoint})
	if err := db.Ping().Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to ha store %s: %w", endpoint, err)
	}
	return &RedisStore{db: db, keyPrefix: defaultKeyPrefix}, nil
}

// NewRedisStoreFromClient wraps an existing client, mainly for tests.
func NewRedisStoreFromClient(db *redis.Client) *RedisStore {
	return &RedisStore{db: db, keyPrefix: defaultKeyPrefix}
}

func (s *RedisStore) key(jobID string) string {
	return s.keyPrefix + jobID
}

func (s *RedisStore) Put(ctx context.Context, jobID string, ptr Pointer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ptr)
	if err != nil {
		return fmt.Errorf("marshal pointer: %w", err)
	}
	if err := s.db.Set(s.key(jobID), payload, 0).Err(); err != nil {
		return fmt.Errorf("put pointer for %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, jobID string) (*Pointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := s.db.Get(s.key(jobID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pointer for %s: %w", jobID, err)
	}
	var ptr Pointer
	if err := json.Unmarshal(payload, &ptr); err != nil {
		return nil, fmt.Errorf("parse pointer for %s: %w", jobID, err)
	}
	return &ptr, nil
}

func (s *RedisStore) Close() error {
	return s.db.Close()
}
