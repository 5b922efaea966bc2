package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/abhisek/parla/internal/lessons"
	"github.com/abhisek/parla/internal/llm"
)

const redisKeyPrefix = "parla:session:"

type redisMeta struct {
	Config    lessons.Config `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}

// RedisRegistry stores sessions in Redis so that several server processes
// can serve the same lesson. Both keys of a session expire after IdleTTL
// without use.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
	owned  bool
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(ctx context.Context, addr, password string, db int, opts Options) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session.NewRedisRegistry: ping: %w", err)
	}

	r := NewRedisRegistryFromClient(client, opts)
	r.owned = true
	return r, nil
}

// NewRedisRegistryFromClient wraps an existing client. Close leaves the
// client open.
func NewRedisRegistryFromClient(client *redis.Client, opts Options) *RedisRegistry {
	return &RedisRegistry{client: client, ttl: opts.IdleTTL}
}

func metaKey(id string) string     { return redisKeyPrefix + id }
func messagesKey(id string) string { return redisKeyPrefix + id + ":messages" }

func (r *RedisRegistry) Create(ctx context.Context, cfg lessons.Config) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		Config:    cfg,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(redisMeta{Config: cfg, CreatedAt: s.CreatedAt})
	if err != nil {
		return nil, fmt.Errorf("session.RedisRegistry.Create: marshal: %w", err)
	}
	if err := r.client.Set(ctx, metaKey(s.ID), payload, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("session.RedisRegistry.Create: %w", err)
	}

	s.History = &redisHistory{registry: r, id: s.ID}
	return s, nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, metaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session.RedisRegistry.Get: %w", err)
	}

	var meta redisMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("session.RedisRegistry.Get: decode: %w", err)
	}

	if err := r.touch(ctx, id); err != nil {
		return nil, fmt.Errorf("session.RedisRegistry.Get: %w", err)
	}

	return &Session{
		ID:        id,
		Config:    meta.Config,
		CreatedAt: meta.CreatedAt,
		History:   &redisHistory{registry: r, id: id},
	}, nil
}

func (r *RedisRegistry) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, metaKey(id), messagesKey(id)).Err(); err != nil {
		return fmt.Errorf("session.RedisRegistry.Delete: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Close() error {
	if !r.owned {
		return nil
	}
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("session.RedisRegistry.Close: %w", err)
	}
	return nil
}

// touch refreshes the idle expiry of both keys.
func (r *RedisRegistry) touch(ctx context.Context, id string) error {
	if r.ttl <= 0 {
		return nil
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, metaKey(id), r.ttl)
		pipe.Expire(ctx, messagesKey(id), r.ttl)
		return nil
	})
	return err
}

// redisHistory stores messages as a list of JSON documents.
type redisHistory struct {
	registry *RedisRegistry
	id       string
}

func (h *redisHistory) Add(ctx context.Context, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, len(msgs))
	for i, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("session.History.Add: marshal: %w", err)
		}
		values[i] = b
	}

	key := messagesKey(h.id)
	ttl := h.registry.ttl
	_, err := h.registry.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
			pipe.Expire(ctx, metaKey(h.id), ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("session.History.Add: %w", err)
	}
	return nil
}

func (h *redisHistory) Messages(ctx context.Context) ([]llm.Message, error) {
	raw, err := h.registry.client.LRange(ctx, messagesKey(h.id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("session.History.Messages: %w", err)
	}
	msgs := make([]llm.Message, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal([]byte(r), &msgs[i]); err != nil {
			return nil, fmt.Errorf("session.History.Messages: decode: %w", err)
		}
	}
	return msgs, nil
}

func (h *redisHistory) Clear(ctx context.Context) error {
	if err := h.registry.client.Del(ctx, messagesKey(h.id)).Err(); err != nil {
		return fmt.Errorf("session.History.Clear: %w", err)
	}
	return nil
}
