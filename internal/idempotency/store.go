// Package idempotency stores the first response to a mutating request under
// its Idempotency-Key so a retried request replays it instead of running the
// operation twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = errors.New("idempotency key not found")
	ErrHashMismatch = errors.New("idempotency key body mismatch")
	ErrInProgress   = errors.New("idempotency key in progress")
)

const redisKeyPrefix = "idempotency"

type Record struct {
	Key         string
	RequestHash string
	Status      int
	Body        []byte
	ContentType string
	InProgress  bool
	ServedBy    string
}

// Backend is the durable home of reservations. Reserve reports false when
// the key already exists.
type Backend interface {
	Get(ctx context.Context, key string) (Record, error)
	Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error)
	Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (Record, error)
	Release(ctx context.Context, key string) error
}

// Store layers an optional Redis read-through cache over a Backend.
type Store struct {
	redis   redis.Cmdable
	backend Backend
	ttl     time.Duration
}

func NewStore(redis redis.Cmdable, backend Backend, ttl time.Duration) *Store {
	return &Store{redis: redis, backend: backend, ttl: ttl}
}

// ScopedKey namespaces a client key by user so two users never collide.
func ScopedKey(userID int64, key string) string {
	return fmt.Sprintf("u%d:%s", userID, key)
}

type cacheEnvelope struct {
	Key         string `json:"key"`
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type"`
}

func (s *Store) Lookup(ctx context.Context, key, requestHash string) (*Record, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, redisKey(key)).Result()
		if err == nil {
			var env cacheEnvelope
			if json.Unmarshal([]byte(val), &env) == nil {
				if env.Hash != requestHash {
					return nil, ErrHashMismatch
				}
				return &Record{
					Key:         env.Key,
					RequestHash: env.Hash,
					Status:      env.Status,
					Body:        env.Body,
					ContentType: env.ContentType,
					ServedBy:    "redis",
				}, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			zap.L().Warn("redis idempotency lookup failed", zap.Error(err))
		}
	}

	rec, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if rec.RequestHash != requestHash {
		return nil, ErrHashMismatch
	}
	if rec.InProgress {
		return nil, ErrInProgress
	}
	rec.ServedBy = "store"
	s.cache(ctx, rec)
	return &rec, nil
}

func (s *Store) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	return s.backend.Reserve(ctx, key, requestHash, method, path)
}

func (s *Store) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*Record, error) {
	rec, err := s.backend.Finalize(ctx, key, requestHash, status, body, contentType)
	if err != nil {
		return nil, err
	}
	rec.ServedBy = "store"
	s.cache(ctx, rec)
	return &rec, nil
}

// Release drops an unfinished reservation so the client may retry.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.backend.Release(ctx, key)
}

func (s *Store) WaitForCompletion(ctx context.Context, key, requestHash string) (*Record, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		rec, err := s.Lookup(ctx, key, requestHash)
		if err == nil {
			return rec, nil
		}
		if errors.Is(err, ErrInProgress) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
				continue
			}
		}
		return nil, err
	}
}

func (s *Store) cache(ctx context.Context, rec Record) {
	if s.redis == nil {
		return
	}
	env := cacheEnvelope{
		Key:         rec.Key,
		Hash:        rec.RequestHash,
		Status:      rec.Status,
		Body:        rec.Body,
		ContentType: rec.ContentType,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		zap.L().Warn("marshal idempotency cache", zap.Error(err))
		return
	}
	if err := s.redis.Set(ctx, redisKey(rec.Key), payload, s.ttl).Err(); err != nil {
		zap.L().Warn("redis idempotency cache set failed", zap.Error(err))
	}
}

func redisKey(key string) string {
	return fmt.Sprintf("%s:%s", redisKeyPrefix, key)
}
