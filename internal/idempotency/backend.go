package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayo6706/retail-ledger/internal/repository"
	"github.com/jackc/pgx/v5"
)

// PostgresBackend keeps reservations in the idempotency_keys table.
type PostgresBackend struct {
	queries *repository.Queries
}

func NewPostgresBackend(queries *repository.Queries) *PostgresBackend {
	return &PostgresBackend{queries: queries}
}

func (b *PostgresBackend) Get(ctx context.Context, key string) (Record, error) {
	row, err := b.queries.GetIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return fromRow(row), nil
}

func (b *PostgresBackend) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	_, err := b.queries.ReserveIdempotencyKey(ctx, repository.ReserveIdempotencyKeyParams{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		Method:         method,
		Path:           path,
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("reserve idempotency key: %w", err)
}

func (b *PostgresBackend) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (Record, error) {
	row, err := b.queries.FinalizeIdempotencyKey(ctx, repository.FinalizeIdempotencyKeyParams{
		ResponseStatus: int32(status),
		ResponseBody:   body,
		ContentType:    contentType,
		IdempotencyKey: key,
		RequestHash:    requestHash,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("finalize idempotency key: %w", err)
	}
	return fromRow(row), nil
}

func (b *PostgresBackend) Release(ctx context.Context, key string) error {
	if err := b.queries.ReleaseIdempotencyKey(ctx, key); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func fromRow(row repository.IdempotencyKey) Record {
	return Record{
		Key:         row.IdempotencyKey,
		RequestHash: row.RequestHash,
		Status:      int(row.ResponseStatus),
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		InProgress:  row.InProgress,
	}
}

// MemoryBackend serves LEDGER_DRIVER=memory and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	records map[string]Record
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Record)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (b *MemoryBackend) Reserve(_ context.Context, key, requestHash, _, _ string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[key]; ok {
		return false, nil
	}
	b.records[key] = Record{Key: key, RequestHash: requestHash, InProgress: true}
	return true, nil
}

func (b *MemoryBackend) Finalize(_ context.Context, key, requestHash string, status int, body []byte, contentType string) (Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[key]
	if !ok || rec.RequestHash != requestHash {
		return Record{}, ErrNotFound
	}
	rec.Status = status
	rec.Body = append([]byte(nil), body...)
	rec.ContentType = contentType
	rec.InProgress = false
	b.records[key] = rec
	return rec, nil
}

func (b *MemoryBackend) Release(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.records[key]; ok && rec.InProgress {
		delete(b.records, key)
	}
	return nil
}
