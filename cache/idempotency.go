package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"Tunora/logger"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
)

const idempotencyPrefix = "tunora:idem:"

// IdempotencyStore 保存带幂等键请求的响应, 重试时直接返回原结果.
// A key is reserved with a pending marker before the request runs, so
// concurrent retries cannot both execute it.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// idempotencyRecord is the stored value: a pending marker or a response.
type idempotencyRecord struct {
	Pending  bool            `json:"pending,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
}

var pendingRecord = []byte(`{"pending":true}`)

// NewIdempotencyStore returns nil when ttl <= 0, which disables replay.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 || client == nil {
		return nil
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// IdempotencyKey scopes a client-supplied key to the caller and operation.
func IdempotencyKey(accountID int64, op, key string) string {
	return fmt.Sprintf("%s%d:%s:%s", idempotencyPrefix, accountID, op, key)
}

// Reserve claims key with a pending marker (SETNX). It returns false when
// the key is already taken, by a finished or an in-flight request.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	if s == nil {
		return true, nil
	}
	ok, err := s.client.SetNX(ctx, key, pendingRecord, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key: %w", err)
	}
	return ok, nil
}

// Lookup decodes a stored response into dst. A miss or a pending
// reservation returns false with no error.
func (s *IdempotencyStore) Lookup(ctx context.Context, key string, dst interface{}) (bool, error) {
	if s == nil {
		return false, nil
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read idempotency key: %w", err)
	}
	found, err := decodeIdempotencyRecord(data, dst)
	if err != nil {
		// 数据损坏时按未命中处理
		logger.Warn("丢弃无法解析的幂等记录", logger.String("key", key), logger.ErrorField(err))
		return false, nil
	}
	return found, nil
}

// Remember replaces the reservation on key with v for the store TTL.
func (s *IdempotencyStore) Remember(ctx context.Context, key string, v interface{}) error {
	if s == nil {
		return nil
	}
	data, err := encodeIdempotencyRecord(v)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write idempotency key: %w", err)
	}
	logger.Debug("idempotent response stored", logger.String("key", key), logger.Duration("ttl", s.ttl))
	return nil
}

// Release drops a reservation whose request failed, so the client may retry.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to release idempotency key: %w", err)
	}
	return nil
}

func encodeIdempotencyRecord(v interface{}) ([]byte, error) {
	resp, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode idempotent response: %w", err)
	}
	return json.Marshal(idempotencyRecord{Response: resp})
}

// decodeIdempotencyRecord reports false for a pending marker.
func decodeIdempotencyRecord(data []byte, dst interface{}) (bool, error) {
	var rec idempotencyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, err
	}
	if rec.Pending || len(rec.Response) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(rec.Response, dst); err != nil {
		return false, err
	}
	return true, nil
}
