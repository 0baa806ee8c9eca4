package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/keyshield/keyshield/internal/models"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore keeps endpoints as JSON documents in redis.
//
// Layout:
//
//	<prefix>:endpoint:<id>   JSON encoded endpoint
//	<prefix>:proxy           hash of proxy id -> endpoint id
//	<prefix>:endpoints       sorted set of endpoint ids scored by creation time
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore wraps a redis client. Keys are namespaced with prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "keyshield"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) endpointKey(id string) string {
	return s.prefix + ":endpoint:" + id
}

func (s *RedisStore) proxyKey() string {
	return s.prefix + ":proxy"
}

func (s *RedisStore) indexKey() string {
	return s.prefix + ":endpoints"
}

func (s *RedisStore) List(ctx context.Context, opts ListOptions) ([]models.Endpoint, error) {
	ids, errRange := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if errRange != nil {
		return nil, fmt.Errorf("store: list endpoints: %w", errRange)
	}
	if len(ids) == 0 {
		return []models.Endpoint{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.endpointKey(id)
	}
	values, errGet := s.client.MGet(ctx, keys...).Result()
	if errGet != nil {
		return nil, fmt.Errorf("store: list endpoints: %w", errGet)
	}

	keyword := strings.ToLower(strings.TrimSpace(opts.Keyword))
	out := make([]models.Endpoint, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var endpoint models.Endpoint
		if errUnmarshal := json.Unmarshal([]byte(raw), &endpoint); errUnmarshal != nil {
			return nil, fmt.Errorf("store: decode endpoint: %w", errUnmarshal)
		}
		if keyword != "" &&
			!strings.Contains(strings.ToLower(endpoint.Name), keyword) &&
			!strings.Contains(strings.ToLower(endpoint.Description), keyword) {
			continue
		}
		out = append(out, endpoint)
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Endpoint, error) {
	return s.load(ctx, s.client, id)
}

func (s *RedisStore) GetByProxyID(ctx context.Context, proxyID string) (*models.Endpoint, error) {
	if strings.TrimSpace(proxyID) == "" {
		return nil, ErrNotFound
	}
	id, errGet := s.client.HGet(ctx, s.proxyKey(), proxyID).Result()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get endpoint: %w", errGet)
	}
	return s.load(ctx, s.client, id)
}

func (s *RedisStore) load(ctx context.Context, cmd redis.Cmdable, id string) (*models.Endpoint, error) {
	raw, errGet := cmd.Get(ctx, s.endpointKey(id)).Bytes()
	if errGet != nil {
		if errors.Is(errGet, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get endpoint: %w", errGet)
	}
	var endpoint models.Endpoint
	if errUnmarshal := json.Unmarshal(raw, &endpoint); errUnmarshal != nil {
		return nil, fmt.Errorf("store: decode endpoint: %w", errUnmarshal)
	}
	return &endpoint, nil
}

func (s *RedisStore) Create(ctx context.Context, endpoint *models.Endpoint) error {
	if endpoint == nil {
		return fmt.Errorf("store: nil endpoint")
	}
	if endpoint.UpdatedAt.IsZero() {
		endpoint.UpdatedAt = endpoint.CreatedAt
	}
	payload, errMarshal := json.Marshal(endpoint)
	if errMarshal != nil {
		return fmt.Errorf("store: encode endpoint: %w", errMarshal)
	}

	return s.withRetry(ctx, func(tx *redis.Tx) error {
		if endpoint.ProxyID != "" {
			owner, errOwner := tx.HGet(ctx, s.proxyKey(), endpoint.ProxyID).Result()
			if errOwner == nil && owner != endpoint.ID {
				return ErrConflict
			}
			if errOwner != nil && !errors.Is(errOwner, redis.Nil) {
				return errOwner
			}
		}
		_, errPipe := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.endpointKey(endpoint.ID), payload, 0)
			if endpoint.ProxyID != "" {
				pipe.HSet(ctx, s.proxyKey(), endpoint.ProxyID, endpoint.ID)
			}
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(endpoint.CreatedAt.UnixMilli()), Member: endpoint.ID})
			return nil
		})
		return errPipe
	}, s.endpointKey(endpoint.ID), s.proxyKey())
}

func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Endpoint, error) {
	var updated *models.Endpoint
	errTx := s.withRetry(ctx, func(tx *redis.Tx) error {
		current, errGet := s.load(ctx, tx, id)
		if errGet != nil {
			return errGet
		}
		originalProxyID := current.ProxyID
		createdAt := current.CreatedAt
		if fn != nil {
			if errFn := fn(current); errFn != nil {
				return errFn
			}
		}
		current.ID = id
		current.CreatedAt = createdAt
		current.UpdatedAt = time.Now().UTC()

		if current.ProxyID != originalProxyID && current.ProxyID != "" {
			owner, errOwner := tx.HGet(ctx, s.proxyKey(), current.ProxyID).Result()
			if errOwner == nil && owner != id {
				return ErrConflict
			}
			if errOwner != nil && !errors.Is(errOwner, redis.Nil) {
				return errOwner
			}
		}
		payload, errMarshal := json.Marshal(current)
		if errMarshal != nil {
			return fmt.Errorf("store: encode endpoint: %w", errMarshal)
		}
		_, errPipe := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.endpointKey(id), payload, 0)
			if current.ProxyID != originalProxyID {
				if originalProxyID != "" {
					pipe.HDel(ctx, s.proxyKey(), originalProxyID)
				}
				if current.ProxyID != "" {
					pipe.HSet(ctx, s.proxyKey(), current.ProxyID, id)
				}
			}
			return nil
		})
		if errPipe != nil {
			return errPipe
		}
		updated = current
		return nil
	}, s.endpointKey(id), s.proxyKey())
	if errTx != nil {
		return nil, errTx
	}
	return updated, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.withRetry(ctx, func(tx *redis.Tx) error {
		current, errGet := s.load(ctx, tx, id)
		if errGet != nil {
			return errGet
		}
		_, errPipe := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, s.endpointKey(id))
			if current.ProxyID != "" {
				pipe.HDel(ctx, s.proxyKey(), current.ProxyID)
			}
			pipe.ZRem(ctx, s.indexKey(), id)
			return nil
		})
		return errPipe
	}, s.endpointKey(id), s.proxyKey())
}

func (s *RedisStore) RecordStatus(ctx context.Context, id, status string, at time.Time) error {
	_, err := s.Update(ctx, id, func(endpoint *models.Endpoint) error {
		testedAt := at.UTC()
		endpoint.Status = status
		endpoint.LastTestedAt = &testedAt
		return nil
	})
	return err
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// withRetry runs fn under WATCH on keys, retrying when a watched key changes.
func (s *RedisStore) withRetry(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("store: redis tx: too much contention")
}
