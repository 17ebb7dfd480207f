package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "mytoken"
	maxRedisRetries    = 4
)

// RedisStore keeps the ledger in Redis.
//
// Update uses optimistic locking: every key read is WATCHed, writes are
// buffered and committed in one MULTI/EXEC. The first value read for a key
// is kept for the rest of the attempt, so fn sees a stable snapshot and a
// concurrent change surfaces as an aborted EXEC. The transaction is then
// replayed from the start, so fn must not keep side effects outside the Tx
// between attempts.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps an existing client. An empty prefix uses "mytoken".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

type redisKV struct {
	ctx    context.Context
	tx     *redis.Tx
	prefix string
	writes map[string]string

	// reads caches the first GET of each key; nil marks an absent key.
	reads map[string]*string
}

func newRedisKV(ctx context.Context, tx *redis.Tx, prefix string, readOnly bool) *redisKV {
	r := &redisKV{ctx: ctx, tx: tx, prefix: prefix, reads: make(map[string]*string)}
	if !readOnly {
		r.writes = make(map[string]string)
	}
	return r
}

func (r *redisKV) key(k string) string {
	return r.prefix + ":" + k
}

func (r *redisKV) get(k string) (string, bool, error) {
	if v, ok := r.writes[k]; ok {
		return v, true, nil
	}
	if v, ok := r.reads[k]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}

	key := r.key(k)
	if r.writes != nil {
		if err := r.tx.Watch(r.ctx, key).Err(); err != nil {
			return "", false, err
		}
	}
	v, err := r.tx.Get(r.ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		r.reads[k] = nil
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	r.reads[k] = &v
	return v, true, nil
}

func (r *redisKV) put(k, v string) error {
	r.writes[k] = v
	return nil
}

// Update runs fn in an optimistic transaction, retrying on conflicts.
func (s *RedisStore) Update(ctx context.Context, fn func(Tx) error) error {
	for i := 0; i < maxRedisRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			backend := newRedisKV(ctx, tx, s.prefix, false)
			if err := fn(newLedgerTx(backend, false)); err != nil {
				return err
			}
			if len(backend.writes) == 0 {
				return nil
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for k, v := range backend.writes {
					pipe.Set(ctx, backend.key(k), v, 0)
				}
				return nil
			})
			return err
		})

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return fmt.Errorf("%w: gave up after %d attempts", ErrConflict, maxRedisRetries)
}

// View runs fn against the current Redis state without watching keys.
func (s *RedisStore) View(ctx context.Context, fn func(Tx) error) error {
	return s.client.Watch(ctx, func(tx *redis.Tx) error {
		return fn(newLedgerTx(newRedisKV(ctx, tx, s.prefix, true), true))
	})
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
