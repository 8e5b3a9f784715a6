// Package redisstore keeps map source descriptors in Redis so that several
// servers can share one catalog.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	maintnotifications "github.com/redis/go-redis/v9/maintnotifications"

	"github.com/mohammed-shakir/superoverlay/internal/core/observability"
	"github.com/mohammed-shakir/superoverlay/internal/errs"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
)

const (
	keyPrefix = "mapsource:"
	idsKey    = "mapsource:ids"
)

// Key returns the Redis key holding the raw descriptor of id.
func Key(id string) string { return keyPrefix + id }

type Option func(*redis.Options)

func WithPoolSize(n int) Option {
	return func(o *redis.Options) { o.PoolSize = n }
}

func WithDialTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func WithReadTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.ReadTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	return func(o *redis.Options) { o.WriteTimeout = d }
}

// Store implements mapsource.Store. Descriptors are stored verbatim as XML
// under Key(id) and their IDs in the set mapsource:ids.
type Store struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ mapsource.Store = (*Store)(nil)

func New(ctx context.Context, addr string, logger *slog.Logger, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     16,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		MaintNotificationsConfig: &maintnotifications.Config{
			Mode: maintnotifications.ModeDisabled,
		},
	}
	for _, f := range opts {
		f(ro)
	}

	rdb := redis.NewClient(ro)

	start := time.Now()
	err := rdb.Ping(ctx).Err()
	observability.ObserveStoreOp("ping", err, time.Since(start).Seconds())
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb, logger: logger}, nil
}

func (s *Store) Get(ctx context.Context, id string) (*mapsource.Source, error) {
	clean, ok := mapsource.CleanID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrSourceNotFound, id)
	}

	start := time.Now()
	raw, err := s.rdb.Get(ctx, Key(clean)).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.ObserveStoreOp("get", nil, time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %q", errs.ErrSourceNotFound, id)
	}
	observability.ObserveStoreOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis GET %q: %w", clean, err)
	}
	return mapsource.Parse(raw, clean)
}

// List returns every decodable descriptor ordered by ID. Undecodable entries
// are logged and skipped.
func (s *Store) List(ctx context.Context) ([]*mapsource.Source, error) {
	start := time.Now()
	ids, err := s.rdb.SMembers(ctx, idsKey).Result()
	if err != nil {
		observability.ObserveStoreOp("list", err, time.Since(start).Seconds())
		return nil, fmt.Errorf("redis SMEMBERS %s: %w", idsKey, err)
	}
	if len(ids) == 0 {
		observability.ObserveStoreOp("list", nil, time.Since(start).Seconds())
		return nil, nil
	}
	slices.Sort(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	observability.ObserveStoreOp("list", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("redis MGET %d keys: %w", len(keys), err)
	}

	out := make([]*mapsource.Source, 0, len(vals))
	for i, v := range vals {
		var raw []byte
		switch t := v.(type) {
		case nil:
			continue // id without descriptor
		case string:
			raw = []byte(t)
		case []byte:
			raw = t
		default:
			raw = fmt.Append(nil, t)
		}
		src, err := mapsource.Parse(raw, ids[i])
		if err != nil {
			if !errors.Is(err, mapsource.ErrNotMapSource) {
				s.logger.Warn("skipping map source", "id", ids[i], "err", err)
			}
			continue
		}
		out = append(out, src)
	}
	return out, nil
}

// Put validates raw and stores it under id.
func (s *Store) Put(ctx context.Context, id string, raw []byte) error {
	clean, ok := mapsource.CleanID(id)
	if !ok {
		return fmt.Errorf("%w: invalid id %q", errs.ErrConfiguration, id)
	}
	if _, err := mapsource.Parse(raw, clean); err != nil {
		return err
	}

	start := time.Now()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, Key(clean), raw, 0)
		p.SAdd(ctx, idsKey, clean)
		return nil
	})
	observability.ObserveStoreOp("put", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis put %q: %w", clean, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, Key(id))
		p.SRem(ctx, idsKey, id)
		return nil
	})
	observability.ObserveStoreOp("del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("redis delete %q: %w", id, err)
	}
	return nil
}

func (s *Store) Check(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.rdb.Close(); err != nil {
		return fmt.Errorf("redis close: %w", err)
	}
	return nil
}
