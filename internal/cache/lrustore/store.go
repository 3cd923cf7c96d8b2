// Package lrustore is the in-process cache.Interface used when no Redis
// address is configured.
package lrustore

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/bmlt-go/internal/core/observability"
)

type entry struct {
	val     []byte
	expires time.Time
}

// Store evicts by recency once full; entries also expire after their TTL.
type Store struct {
	c   *lru.Cache[string, entry]
	now func() time.Time
}

func New(size int) (*Store, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("lru new: %w", err)
	}
	return &Store{c: c, now: time.Now}, nil
}

// WithClock swaps the clock used for expiry checks.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("mget", err)
		return nil, err
	}
	now := s.now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e, ok := s.c.Get(k)
		if !ok {
			continue
		}
		if !e.expires.IsZero() && !now.Before(e.expires) {
			s.c.Remove(k)
			continue
		}
		out[k] = e.val
	}
	observability.ObserveCacheOp("mget", nil)
	return out, nil
}

// Set stores a copy of val. A ttl <= 0 never expires.
func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("set", err)
		return err
	}
	e := entry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.c.Add(key, e)
	observability.ObserveCacheOp("set", nil)
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("del", err)
		return err
	}
	for _, k := range keys {
		s.c.Remove(k)
	}
	observability.ObserveCacheOp("del", nil)
	return nil
}

func (s *Store) Len() int { return s.c.Len() }
