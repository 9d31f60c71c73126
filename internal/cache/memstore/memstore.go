// Package memstore is an in-process expiring LRU cache tier.
package memstore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/geoclient/internal/core/observability"
)

type entry struct {
	val     []byte
	expires time.Time
}

// Store keeps at most size entries. Each entry carries its own expiry; the
// LRU's own TTL is only the upper bound.
type Store struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

func New(size int, maxTTL time.Duration) *Store {
	if size <= 0 {
		size = 4096
	}
	return &Store{
		lru: expirable.NewLRU[string, entry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (s *Store) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		observability.ObserveCacheOp("mem_mget", err, time.Since(start).Seconds())
		return nil, err
	}
	now := s.now()
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		e, ok := s.lru.Get(k)
		if !ok {
			continue
		}
		if !e.expires.IsZero() && !now.Before(e.expires) {
			s.lru.Remove(k)
			continue
		}
		out[k] = e.val
	}
	observability.ObserveCacheOp("mem_mget", nil, time.Since(start).Seconds())
	return out, nil
}

func (s *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e := entry{val: val}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.lru.Add(key, e)
	return nil
}

func (s *Store) Del(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, k := range keys {
		s.lru.Remove(k)
	}
	return nil
}

func (s *Store) Len() int { return s.lru.Len() }
