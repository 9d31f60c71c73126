// Package cache stores raw geo service response bodies. A Tiered cache puts
// an in-process LRU in front of a shared Redis store.
package cache

import (
	"context"
	"errors"
	"time"
)

type Interface interface {
	MGet(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Tiered reads the front tier first and fills it from the back tier on a
// front miss. Writes and deletes go to both tiers.
type Tiered struct {
	Front Interface
	Back  Interface
	// FrontTTL caps how long a back-tier hit is kept in the front tier.
	FrontTTL time.Duration
}

func (t *Tiered) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	out, err := t.Front.MGet(ctx, keys)
	if err != nil {
		out = map[string][]byte{}
	}
	if len(out) == len(keys) || t.Back == nil {
		return out, nil
	}
	missing := make([]string, 0, len(keys)-len(out))
	for _, k := range keys {
		if _, ok := out[k]; !ok {
			missing = append(missing, k)
		}
	}
	back, err := t.Back.MGet(ctx, missing)
	if err != nil {
		if len(out) > 0 {
			return out, nil
		}
		return nil, err
	}
	for k, v := range back {
		out[k] = v
		_ = t.Front.Set(ctx, k, v, t.FrontTTL)
	}
	return out, nil
}

func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	frontTTL := ttl
	if t.FrontTTL > 0 && (frontTTL <= 0 || t.FrontTTL < frontTTL) {
		frontTTL = t.FrontTTL
	}
	errFront := t.Front.Set(ctx, key, val, frontTTL)
	var errBack error
	if t.Back != nil {
		errBack = t.Back.Set(ctx, key, val, ttl)
	}
	return errors.Join(errFront, errBack)
}

func (t *Tiered) Del(ctx context.Context, keys ...string) error {
	errFront := t.Front.Del(ctx, keys...)
	var errBack error
	if t.Back != nil {
		errBack = t.Back.Del(ctx, keys...)
	}
	return errors.Join(errFront, errBack)
}

// Get is a single-key MGet.
func Get(ctx context.Context, c Interface, key string) ([]byte, bool, error) {
	m, err := c.MGet(ctx, []string{key})
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	return v, ok, nil
}
