package blobstore

import (
	"context"
	"time"
)

type timeoutStore struct {
	Store
	d time.Duration
}

// WithTimeout bounds every network call of s by d. A zero d returns s.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{Store: s, d: d}
}

func (t *timeoutStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Store.Exists(ctx, key)
}

func (t *timeoutStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Store.Put(ctx, key, data, contentType)
}

func (t *timeoutStore) Get(ctx context.Context, key string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.Store.Get(ctx, key)
}
