// Package cache is a content-addressed result cache over a blob store.
//
// An identity (a source URL, or a digest of uploaded bytes) maps to a fixed
// object key. Once an object exists under that key it is returned without
// recomputation for as long as the store keeps it.
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Brownie44l1/colourise-api/internal/blobstore"
	"github.com/Brownie44l1/colourise-api/internal/failure"
)

// ContentType of every stored result.
const ContentType = "image/jpeg"

// DefaultSuffix is appended to the digest to form the object key.
const DefaultSuffix = ".jpg"

// Key derives the object key for identity: the hex MD5 of the identity
// followed by DefaultSuffix.
func Key(identity string) string {
	return KeyWithSuffix(identity, DefaultSuffix)
}

// KeyWithSuffix is Key with a custom filename suffix.
func KeyWithSuffix(identity, suffix string) string {
	sum := md5.Sum([]byte(identity))
	return hex.EncodeToString(sum[:]) + suffix
}

// Result is the outcome of LookupOrCompute.
type Result struct {
	Key      string
	Location string
	// Hit is true when the object already existed and compute was skipped.
	Hit bool
}

// ComputeFunc produces the JPEG bytes for a cache miss.
type ComputeFunc func(ctx context.Context) ([]byte, error)

// DefaultComputeTimeout bounds a shared computation once it no longer
// follows any caller's cancellation.
const DefaultComputeTimeout = 2 * time.Minute

type options struct {
	suffix  string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Cache.
type Option func(*options)

// WithSuffix sets the object key suffix.
func WithSuffix(s string) Option {
	return func(o *options) { o.suffix = s }
}

// WithComputeTimeout bounds each shared computation. Zero or less keeps
// DefaultComputeTimeout.
func WithComputeTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Cache checks the store before computing and publishes after.
//
// Concurrent misses for the same key inside one process share a single
// computation. Across processes two first requests may both compute and
// both write; the results are equivalent, so the last write winning is fine.
//
// The shared computation is detached from caller cancellation: a caller
// that goes away stops waiting, while the work finishes for the others.
type Cache struct {
	store   blobstore.Store
	suffix  string
	timeout time.Duration
	logger  *slog.Logger
	group   singleflight.Group
}

// New returns a Cache over store.
func New(store blobstore.Store, opts ...Option) *Cache {
	o := options{suffix: DefaultSuffix, timeout: DefaultComputeTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{store: store, suffix: o.suffix, timeout: o.timeout, logger: o.logger}
}

// Key derives the object key with the cache's suffix.
func (c *Cache) Key(identity string) string {
	return KeyWithSuffix(identity, c.suffix)
}

// LookupOrCompute returns the stored location for identity, running compute
// and storing its bytes when nothing is stored yet. Compute errors are
// returned as they are and nothing is written; blob store failures are
// *failure.StorageError.
func (c *Cache) LookupOrCompute(ctx context.Context, identity string, compute ComputeFunc) (Result, error) {
	key := c.Key(identity)

	ok, err := c.store.Exists(ctx, key)
	if err != nil {
		return Result{}, &failure.StorageError{Op: "exists", Key: key, Err: err}
	}
	if ok {
		c.logger.DebugContext(ctx, "cache hit", "key", key)
		return Result{Key: key, Location: c.store.URL(key), Hit: true}, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		start := time.Now()
		data, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store.Put(ctx, key, data, ContentType); err != nil {
			return nil, &failure.StorageError{Op: "put", Key: key, Err: err}
		}
		c.logger.InfoContext(ctx, "stored result",
			"key", key,
			"bytes", len(data),
			"duration", time.Since(start))
		return Result{Key: key, Location: c.store.URL(key)}, nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		if r.Shared {
			c.logger.DebugContext(ctx, "joined in-flight computation", "key", key)
		}
		return r.Val.(Result), nil
	}
}
