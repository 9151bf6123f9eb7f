// Package blobstore holds colourised results as immutable keyed objects.
//
// Three drivers share the Store interface: S3 for the public deployment,
// a bolt file for single-host setups, and memory for tests and local runs.
package blobstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned by Get for a key that was never stored.
var ErrNotFound = errors.New("object not found")

// Object is one stored result.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
	Created     time.Time
}

// Store is a key/value blob store with derived public URLs.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) (*Object, error)
	// URL is a pure function of the store's bucket and key.
	URL(key string) string
}

// ResultsPath is where the HTTP service serves objects of stores that have
// no public endpoint of their own.
const ResultsPath = "/results/"

func resultsURL(base, key string) string {
	return strings.TrimRight(base, "/") + ResultsPath + key
}

// ValidKey rejects keys that could escape a bucket or a URL path segment.
func ValidKey(key string) bool {
	if key == "" || len(key) > 1024 {
		return false
	}
	return !strings.ContainsAny(key, "/\\?#") && key != "." && key != ".."
}
