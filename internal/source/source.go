// Package source downloads the images named in colourise requests.
package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Brownie44l1/colourise-api/internal/failure"
)

// DefaultMaxBytes caps a download when no limit is configured.
const DefaultMaxBytes = 20 << 20

// Fetcher downloads http and https URLs.
type Fetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewFetcher returns a Fetcher using client, or http.DefaultClient when nil.
func NewFetcher(client *http.Client, maxBytes int64) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{Client: client, MaxBytes: maxBytes}
}

// Validate checks rawURL is an absolute http or https URL.
func Validate(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, failure.InvalidInput("missing url parameter", nil)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, failure.InvalidInput("parse url", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, failure.InvalidInput(fmt.Sprintf("unsupported url scheme %q", u.Scheme), nil)
	}
	if u.Host == "" {
		return nil, failure.InvalidInput("url has no host", nil)
	}
	return u, nil
}

// Fetch downloads rawURL. Bad URLs, non-2xx answers, transport failures and
// oversized bodies are all *failure.InvalidInputError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := Validate(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, failure.InvalidInput("build request", err)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, failure.InvalidInput("download "+u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, failure.InvalidInput(fmt.Sprintf("download %s: status %d", u.Redacted(), resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.MaxBytes+1))
	if err != nil {
		return nil, failure.InvalidInput("read body of "+u.Redacted(), err)
	}
	if int64(len(data)) > f.MaxBytes {
		return nil, failure.InvalidInput(fmt.Sprintf("image larger than %d bytes", f.MaxBytes), nil)
	}
	if len(data) == 0 {
		return nil, failure.InvalidInput("empty body from "+u.Redacted(), nil)
	}
	return data, nil
}

// URLIdentity is the cache identity of a URL request: the URL exactly as
// given, so that the computed keys match objects already in the bucket.
func URLIdentity(rawURL string) string { return rawURL }

// ContentIdentity is the cache identity of uploaded bytes.
func ContentIdentity(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
