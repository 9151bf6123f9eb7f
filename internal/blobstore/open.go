package blobstore

import (
	"context"
	"fmt"
)

// Driver names accepted by Open.
const (
	DriverS3     = "s3"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// Config selects and configures a driver.
type Config struct {
	Driver        string `yaml:"driver"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	PublicBaseURL string `yaml:"public_base_url"`
	BoltPath      string `yaml:"bolt_path"`
}

// Open builds the configured store. The returned close function releases
// driver resources and is never nil.
func Open(ctx context.Context, c Config) (Store, func() error, error) {
	noop := func() error { return nil }

	switch c.Driver {
	case DriverS3:
		s, err := NewS3(ctx, S3Options{
			Bucket:        c.Bucket,
			Region:        c.Region,
			Endpoint:      c.Endpoint,
			PublicBaseURL: c.PublicBaseURL,
		})
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case DriverBolt:
		s, err := OpenBolt(c.BoltPath, c.Bucket, c.PublicBaseURL)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case DriverMemory, "":
		return NewMemory(c.PublicBaseURL), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store driver %q", c.Driver)
	}
}
