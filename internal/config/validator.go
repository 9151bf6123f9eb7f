package config

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/Brownie44l1/colourise-api/internal/blobstore"
)

// Defaults for unset fields.
const (
	DefaultPort          = "8080"
	DefaultModelPath     = "models/colorization.onnx"
	DefaultMetadataPath  = "models/colorization_metadata.json"
	DefaultBucket        = "colourful-past"
	DefaultRegion        = "us-west-2"
	DefaultBoltPath      = "data/results.db"
	DefaultTopic         = "colourise/results"
	DefaultClientID      = "colourise-api"
	DefaultTimeoutS      = 30
	DefaultUploadBytes   = 10 << 20
	DefaultDownloadBytes = 20 << 20
	DefaultJPEGQuality   = 90
	DefaultMaxPixels     = 50_000_000
)

// Validate checks the configuration and fills in defaults
func Validate(cfg *Config) error {
	applyDefaults(cfg)

	if p, err := strconv.Atoi(cfg.Server.Port); err != nil || p <= 0 || p > 65535 {
		return fmt.Errorf("server.port must be a TCP port, got %q", cfg.Server.Port)
	}
	if cfg.Server.FetchTimeoutS < 0 || cfg.Server.StoreTimeoutS < 0 {
		return fmt.Errorf("server timeouts must be >= 0")
	}
	if cfg.Pipeline.JPEGQuality < 1 || cfg.Pipeline.JPEGQuality > 100 {
		return fmt.Errorf("pipeline.jpeg_quality must be in [1,100], got %d", cfg.Pipeline.JPEGQuality)
	}
	if cfg.Pipeline.MaxPixels < 0 {
		return fmt.Errorf("pipeline.max_pixels must be > 0 when set, got %d", cfg.Pipeline.MaxPixels)
	}
	if cfg.Model.Temperature < 0 {
		return fmt.Errorf("model.temperature must be > 0 when set, got %g", cfg.Model.Temperature)
	}

	switch cfg.Store.Driver {
	case blobstore.DriverS3:
		if cfg.Store.Region == "" {
			cfg.Store.Region = DefaultRegion
		}
	case blobstore.DriverBolt:
		if cfg.Store.BoltPath == "" {
			cfg.Store.BoltPath = DefaultBoltPath
		}
	case blobstore.DriverMemory:
	default:
		return fmt.Errorf("store.driver must be one of s3, bolt, memory, got %q", cfg.Store.Driver)
	}

	if cfg.Server.FilesRoot != "" {
		abs, err := filepath.Abs(cfg.Server.FilesRoot)
		if err != nil {
			return fmt.Errorf("server.files_root: %w", err)
		}
		cfg.Server.FilesRoot = abs
	}

	if cfg.MQTT.Broker != "" {
		if cfg.MQTT.Topic == "" {
			cfg.MQTT.Topic = DefaultTopic
		}
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = DefaultClientID
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.FetchTimeoutS == 0 {
		cfg.Server.FetchTimeoutS = DefaultTimeoutS
	}
	if cfg.Server.StoreTimeoutS == 0 {
		cfg.Server.StoreTimeoutS = DefaultTimeoutS
	}
	if cfg.Server.MaxDownloadBytes <= 0 {
		cfg.Server.MaxDownloadBytes = DefaultDownloadBytes
	}
	if cfg.Server.MaxUploadBytes <= 0 {
		cfg.Server.MaxUploadBytes = DefaultUploadBytes
	}
	if cfg.Model.Path == "" {
		cfg.Model.Path = DefaultModelPath
	}
	if cfg.Model.MetadataPath == "" {
		cfg.Model.MetadataPath = DefaultMetadataPath
	}
	if cfg.Pipeline.JPEGQuality == 0 {
		cfg.Pipeline.JPEGQuality = DefaultJPEGQuality
	}
	if cfg.Pipeline.MaxPixels == 0 {
		cfg.Pipeline.MaxPixels = DefaultMaxPixels
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = blobstore.DriverMemory
	}
	if cfg.Store.Bucket == "" {
		cfg.Store.Bucket = DefaultBucket
	}
}
