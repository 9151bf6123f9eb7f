package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Brownie44l1/colourise-api/internal/blobstore"
	"github.com/Brownie44l1/colourise-api/internal/notify"
)

// Config is the service and CLI configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Model    ModelConfig      `yaml:"model"`
	Pipeline PipelineConfig   `yaml:"pipeline"`
	Store    blobstore.Config `yaml:"store"`
	MQTT     notify.Config    `yaml:"mqtt"`
}

// ServerConfig contains HTTP boundary settings
type ServerConfig struct {
	Port             string `yaml:"port"`
	FetchTimeoutS    int    `yaml:"fetch_timeout_s"`
	StoreTimeoutS    int    `yaml:"store_timeout_s"`
	MaxDownloadBytes int64  `yaml:"max_download_bytes"`
	MaxUploadBytes   int64  `yaml:"max_upload_bytes"`
	// FilesRoot confines the file path endpoint. Empty disables it.
	FilesRoot string `yaml:"files_root"`
	Debug     bool   `yaml:"debug"`
}

// ModelConfig locates the network and its metadata
type ModelConfig struct {
	Path              string  `yaml:"path"`
	MetadataPath      string  `yaml:"metadata_path"`
	SharedLibraryPath string  `yaml:"shared_library_path"`
	Temperature       float64 `yaml:"temperature"` // overrides the metadata value when > 0
}

// PipelineConfig contains output encoding settings
type PipelineConfig struct {
	JPEGQuality int `yaml:"jpeg_quality"`
	// MaxPixels bounds the decoded canvas of any input image.
	MaxPixels int `yaml:"max_pixels"`
}

// FetchTimeout is the budget for downloading a source image.
func (s ServerConfig) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutS) * time.Second
}

// StoreTimeout is the budget for each blob store call.
func (s ServerConfig) StoreTimeout() time.Duration {
	return time.Duration(s.StoreTimeoutS) * time.Second
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads and parses a YAML configuration file. An empty path, or a
// path that does not exist, yields the defaults. Environment overrides are
// applied last.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("COLOURISE_MODEL_PATH"); v != "" {
		cfg.Model.Path = v
	}
	if v := os.Getenv("COLOURISE_METADATA_PATH"); v != "" {
		cfg.Model.MetadataPath = v
	}
	if v := os.Getenv("ORT_LIBRARY_PATH"); v != "" {
		cfg.Model.SharedLibraryPath = v
	}
}
