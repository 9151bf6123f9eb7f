package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "colourise.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != DefaultPort || cfg.Store.Driver != "memory" || cfg.Store.Bucket != DefaultBucket {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Server.FetchTimeout() != 30*time.Second {
		t.Errorf("FetchTimeout = %v", cfg.Server.FetchTimeout())
	}
	if cfg.Pipeline.JPEGQuality != DefaultJPEGQuality || cfg.Pipeline.MaxPixels != DefaultMaxPixels {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	path := writeConfig(t, `
server:
  port: "9000"
  fetch_timeout_s: 5
  files_root: /srv/images
model:
  path: /models/c.onnx
  metadata_path: /models/c.json
  temperature: 0.5
pipeline:
  jpeg_quality: 80
store:
  driver: s3
  bucket: colourful-past
mqtt:
  broker: localhost:1883
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Server.FetchTimeout() != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Store.Region != DefaultRegion {
		t.Errorf("s3 region = %q, want default", cfg.Store.Region)
	}
	if cfg.MQTT.Topic != DefaultTopic || cfg.MQTT.ClientID != DefaultClientID {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
	if cfg.Model.Temperature != 0.5 || cfg.Pipeline.JPEGQuality != 80 {
		t.Errorf("model = %+v pipeline = %+v", cfg.Model, cfg.Pipeline)
	}
	if cfg.Server.FilesRoot != "/srv/images" {
		t.Errorf("files_root = %q", cfg.Server.FilesRoot)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("COLOURISE_MODEL_PATH", "/m.onnx")
	t.Setenv("ORT_LIBRARY_PATH", "/usr/lib/libonnxruntime.so")

	cfg, err := Load(writeConfig(t, "server:\n  port: \"9000\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("port = %q, want env override", cfg.Server.Port)
	}
	if cfg.Model.Path != "/m.onnx" || cfg.Model.SharedLibraryPath != "/usr/lib/libonnxruntime.so" {
		t.Errorf("model = %+v", cfg.Model)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"yaml", "server: [", "failed to parse config"},
		{"port", "server:\n  port: http\n", "server.port"},
		{"quality", "pipeline:\n  jpeg_quality: 101\n", "jpeg_quality"},
		{"pixels", "pipeline:\n  max_pixels: -5\n", "max_pixels"},
		{"driver", "store:\n  driver: ftp\n", "store.driver"},
		{"temperature", "model:\n  temperature: -1\n", "temperature"},
		{"qos", "mqtt:\n  broker: b:1883\n  qos: 3\n", "mqtt.qos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}
