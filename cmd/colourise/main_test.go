package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	f, err := parseFlags([]string{"-quality", "75", "-model", "m.onnx", "in.png", "out.jpg"}, &stderr)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.quality != 75 || f.model != "m.onnx" || f.input != "in.png" || f.output != "out.jpg" {
		t.Errorf("flags = %+v", f)
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"in.png"},
		{"in.png", "out.jpg", "extra"},
		{"-nope", "in.png", "out.jpg"},
		{"-quality", "101", "in.png", "out.jpg"},
	} {
		var stderr bytes.Buffer
		if code := run(args, &stderr); code != 2 {
			t.Errorf("run(%q) = %d, want 2", args, code)
		}
	}
}

func TestRunReportsFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	var stderr bytes.Buffer
	if code := run([]string{"-config", path, "in.png", "out.jpg"}, &stderr); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	out := strings.TrimSpace(stderr.String())
	if !strings.HasPrefix(out, "colourise: ") || strings.Contains(out, "\n") {
		t.Errorf("stderr = %q, want a single colourise: line", out)
	}
}
