package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadListenConfigReadsServerAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server_address": "10.0.0.2:9000", "silence_threshold": "3s"}`), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	listenConfigFile = path
	t.Cleanup(func() { listenConfigFile = "config.json" })

	v, err := loadListenConfig(listenCmd)
	if err != nil {
		t.Fatalf("expected config, got error %v", err)
	}

	if got := v.GetString("server_address"); got != "10.0.0.2:9000" {
		t.Fatalf("expected server address from file, got %q", got)
	}
	if got := v.GetDuration("silence_threshold"); got != 3*time.Second {
		t.Fatalf("expected 3s silence threshold, got %v", got)
	}
	if got := v.GetString("language"); got != "ru-RU" {
		t.Fatalf("expected default language, got %q", got)
	}
}

func TestLoadListenConfigWithoutFileUsesDefaults(t *testing.T) {
	listenConfigFile = filepath.Join(t.TempDir(), "missing.json")
	t.Cleanup(func() { listenConfigFile = "config.json" })

	v, err := loadListenConfig(listenCmd)
	if err != nil {
		t.Fatalf("expected defaults, got error %v", err)
	}
	if got := v.GetString("server_address"); got != "localhost:8000" {
		t.Fatalf("expected default server address, got %q", got)
	}
}
