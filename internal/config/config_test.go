package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load with no file: %v", err)
	}
	if cfg.ClientName != "termwire" {
		t.Errorf("default client_name = %q, want termwire", cfg.ClientName)
	}
	if want := filepath.Join(dir, "credentials.db"); cfg.CredentialCache != want {
		t.Errorf("default credential_cache = %q, want %q", cfg.CredentialCache, want)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
socket_path = "/run/termmux/control.sock"
client_name = "deploy-bot"
default_profile = "dev"
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != "/run/termmux/control.sock" {
		t.Errorf("socket_path = %q", cfg.SocketPath)
	}
	if cfg.ClientName != "deploy-bot" {
		t.Errorf("client_name = %q", cfg.ClientName)
	}
	if cfg.DefaultProfile != "dev" {
		t.Errorf("default_profile = %q", cfg.DefaultProfile)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `sokcet_path = "/tmp/x"`)

	if _, err := Load(dir); err == nil {
		t.Fatal("Load accepted a misspelled key")
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
socket_path = "/from/file.sock"
client_name = "file-name"
`)
	t.Setenv(EnvSocket, "/from/env.sock")
	t.Setenv(EnvClientName, "env-name")
	t.Setenv(EnvURL, "ws://localhost:8023/control")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SocketPath != "/from/env.sock" {
		t.Errorf("socket_path = %q, want env override", cfg.SocketPath)
	}
	if cfg.ClientName != "env-name" {
		t.Errorf("client_name = %q, want env override", cfg.ClientName)
	}
	if cfg.URL != "ws://localhost:8023/control" {
		t.Errorf("url = %q, want env override", cfg.URL)
	}
}

func TestCredentialCacheOff(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `credential_cache = "off"`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CredentialCache != "" {
		t.Errorf("credential_cache = %q, want disabled", cfg.CredentialCache)
	}
}
