package agentconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.ListenAddress != "127.0.0.1:1534" {
		t.Errorf("Expected ListenAddress=127.0.0.1:1534, got %s", cfg.Server.ListenAddress)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected Level=info, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.JSON {
		t.Error("Expected JSON=false")
	}
	if !cfg.Registers.EnableVFP {
		t.Error("Expected EnableVFP=true")
	}
	if cfg.Registers.VFPDoubles != 16 {
		t.Errorf("Expected VFPDoubles=16, got %d", cfg.Registers.VFPDoubles)
	}
	if len(cfg.Signals.DontPass) != 0 {
		t.Errorf("Expected empty DontPass, got %v", cfg.Signals.DontPass)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()
	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" && path != "tcf-agent.toml" {
		t.Errorf("unexpected config path %s", path)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Server.ListenAddress = "0.0.0.0:9999"
	cfg.Logging.Level = "debug"
	cfg.Signals.DontPass = []int{17, 18}

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if loaded.Server.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("Expected ListenAddress=0.0.0.0:9999, got %s", loaded.Server.ListenAddress)
	}
	if loaded.Logging.Level != "debug" {
		t.Errorf("Expected Level=debug, got %s", loaded.Logging.Level)
	}
	if len(loaded.Signals.DontPass) != 2 || loaded.Signals.DontPass[0] != 17 {
		t.Errorf("Expected DontPass=[17 18], got %v", loaded.Signals.DontPass)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:1534" {
		t.Error("expected default config on missing file")
	}
}
