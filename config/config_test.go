package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.VM.StackWords != 512 {
		t.Errorf("Expected StackWords=512, got %d", cfg.VM.StackWords)
	}
	if cfg.VM.HeapInitialKiB != 64 {
		t.Errorf("Expected HeapInitialKiB=64, got %d", cfg.VM.HeapInitialKiB)
	}
	if cfg.VM.HeapMaxKiB != 1024 {
		t.Errorf("Expected HeapMaxKiB=1024, got %d", cfg.VM.HeapMaxKiB)
	}

	if !cfg.Assembler.WarnUnreferencedLabels {
		t.Error("Expected WarnUnreferencedLabels=true")
	}
	if cfg.Assembler.NumberFormat != "hex" {
		t.Errorf("Expected NumberFormat=hex, got %s", cfg.Assembler.NumberFormat)
	}
	if cfg.Assembler.MaxErrors != 50 {
		t.Errorf("Expected MaxErrors=50, got %d", cfg.Assembler.MaxErrors)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "config.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "duovm" && path != "config.toml" {
			t.Errorf("Expected path in duovm directory or fallback, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.VM.HeapMaxKiB = 4096
	cfg.VM.StackWords = 1024
	cfg.Assembler.WarnUnreferencedLabels = false
	cfg.Assembler.NumberFormat = "dec"

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.VM.HeapMaxKiB != 4096 {
		t.Errorf("Expected HeapMaxKiB=4096, got %d", loaded.VM.HeapMaxKiB)
	}
	if loaded.VM.StackWords != 1024 {
		t.Errorf("Expected StackWords=1024, got %d", loaded.VM.StackWords)
	}
	if loaded.Assembler.WarnUnreferencedLabels {
		t.Error("Expected WarnUnreferencedLabels=false")
	}
	if loaded.Assembler.NumberFormat != "dec" {
		t.Errorf("Expected NumberFormat=dec, got %s", loaded.Assembler.NumberFormat)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}

	if cfg.VM.HeapInitialKiB != 64 {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[vm]
stack_words = "not a number"
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
