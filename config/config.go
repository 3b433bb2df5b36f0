// Package config loads and saves duovm's TOML configuration: VM sizing
// defaults (of which cmd/vm reads only the stack size, used when no
// -stack-words flag is given; heap sizes always come from the binary
// image), and the assembler's diagnostic preferences.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable duovm reads at startup.
type Config struct {
	// VM execution defaults (spec.md §4.2.1, §6.1).
	VM struct {
		StackWords      uint   `toml:"stack_words"`
		HeapInitialKiB  uint   `toml:"heap_initial_kib"`
		HeapMaxKiB      uint   `toml:"heap_max_kib"`
		HostArgScratch  uint   `toml:"host_arg_scratch_bytes"`
	} `toml:"vm"`

	// Assembler diagnostics and warning policy (spec.md §4.3.5, §7).
	Assembler struct {
		WarnUnreferencedLabels bool   `toml:"warn_unreferenced_labels"`
		NumberFormat           string `toml:"number_format"` // hex, dec
		MaxErrors              int    `toml:"max_errors"`
	} `toml:"assembler"`
}

// DefaultConfig returns duovm's built-in settings, used whenever no
// config file is present.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.VM.StackWords = 512
	cfg.VM.HeapInitialKiB = 64
	cfg.VM.HeapMaxKiB = 1024
	cfg.VM.HostArgScratch = 8

	cfg.Assembler.WarnUnreferencedLabels = true
	cfg.Assembler.NumberFormat = "hex"
	cfg.Assembler.MaxErrors = 50

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "duovm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "duovm")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file. A missing file
// is not an error: it yields DefaultConfig() unchanged.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
