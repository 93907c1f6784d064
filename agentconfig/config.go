// Package agentconfig loads the agent's process-wide configuration
// (spec §6 "Process-wide state"): the TCF listen address, the local
// discovery socket, logging, and a signal-policy section. The signal
// lists are only loaded and saved; no context is configured from them.
//
// Grounded on lookbusy1344-arm_emulator's config/config.go: same
// section-of-struct-tagged-fields shape, same DefaultConfig/Load/Save
// split, same TOML library.
package agentconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is the agent's full process configuration.
type Config struct {
	Server struct {
		ListenAddress  string `toml:"listen_address"`
		DiscoverySock  string `toml:"discovery_socket"`
		MonitorAddress string `toml:"monitor_address"`
	} `toml:"server"`

	Logging struct {
		Level     string `toml:"level"` // debug, info, warn, error
		Path      string `toml:"path"`  // "" logs to stderr
		JSON      bool   `toml:"json"`
	} `toml:"logging"`

	Signals struct {
		// DontPass lists signal numbers not to forward to a resumed
		// thread. Nothing copies it onto a context's SigDontPass set.
		DontPass []int `toml:"dont_pass"`
		// DontStop lists signal numbers that do not set
		// pending_intercept. Nothing copies it onto a context's
		// SigDontStop set.
		DontStop []int `toml:"dont_stop"`
	} `toml:"signals"`

	Registers struct {
		EnableVFP  bool `toml:"enable_vfp"`
		VFPDoubles int  `toml:"vfp_doubles"`
		VFPQuads   int  `toml:"vfp_quads"`
	} `toml:"registers"`
}

// DefaultConfig returns the agent's built-in defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.ListenAddress = "127.0.0.1:1534" // TCF's registered default port
	cfg.Server.DiscoverySock = "/var/run/tcf-agent.sock"
	cfg.Server.MonitorAddress = "127.0.0.1:1535"

	cfg.Logging.Level = "info"
	cfg.Logging.Path = ""
	cfg.Logging.JSON = false

	cfg.Signals.DontPass = nil
	cfg.Signals.DontStop = nil

	cfg.Registers.EnableVFP = true
	cfg.Registers.VFPDoubles = 16
	cfg.Registers.VFPQuads = 0

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
		configDir = filepath.Join(configDir, "tcf-agent")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "tcf-agent.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "tcf-agent")

	default:
		return "tcf-agent.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "tcf-agent.toml"
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from path, falling back to defaults for
// anything the file doesn't specify.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("agentconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("agentconfig: create dir: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return fmt.Errorf("agentconfig: create file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("agentconfig: encode: %w", err)
	}
	return nil
}
