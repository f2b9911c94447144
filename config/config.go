package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration, loaded from TOML. A missing file is
// created with defaults so a fresh checkout boots without ceremony.
type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	MetricsAddress string   `toml:"MetricsAddress"`
	DataDir        string   `toml:"DataDir"`
	Env            string   `toml:"Env"`
	PausedModules  []string `toml:"PausedModules"`
}

const defaultConfig = `RPCAddress = "127.0.0.1:8645"
MetricsAddress = "127.0.0.1:9465"
DataDir = "./bazaar-data"
Env = "dev"
PausedModules = []
`

// Load reads the configuration at path, creating a default file when absent.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, cfg.Validate()
}

func createDefault(path string) (*Config, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if _, err := toml.Decode(defaultConfig, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = "127.0.0.1:9465"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./bazaar-data"
	}
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	for _, module := range c.PausedModules {
		if strings.TrimSpace(module) == "" {
			return fmt.Errorf("config: PausedModules entries must not be empty")
		}
	}
	return nil
}

// Paused reports whether the named module is listed as paused.
func (c *Config) Paused(module string) bool {
	for _, candidate := range c.PausedModules {
		if strings.EqualFold(strings.TrimSpace(candidate), module) {
			return true
		}
	}
	return false
}
