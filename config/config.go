package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultRPCAddress     = ":8080"
	DefaultDataDir        = "./safety-data"
	DefaultEnvironment    = "local"
	DefaultKeeperSchedule = "*/15 * * * * *"
	DefaultRateLimit      = 20
	DefaultBurst          = 40
	DefaultLogMaxSizeMB   = 100
)

// Config is the node configuration of safetyd.
type Config struct {
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	Environment string `toml:"Environment"`

	RPC           RPC           `toml:"rpc"`
	Observability Observability `toml:"observability"`
	Accounts      Accounts      `toml:"accounts"`
	Keeper        Keeper        `toml:"keeper"`
	Pauses        Pauses        `toml:"pauses"`
}

// Load reads the configuration at path. A missing file is created with
// defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration with every knob set.
func Default() *Config {
	cfg := &Config{
		DataDir:     DefaultDataDir,
		Environment: DefaultEnvironment,
		Keeper:      Keeper{Enabled: true, Schedule: DefaultKeeperSchedule},
	}
	cfg.normalize()
	return cfg
}

func (c *Config) normalize() {
	c.DataDir = strings.TrimSpace(c.DataDir)
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir
	}
	c.GenesisFile = strings.TrimSpace(c.GenesisFile)
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = DefaultEnvironment
	}
	if strings.TrimSpace(c.RPC.Address) == "" {
		c.RPC.Address = DefaultRPCAddress
	}
	if c.RPC.RateLimitPerSecond == 0 {
		c.RPC.RateLimitPerSecond = DefaultRateLimit
	}
	if c.RPC.Burst == 0 {
		c.RPC.Burst = DefaultBurst
	}
	if c.RPC.ReadHeaderTimeout == 0 {
		c.RPC.ReadHeaderTimeout = 5
	}
	if c.RPC.WriteTimeout == 0 {
		c.RPC.WriteTimeout = 15
	}
	if strings.TrimSpace(c.Observability.LogLevel) == "" {
		c.Observability.LogLevel = "info"
	}
	c.Observability.LogFile = strings.TrimSpace(c.Observability.LogFile)
	if c.Observability.LogFile != "" && c.Observability.LogMaxSizeMB == 0 {
		c.Observability.LogMaxSizeMB = DefaultLogMaxSizeMB
	}
	if strings.TrimSpace(c.Keeper.Schedule) == "" {
		c.Keeper.Schedule = DefaultKeeperSchedule
	}
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
