package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"safetymodule/crypto"
)

var keeperParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// KeeperParser parses keeper schedules: five or six fields, seconds first
// when present, or a descriptor such as "@every 30s".
func KeeperParser() cron.Parser { return keeperParser }

// Validate checks the normalized configuration.
func (c *Config) Validate() error {
	if c.RPC.RateLimitPerSecond < 0 {
		return fmt.Errorf("rpc: RateLimitPerSecond must not be negative")
	}
	if c.RPC.Burst < 0 {
		return fmt.Errorf("rpc: Burst must not be negative")
	}
	if c.Observability.LogMaxSizeMB < 0 || c.Observability.LogMaxBackups < 0 {
		return fmt.Errorf("observability: log rotation limits must not be negative")
	}
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("observability: SampleRatio must be within [0, 1]")
	}
	for name, raw := range map[string]string{
		"Orchestrator":   c.Accounts.Orchestrator,
		"AuctionVault":   c.Accounts.AuctionVault,
		"RewardTreasury": c.Accounts.RewardTreasury,
	} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if _, err := crypto.ParseRaw(raw); err != nil {
			return fmt.Errorf("accounts: %s: %w", name, err)
		}
	}
	if c.Keeper.Enabled {
		if _, err := keeperParser.Parse(c.Keeper.Schedule); err != nil {
			return fmt.Errorf("keeper: schedule %q: %w", c.Keeper.Schedule, err)
		}
	}
	return nil
}

// Account decodes a configured module account, falling back to def when the
// field is empty.
func Account(raw string, def [20]byte) ([20]byte, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return crypto.ParseRaw(raw)
}
