package config

// RPC configures the read-only query API.
type RPC struct {
	Address            string  `toml:"Address"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	Burst              int     `toml:"Burst"`
	ReadHeaderTimeout  int     `toml:"ReadHeaderTimeout"`
	WriteTimeout       int     `toml:"WriteTimeout"`
}

// Observability configures logging and the OTLP exporters.
type Observability struct {
	LogLevel string `toml:"LogLevel"`
	// LogFile mirrors the JSON log into a rotated file when set.
	LogFile       string  `toml:"LogFile"`
	LogMaxSizeMB  int     `toml:"LogMaxSizeMB"`
	LogMaxBackups int     `toml:"LogMaxBackups"`
	OTLPEndpoint  string  `toml:"OTLPEndpoint"`
	OTLPInsecure  bool    `toml:"OTLPInsecure"`
	OTLPHeaders   string  `toml:"OTLPHeaders"`
	Metrics       bool    `toml:"Metrics"`
	Traces        bool    `toml:"Traces"`
	SampleRatio   float64 `toml:"SampleRatio"`
}

// Accounts names the module accounts of the engines as bech32 strings.
type Accounts struct {
	Orchestrator   string `toml:"Orchestrator"`
	AuctionVault   string `toml:"AuctionVault"`
	RewardTreasury string `toml:"RewardTreasury"`
}

// Keeper schedules the sweep that completes timed-out auctions.
type Keeper struct {
	Enabled  bool   `toml:"Enabled"`
	Schedule string `toml:"Schedule"`
}

// Pauses seeds the module circuit breakers at startup.
type Pauses struct {
	Stakepool bool `toml:"Stakepool"`
	Rewards   bool `toml:"Rewards"`
	Auction   bool `toml:"Auction"`
	Safety    bool `toml:"Safety"`
}

// Modules maps the flags onto the pause module names used by the engines.
func (p Pauses) Modules() map[string]bool {
	return map[string]bool{
		"stakepool": p.Stakepool,
		"rewards":   p.Rewards,
		"auction":   p.Auction,
		"safety":    p.Safety,
	}
}
