package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"otcmarket/native/common"
	"otcmarket/native/market"
)

// Config carries the process-level settings for a market deployment. The
// arbitrator identity, validity windows and pause switches feed the engine's
// policy; the rest wires storage and observability.
type Config struct {
	ServiceName       string   `toml:"ServiceName"`
	Environment       string   `toml:"Environment"`
	DataDir           string   `toml:"DataDir"`
	MetricsAddress    string   `toml:"MetricsAddress"`
	Arbitrator        string   `toml:"Arbitrator"`
	ListingWindowSecs int64    `toml:"ListingWindowSecs"`
	TradeWindowSecs   int64    `toml:"TradeWindowSecs"`
	MaxSampleAgeSecs  int64    `toml:"MaxSampleAgeSecs"`
	PolicyFile        string   `toml:"PolicyFile"`
	PausedModules     []string `toml:"PausedModules"`
}

// Load reads the configuration from path, creating a default file when none
// exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg, path)
	if _, err := cfg.ArbitratorAddress(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config, path string) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "otcmarket"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(path), "data")
	}
	if strings.TrimSpace(cfg.MetricsAddress) == "" {
		cfg.MetricsAddress = ":9090"
	}
	if cfg.ListingWindowSecs <= 0 {
		cfg.ListingWindowSecs = market.DefaultListingWindowSecs
	}
	if cfg.TradeWindowSecs <= 0 {
		cfg.TradeWindowSecs = market.DefaultTradeWindowSecs
	}
	if cfg.PausedModules == nil {
		cfg.PausedModules = []string{}
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg, path)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// ArbitratorAddress decodes the configured arbitrator identity. An empty
// setting yields the zero address, which disables dispute confirmation until
// an arbitrator is configured.
func (c *Config) ArbitratorAddress() ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(c.Arbitrator), "0x")
	if trimmed == "" {
		return addr, nil
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid arbitrator address: %w", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("config: arbitrator address must be %d bytes", len(addr))
	}
	copy(addr[:], raw)
	return addr, nil
}

// Pauses builds the static pause set from the configured module names.
func (c *Config) Pauses() common.StaticPauses {
	paused := make(common.StaticPauses, len(c.PausedModules))
	for _, name := range c.PausedModules {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			paused[trimmed] = true
		}
	}
	return paused
}

// MarketPolicy assembles the engine policy from the config and the payment
// asset rules.
func (c *Config) MarketPolicy(rules *PaymentPolicy) (*market.Policy, error) {
	arbitrator, err := c.ArbitratorAddress()
	if err != nil {
		return nil, err
	}
	policy := market.NewPolicy(arbitrator)
	policy.SetWindows(c.ListingWindowSecs, c.TradeWindowSecs)
	if rules != nil {
		for _, rule := range rules.PaymentAssets {
			policy.AllowPaymentAsset(rule.Symbol, rule.Allowed)
		}
	}
	return policy, nil
}
