package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"otcmarket/native/market"
)

func TestLoadCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "otcmarket", cfg.ServiceName)
	require.Equal(t, market.DefaultListingWindowSecs, cfg.ListingWindowSecs)
	require.FileExists(t, path)

	// Reloading the written default must succeed.
	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.ServiceName, reloaded.ServiceName)
}

func TestLoadParsesArbitrator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.toml")
	content := `
ServiceName = "market-test"
Arbitrator = "0x00112233445566778899aabbccddeeff00112233"
ListingWindowSecs = 60
TradeWindowSecs = 120
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	addr, err := cfg.ArbitratorAddress()
	require.NoError(t, err)
	require.Equal(t, byte(0x00), addr[0])
	require.Equal(t, byte(0x33), addr[19])

	policy, err := cfg.MarketPolicy(nil)
	require.NoError(t, err)
	require.Equal(t, int64(60), policy.ListingWindow())
	require.Equal(t, int64(120), policy.TradeWindow())
}

func TestLoadRejectsBadArbitrator(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "marketd.toml")
	require.NoError(t, os.WriteFile(path, []byte(`Arbitrator = "0x1234"`), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadPaymentPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
payment_assets:
  - symbol: USDC
    allowed: true
  - symbol: EUR
    allowed: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rules, err := LoadPaymentPolicy(path)
	require.NoError(t, err)
	require.Len(t, rules.PaymentAssets, 2)

	cfg := &Config{}
	applyDefaults(cfg, path)
	policy, err := cfg.MarketPolicy(rules)
	require.NoError(t, err)
	require.True(t, policy.PaymentAssetAllowed("USDC"))
	require.False(t, policy.PaymentAssetAllowed("EUR"))
}

func TestLoadPaymentPolicyMissingFile(t *testing.T) {
	rules, err := LoadPaymentPolicy(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.Empty(t, rules.PaymentAssets)
}

func TestPauses(t *testing.T) {
	cfg := &Config{PausedModules: []string{" market ", ""}}
	pauses := cfg.Pauses()
	require.True(t, pauses.IsPaused("market"))
	require.False(t, pauses.IsPaused("pricing"))
}
