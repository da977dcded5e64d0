package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "0.01", cfg.Matching.AmountTolerance)
	require.Equal(t, 0.95, cfg.Matching.AutoAcceptThreshold)
	require.Equal(t, 3, cfg.Matching.DateWindowDays)
	require.Equal(t, -1, cfg.Billing.CompetenceOffsetMonths)
	require.Equal(t, 12, cfg.Billing.GapWindowMonths)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RECON_SERVER_PORT", "9999")
	t.Setenv("RECON_MATCHING_AUTO_ACCEPT_THRESHOLD", "0.9")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9999", cfg.Server.Port)
	require.Equal(t, 0.9, cfg.Matching.AutoAcceptThreshold)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[database]\npath = \"/tmp/recon.db\"\n"), 0o644))
	t.Setenv("RECON_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/recon.db", cfg.Database.Path)
}
