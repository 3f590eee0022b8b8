package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
workload = "token-clusters"
txs = 300
seed = 5
workers = 3
verify = false
`), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "token-clusters", cfg.Workload)
	require.Equal(t, 300, cfg.Txs)
	require.Equal(t, uint64(5), cfg.Seed)
	require.Equal(t, 3, cfg.Workers)
	require.NotNil(t, cfg.Verify)
	require.False(t, *cfg.Verify)
	require.Nil(t, cfg.Profile)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func runBench(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := RootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"bench", "--workers", "4", "--rounds", "1", "--verbosity", "warn"}, args...))
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestBenchCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.toml")
	require.NoError(t, os.WriteFile(path, []byte("workload = \"same-nonce\"\ntxs = 50\n"), 0o600))

	// --txs wins over the file
	out := runBench(t, "--config", path, "--txs", "120")
	require.Equal(t, "same-nonce", workloadName)
	require.Equal(t, 120, txCount)
	require.Contains(t, out, "workload:   same-nonce (120 txs")
	require.Contains(t, out, `exec_txs_executed{mode="parallel"}`)
	require.Contains(t, out, `exec_txs_executed{mode="sequential"}`)
}

func TestBenchCachedBase(t *testing.T) {
	out := runBench(t, "--workload", "token-clusters", "--txs", "300", "--cache", "64")
	require.Contains(t, out, "workload:   token-clusters (300 txs")
}

func TestRootCommandStartsFromDefaults(t *testing.T) {
	runBench(t, "--workload", "token-clusters", "--txs", "40")
	require.Equal(t, "token-clusters", workloadName)

	// flags set by the previous run must not shadow the file
	path := filepath.Join(t.TempDir(), "bench.toml")
	require.NoError(t, os.WriteFile(path, []byte("workload = \"same-nonce\"\ntxs = 30\n"), 0o600))
	out := runBench(t, "--config", path)
	require.Equal(t, "same-nonce", workloadName)
	require.Equal(t, 30, txCount)
	require.Contains(t, out, "workload:   same-nonce (30 txs")

	RootCommand()
	require.Equal(t, "independent", workloadName)
	require.Equal(t, 10_000, txCount)
	require.Empty(t, configFile)
}
