package commands

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// BenchConfig is the content of a bench.toml file.
type BenchConfig struct {
	Verbosity string `toml:"verbosity"`
	Workload  string `toml:"workload"`
	Txs       int    `toml:"txs"`
	Seed      uint64 `toml:"seed"`
	Workers   int    `toml:"workers"`
	Rounds    int    `toml:"rounds"`
	Cache     int    `toml:"cache"`
	Verify    *bool  `toml:"verify"`
	Profile   *bool  `toml:"profile"`
}

func loadConfig(path string) (*BenchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BenchConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// applyConfig copies the file values into the flag variables that were not
// set on the command line.
func applyConfig(cmd *cobra.Command, cfg *BenchConfig) {
	set := func(name string, apply func()) {
		if f := cmd.Flags().Lookup(name); f != nil && !f.Changed {
			apply()
		}
	}
	if cfg.Verbosity != "" {
		set("verbosity", func() { verbosity = cfg.Verbosity })
	}
	if cfg.Workload != "" {
		set("workload", func() { workloadName = cfg.Workload })
	}
	if cfg.Txs > 0 {
		set("txs", func() { txCount = cfg.Txs })
	}
	if cfg.Seed != 0 {
		set("seed", func() { seed = cfg.Seed })
	}
	if cfg.Workers > 0 {
		set("workers", func() { workers = cfg.Workers })
	}
	if cfg.Rounds > 0 {
		set("rounds", func() { rounds = cfg.Rounds })
	}
	if cfg.Cache > 0 {
		set("cache", func() { cacheSize = cfg.Cache })
	}
	if cfg.Verify != nil {
		set("verify", func() { verify = *cfg.Verify })
	}
	if cfg.Profile != nil {
		set("profile", func() { profile = *cfg.Profile })
	}
}
