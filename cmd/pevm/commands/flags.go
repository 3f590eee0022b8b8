package commands

import (
	"github.com/spf13/cobra"
)

var (
	configFile   string
	verbosity    string
	workloadName string
	txCount      int
	seed         uint64
	workers      int
	rounds       int
	verify       bool
	profile      bool
	cacheSize    int
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func withConfig(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "path to a bench.toml file, flags override its values")
	must(cmd.MarkPersistentFlagFilename("config", "toml"))
	cmd.PersistentFlags().StringVar(&verbosity, "verbosity", "info", "log level: crit, error, warn, info, debug, trace")
}

func withWorkload(cmd *cobra.Command) {
	cmd.Flags().StringVar(&workloadName, "workload", "independent", "block generator to run")
	cmd.Flags().IntVar(&txCount, "txs", 10_000, "transactions per block")
	cmd.Flags().Uint64Var(&seed, "seed", 1, "generator seed")
}

func withWorkers(cmd *cobra.Command) {
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel executor workers, 0 means one per cpu")
}

func withRounds(cmd *cobra.Command) {
	cmd.Flags().IntVar(&rounds, "rounds", 3, "how many times each executor runs the block")
}

func withCache(cmd *cobra.Command) {
	cmd.Flags().IntVar(&cacheSize, "cache", 0, "entries of the read cache in front of the parallel executor's base state, 0 disables it")
}

func withVerify(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&verify, "verify", true, "compare parallel results with the sequential run")
	cmd.Flags().BoolVar(&profile, "profile", false, "build the dependency graph of the block")
}
