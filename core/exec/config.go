package exec

import (
	"runtime"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/pevm/common/dbg"
)

type Config struct {
	// Workers is the size of the goroutine pool. One or less runs the block
	// sequentially.
	Workers int
	// Profile builds the transaction dependency DAG of every block.
	Profile bool
	Logger  log.Logger
}

func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if n := dbg.ExecWorkers(); n > 0 {
		workers = n
	}
	return Config{
		Workers: workers,
		Logger:  log.Root(),
	}
}

func (cfg Config) logger() log.Logger {
	if cfg.Logger == nil {
		return log.Root()
	}
	return cfg.Logger
}
