/*
   Copyright 2021 Erigon contributors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package dbg

import (
	"os"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/ledgerwatch/log/v3"
)

var doMemstat = true

func init() {
	_, ok := os.LookupEnv("NO_MEMSTAT")
	if ok {
		doMemstat = false
	}
}

func DoMemStat() bool { return doMemstat }
func ReadMemStats(m *runtime.MemStats) {
	if doMemstat {
		runtime.ReadMemStats(m)
	}
}

// Stack returns the stack of the calling goroutine.
func Stack() string { return string(debug.Stack()) }

var (
	execWorkers     int
	execWorkersOnce sync.Once
)

// ExecWorkers overrides the default size of the executor pool. Zero means unset.
func ExecWorkers() int {
	execWorkersOnce.Do(func() {
		v, _ := os.LookupEnv("EXEC_WORKERS")
		if v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			execWorkers = i
			log.Info("[Experiment]", "EXEC_WORKERS", execWorkers)
		}
	})
	return execWorkers
}

var (
	slowBlock     time.Duration
	slowBlockOnce sync.Once
)

// SlowBlock is the execution time above which a block is logged at Info.
func SlowBlock() time.Duration {
	slowBlockOnce.Do(func() {
		v, _ := os.LookupEnv("SLOW_BLOCK")
		if v != "" {
			var err error
			slowBlock, err = time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			log.Info("[Experiment]", "SLOW_BLOCK", slowBlock)
		}
	})
	return slowBlock
}

var (
	traceTx     = -1
	traceTxOnce sync.Once
)

// TraceTx is the block position whose every incarnation gets logged, or -1.
func TraceTx() int {
	traceTxOnce.Do(func() {
		v, _ := os.LookupEnv("TRACE_TX")
		if v != "" {
			i, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			traceTx = i
			log.Info("[Experiment]", "TRACE_TX", traceTx)
		}
	})
	return traceTx
}
