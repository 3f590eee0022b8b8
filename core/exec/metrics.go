package exec

import (
	"fmt"
	"time"

	"github.com/erigontech/pevm/metrics"
)

var (
	parallelMetrics   = newExecMetrics("parallel")
	sequentialMetrics = newExecMetrics("sequential")
)

// execMetrics are the counters of one execution mode, told apart by the
// mode label.
type execMetrics struct {
	executed           metrics.Counter
	aborted            metrics.Counter
	validations        metrics.Counter
	validationFailures metrics.Counter
	blockDuration      metrics.Histogram
}

func newExecMetrics(mode string) *execMetrics {
	label := fmt.Sprintf("{mode=%q}", mode)
	return &execMetrics{
		executed:           metrics.GetOrCreateCounter("exec_txs_executed"+label, "Transaction incarnations run"),
		aborted:            metrics.GetOrCreateCounter("exec_txs_aborted"+label, "Incarnations dropped on a dependency or a failed validation"),
		validations:        metrics.GetOrCreateCounter("exec_validations"+label, "Read set validations run"),
		validationFailures: metrics.GetOrCreateCounter("exec_validation_failures"+label, "Validations that found a stale read"),
		blockDuration:      metrics.GetOrCreateHistogram("exec_block_seconds"+label, "Wall time of one block"),
	}
}

func (m *execMetrics) report(stats Stats, start time.Time) {
	m.executed.AddUint64(stats.Executions)
	m.aborted.AddUint64(stats.Aborts())
	m.validations.AddUint64(stats.Validations)
	m.validationFailures.AddUint64(stats.ValidationFailures)
	m.blockDuration.ObserveDuration(start)
}
