package exec

import "fmt"

// SchedulerInvariantViolation reports an internal consistency failure, like
// two workers owning the same incarnation. It never depends on transaction
// content and always aborts the block.
type SchedulerInvariantViolation struct {
	TxIndex int
	Msg     string
}

func (e *SchedulerInvariantViolation) Error() string {
	if e.TxIndex < 0 {
		return fmt.Sprintf("scheduler invariant violated: %s", e.Msg)
	}
	return fmt.Sprintf("scheduler invariant violated at tx %d: %s", e.TxIndex, e.Msg)
}

func invariantViolation(txIdx int, format string, args ...interface{}) error {
	return &SchedulerInvariantViolation{TxIndex: txIdx, Msg: fmt.Sprintf(format, args...)}
}
