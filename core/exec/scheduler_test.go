package exec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/pevm/core/state"
)

func nextTask(t *testing.T, s *Scheduler) (state.Version, TaskKind) {
	t.Helper()
	for i := 0; i < 8; i++ {
		v, kind := s.NextTask()
		if kind != TaskKindWait {
			return v, kind
		}
	}
	return noVersion, TaskKindWait
}

func TestSchedulerSingleTx(t *testing.T) {
	t.Parallel()
	s := NewScheduler(1)

	v, kind := nextTask(t, s)
	require.Equal(t, TaskKindExecution, kind)
	require.Equal(t, state.Version{TxIndex: 0, Incarnation: 0}, v)
	st, _ := s.Status(0)
	require.Equal(t, Executing, st)

	_, kind, err := s.FinishExecution(0, 0, true)
	require.NoError(t, err)
	require.Equal(t, TaskKindWait, kind)

	v, kind = nextTask(t, s)
	require.Equal(t, TaskKindValidation, kind)
	require.Equal(t, 0, v.TxIndex)
	st, _ = s.Status(0)
	require.Equal(t, ReadyToValidate, st)

	_, kind, err = s.FinishValidation(0, 0, false)
	require.NoError(t, err)
	require.Equal(t, TaskKindWait, kind)

	_, kind = nextTask(t, s)
	require.Equal(t, TaskKindDone, kind)
	require.True(t, s.Done())
	require.NoError(t, s.CheckInvariants())
	require.Equal(t, Stats{Executions: 1, Validations: 1}, s.Stats())
}

func TestSchedulerValidationAbort(t *testing.T) {
	t.Parallel()
	s := NewScheduler(2)

	v0, _ := nextTask(t, s)
	v1, _ := nextTask(t, s)
	require.Equal(t, 1, v1.TxIndex)
	_, _, err := s.FinishExecution(v1.TxIndex, 0, true)
	require.NoError(t, err)
	_, _, err = s.FinishExecution(v0.TxIndex, 0, true)
	require.NoError(t, err)

	v, kind := nextTask(t, s)
	require.Equal(t, TaskKindValidation, kind)
	require.Equal(t, 0, v.TxIndex)
	_, _, err = s.FinishValidation(0, 0, false)
	require.NoError(t, err)

	v, kind = nextTask(t, s)
	require.Equal(t, TaskKindValidation, kind)
	require.Equal(t, 1, v.TxIndex)

	require.True(t, s.TryValidationAbort(1, 0))
	// the incarnation is gone, a second validator loses
	require.False(t, s.TryValidationAbort(1, 0))

	v, kind, err = s.FinishValidation(1, 0, true)
	require.NoError(t, err)
	require.Equal(t, TaskKindExecution, kind)
	require.Equal(t, state.Version{TxIndex: 1, Incarnation: 1}, v)

	// same locations as before and the cursor is past it: validate right away
	v, kind, err = s.FinishExecution(1, 1, false)
	require.NoError(t, err)
	require.Equal(t, TaskKindValidation, kind)
	require.Equal(t, state.Version{TxIndex: 1, Incarnation: 1}, v)
	_, _, err = s.FinishValidation(1, 1, false)
	require.NoError(t, err)

	_, kind = nextTask(t, s)
	require.Equal(t, TaskKindDone, kind)
	require.NoError(t, s.CheckInvariants())
	require.Equal(t, uint64(1), s.Stats().ValidationFailures)
}

func TestSchedulerDependency(t *testing.T) {
	t.Parallel()
	s := NewScheduler(2)

	v0, _ := nextTask(t, s)
	v1, _ := nextTask(t, s)
	require.Equal(t, 1, v1.TxIndex)

	added, err := s.AddDependency(v1.TxIndex, v0.TxIndex)
	require.NoError(t, err)
	require.True(t, added)
	st, _ := s.Status(1)
	require.Equal(t, Aborting, st)

	_, _, err = s.FinishExecution(0, 0, true)
	require.NoError(t, err)
	st, inc := s.Status(1)
	require.Equal(t, ReadyToExecute, st)
	require.Equal(t, 1, inc)

	v, kind := nextTask(t, s)
	require.Equal(t, TaskKindValidation, kind)
	require.Equal(t, 0, v.TxIndex)
	_, _, err = s.FinishValidation(0, 0, false)
	require.NoError(t, err)

	// the blocker is done now, no parking
	v, kind = nextTask(t, s)
	require.Equal(t, TaskKindExecution, kind)
	require.Equal(t, state.Version{TxIndex: 1, Incarnation: 1}, v)
	added, err = s.AddDependency(1, 0)
	require.NoError(t, err)
	require.False(t, added)
	require.Equal(t, uint64(1), s.Stats().DependencyAborts)
}

func TestSchedulerInvariantViolations(t *testing.T) {
	t.Parallel()
	s := NewScheduler(2)

	var violation *SchedulerInvariantViolation
	_, _, err := s.FinishExecution(0, 0, false)
	require.True(t, errors.As(err, &violation))
	require.Equal(t, 0, violation.TxIndex)

	_, err = s.AddDependency(0, 1)
	require.True(t, errors.As(err, &violation))

	err = s.CheckInvariants()
	require.True(t, errors.As(err, &violation))
	require.Contains(t, err.Error(), "not done")
}

func TestStatusString(t *testing.T) {
	t.Parallel()
	require.Equal(t, "ReadyToValidate", ReadyToValidate.String())
	require.Equal(t, "TxStatus(42)", TxStatus(42).String())
	require.Equal(t, "validation", TaskKindValidation.String())
}
