package exec

import "fmt"

// TxStatus is the position of a transaction in its execution life cycle.
//
//	ReadyToExecute -> Executing -> Executed -> ReadyToValidate -> Validated
//	Executing -> Aborting                      (read dependency)
//	Executed|ReadyToValidate|Validated -> Aborting   (failed validation)
//	Aborting -> ReadyToExecute                 (next incarnation)
type TxStatus uint8

const (
	ReadyToExecute TxStatus = iota
	Executing
	Executed
	ReadyToValidate
	Validated
	Aborting
)

func (s TxStatus) String() string {
	switch s {
	case ReadyToExecute:
		return "ReadyToExecute"
	case Executing:
		return "Executing"
	case Executed:
		return "Executed"
	case ReadyToValidate:
		return "ReadyToValidate"
	case Validated:
		return "Validated"
	case Aborting:
		return "Aborting"
	default:
		return fmt.Sprintf("TxStatus(%d)", uint8(s))
	}
}

// hasExecuted reports whether the current incarnation finished executing and
// was not aborted since.
func (s TxStatus) hasExecuted() bool {
	return s == Executed || s == ReadyToValidate || s == Validated
}

type TaskKind uint8

const (
	TaskKindWait TaskKind = iota // nothing to do right now
	TaskKindExecution
	TaskKindValidation
	TaskKindDone
)

func (k TaskKind) String() string {
	switch k {
	case TaskKindWait:
		return "wait"
	case TaskKindExecution:
		return "execution"
	case TaskKindValidation:
		return "validation"
	case TaskKindDone:
		return "done"
	default:
		return fmt.Sprintf("TaskKind(%d)", uint8(k))
	}
}
