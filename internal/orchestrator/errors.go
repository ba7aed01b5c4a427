package orchestrator

import (
	"errors"
	"fmt"

	"github.com/wonny/signaldesk/internal/contracts"
)

// ErrorKind decides how the cycle reacts to a failure
type ErrorKind string

const (
	// KindTransient network/tool failure: skip the stock or source, keep the cycle
	KindTransient ErrorKind = "transient"
	// KindMalformed unusable generator output: skip that unit, no retry this cycle
	KindMalformed ErrorKind = "malformed"
	// KindCycle anything else: abort this pass, restart from AwaitNextCycle
	KindCycle ErrorKind = "cycle"
)

var (
	// ErrMalformedOutput marks generator output that could not be parsed
	ErrMalformedOutput = errors.New("malformed generator output")
	// ErrNoEvidence means no source produced a prediction input for the stock
	ErrNoEvidence = errors.New("no evidence collected")
)

// StageError is a failure of one stage, scoped to a stock when StockID is set
type StageError struct {
	Stage   contracts.CycleState
	StockID string
	Kind    ErrorKind
	Err     error
}

func (e *StageError) Error() string {
	if e.StockID != "" {
		return fmt.Sprintf("%s [%s] %s: %v", e.Stage, e.StockID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage contracts.CycleState, stockID string, kind ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, StockID: stockID, Kind: kind, Err: err}
}

// KindOf classifies err. Untyped errors count as cycle-level.
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, ErrMalformedOutput) {
		return KindMalformed
	}
	return KindCycle
}
