package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/patrol-cli/api/schemas"
)

// State is one step of a visit.
type State string

const (
	StateInit      State = "Init"
	StateLaunch    State = "Launch"
	StateNavigate  State = "Navigate"
	StateLocate    State = "Locate"
	StateInteract  State = "Interact"
	StateCapture   State = "Capture"
	StateReport    State = "Report"
	StateCleanup   State = "Cleanup"
	StateSucceeded State = "Succeeded"
	StateFailed    State = "Failed"
)

// Failure reasons recorded on a SessionResult.
const (
	ReasonResourceAcquisition = "ResourceAcquisitionFailure"
	ReasonNavigationTimeout   = "NavigationTimeout"
	ReasonNavigationError     = "NavigationError"
	ReasonNotFound            = "TargetElementNotFound"
	ReasonInteraction         = "InteractionError"
	ReasonCapture             = "CaptureFailure"
	ReasonCancelled           = "Cancelled"
	ReasonPanic               = "Panic"
)

// Report is reachable from every step before it so that a failed step can
// still be reported. Cleanup is reachable from every non-terminal state
// because a panic may unwind from anywhere.
var transitions = map[State][]State{
	StateInit:     {StateLaunch, StateReport, StateCleanup},
	StateLaunch:   {StateNavigate, StateReport, StateCleanup},
	StateNavigate: {StateLocate, StateCapture, StateReport, StateCleanup},
	StateLocate:   {StateInteract, StateCapture, StateReport, StateCleanup},
	StateInteract: {StateCapture, StateReport, StateCleanup},
	StateCapture:  {StateReport, StateCleanup},
	StateReport:   {StateCleanup},
	StateCleanup:  {StateSucceeded, StateFailed},
}

// CanTransition reports whether the machine may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the machine.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// StepError ties a step failure to the reason tag it is reported under.
type StepError struct {
	State  State
	Reason string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.State, e.Reason, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ReasonOf extracts the reason tag from err, or "" when err carries none.
func ReasonOf(err error) string {
	var se *StepError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ""
}

// Skipped is the result for a target that never started.
func Skipped(target schemas.Target, reason string) schemas.SessionResult {
	now := time.Now().UTC()
	return schemas.SessionResult{
		Target:        target,
		StartedAt:     now,
		FinishedAt:    now,
		Status:        schemas.StatusSkipped,
		FailureReason: reason,
	}
}

// Panicked is the result for a visit that unwound with a panic.
func Panicked(target schemas.Target, startedAt time.Time) schemas.SessionResult {
	return schemas.SessionResult{
		ID:            uuid.NewString(),
		Target:        target,
		StartedAt:     startedAt,
		FinishedAt:    time.Now().UTC(),
		Status:        schemas.StatusFailed,
		FailureReason: ReasonPanic,
	}
}
