package pav

import (
	"errors"
	"fmt"

	"pav-go/internal/model"
)

// ErrNotFound is returned when an operation names a record id that does
// not exist. Unknown ids are reported, never silently ignored.
var ErrNotFound = errors.New("arrival record not found")

// InvalidTransitionError reports an attempt to move a record's status
// backwards or across a skipped state.
type InvalidTransitionError struct {
	ID   string
	From model.Status
	To   model.Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("record %s: illegal status transition %s -> %s", e.ID, e.From, e.To)
}

// AwaitingExitError reports an arrival attempt for a vehicle that already
// has an open visit in ready_to_exit. The open record is attached so the
// caller can route the agent to the exit flow.
type AwaitingExitError struct {
	Record *model.ArrivalRecord
}

func (e *AwaitingExitError) Error() string {
	return fmt.Sprintf("vehicle %s already has visit %s awaiting exit", e.Record.VehicleID, e.Record.ID)
}

// ValidationError reports rejected caller input. These surface directly to
// the user with a retry affordance; local state is unchanged.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
