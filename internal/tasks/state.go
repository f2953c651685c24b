// Package tasks owns the task lifecycle: which operations are legal in which
// state, and the read-modify-write-then-broadcast cycle every mutation follows.
package tasks

import (
	"errors"
	"fmt"
	"strings"

	"github.com/geoscraper/tile-service/internal/types"
)

// Op names an operation that moves a task along an edge of the state machine
type Op string

const (
	OpStart           Op = "start"
	OpRetry           Op = "retry"
	OpVerify          Op = "verify"
	OpRedownload      Op = "redownload"
	OpMarkNonExistent Op = "mark-non-existent"
)

// Ops lists every operation in display order
var Ops = []Op{OpStart, OpRetry, OpVerify, OpRedownload, OpMarkNonExistent}

// Transition is a guarded edge: when Guard holds, Patch is applied atomically
type Transition struct {
	Op    Op
	Guard types.Guard
	Patch types.TaskPatch
}

// For returns the transition for op
func For(op Op) (Transition, error) {
	switch op {
	case OpStart:
		// queued -> running; a fresh acquisition invalidates any earlier verification
		return Transition{
			Op:    op,
			Guard: types.Guard{Status: []types.TaskStatus{types.StatusQueued}},
			Patch: types.TaskPatch{
				Status:               types.Ptr(types.StatusRunning),
				Progress:             types.Ptr(0),
				CompletedTiles:       types.Ptr(0),
				VerificationStatus:   types.Ptr(types.VerificationNone),
				VerificationProgress: types.Ptr(0),
				VerifiedTiles:        types.Ptr(0),
				MissingTiles:         types.Ptr(0),
			},
		}, nil
	case OpRetry:
		// failed -> queued with counters reset
		return Transition{
			Op:    op,
			Guard: types.Guard{Status: []types.TaskStatus{types.StatusFailed}},
			Patch: types.TaskPatch{
				Status:         types.Ptr(types.StatusQueued),
				Progress:       types.Ptr(0),
				CompletedTiles: types.Ptr(0),
				TotalTiles:     types.Ptr(0),
			},
		}, nil
	case OpVerify:
		return Transition{
			Op: op,
			Guard: types.Guard{
				Status:                []types.TaskStatus{types.StatusCompleted},
				NotVerificationStatus: []types.VerificationStatus{types.VerificationRunning},
			},
			Patch: types.TaskPatch{
				VerificationStatus:   types.Ptr(types.VerificationRunning),
				VerificationProgress: types.Ptr(0),
				VerifiedTiles:        types.Ptr(0),
				MissingTiles:         types.Ptr(0),
			},
		}, nil
	case OpRedownload:
		// completed -> running, only over a completed verification with missing tiles
		return Transition{
			Op: op,
			Guard: types.Guard{
				Status:             []types.TaskStatus{types.StatusCompleted},
				VerificationStatus: []types.VerificationStatus{types.VerificationCompleted},
				MinMissingTiles:    1,
			},
			Patch: types.TaskPatch{
				Status:         types.Ptr(types.StatusRunning),
				Progress:       types.Ptr(0),
				CompletedTiles: types.Ptr(0),
			},
		}, nil
	case OpMarkNonExistent:
		// Not an edge; guarded so a running verification cannot overwrite the reclassification.
		return Transition{
			Op:    op,
			Guard: types.Guard{NotVerificationStatus: []types.VerificationStatus{types.VerificationRunning}},
		}, nil
	}
	return Transition{}, fmt.Errorf("unknown task operation: %s", op)
}

// Allowed reports whether op may be invoked on t
func Allowed(op Op, t *types.Task) bool {
	tr, err := For(op)
	if err != nil {
		return false
	}
	return tr.Guard.Allows(t)
}

// AvailableOps lists the operations currently legal for t
func AvailableOps(t *types.Task) []Op {
	ops := make([]Op, 0, len(Ops))
	for _, op := range Ops {
		if Allowed(op, t) {
			ops = append(ops, op)
		}
	}
	return ops
}

// ConflictError reports an operation forbidden by the task's current state
type ConflictError struct {
	TaskID             int64
	Op                 Op
	Status             types.TaskStatus
	VerificationStatus types.VerificationStatus
	MissingTiles       int
}

// NewConflictError builds a conflict error from the current row
func NewConflictError(op Op, t *types.Task) *ConflictError {
	return &ConflictError{
		TaskID:             t.ID,
		Op:                 op,
		Status:             t.Status,
		VerificationStatus: t.VerificationStatus,
		MissingTiles:       t.MissingTiles,
	}
}

func (e *ConflictError) Error() string {
	var reqs []string
	switch e.Op {
	case OpStart:
		reqs = append(reqs, "status queued")
	case OpRetry:
		reqs = append(reqs, "status failed")
	case OpVerify:
		reqs = append(reqs, "status completed", "no verification running")
	case OpRedownload:
		reqs = append(reqs, "status completed", "verification completed", "missing tiles > 0")
	case OpMarkNonExistent:
		reqs = append(reqs, "no verification running")
	}
	return fmt.Sprintf("cannot %s task %d (status=%s, verification=%s, missing=%d): requires %s",
		e.Op, e.TaskID, e.Status, e.VerificationStatus, e.MissingTiles, strings.Join(reqs, ", "))
}

// IsConflict reports whether err is a *ConflictError
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
