package types

import "slices"

// TaskPatch describes a partial update of a task row. Nil fields are left untouched.
type TaskPatch struct {
	Name                 *string
	Description          *string
	Status               *TaskStatus
	Progress             *int
	TotalTiles           *int
	CompletedTiles       *int
	VerificationStatus   *VerificationStatus
	VerificationProgress *int
	VerifiedTiles        *int
	MissingTiles         *int
}

// IsEmpty reports whether the patch changes nothing
func (p TaskPatch) IsEmpty() bool {
	return p == TaskPatch{}
}

// Apply writes the patch onto t
func (p TaskPatch) Apply(t *Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Progress != nil {
		t.Progress = *p.Progress
	}
	if p.TotalTiles != nil {
		t.TotalTiles = *p.TotalTiles
	}
	if p.CompletedTiles != nil {
		t.CompletedTiles = *p.CompletedTiles
	}
	if p.VerificationStatus != nil {
		t.VerificationStatus = *p.VerificationStatus
	}
	if p.VerificationProgress != nil {
		t.VerificationProgress = *p.VerificationProgress
	}
	if p.VerifiedTiles != nil {
		t.VerifiedTiles = *p.VerifiedTiles
	}
	if p.MissingTiles != nil {
		t.MissingTiles = *p.MissingTiles
	}
}

// Guard is a precondition on a task row, evaluated atomically with an update.
// Empty lists match any value.
type Guard struct {
	Status                []TaskStatus
	VerificationStatus    []VerificationStatus
	NotVerificationStatus []VerificationStatus
	MinMissingTiles       int
}

// Allows reports whether t satisfies the guard
func (g Guard) Allows(t *Task) bool {
	if len(g.Status) > 0 && !slices.Contains(g.Status, t.Status) {
		return false
	}
	if len(g.VerificationStatus) > 0 && !slices.Contains(g.VerificationStatus, t.VerificationStatus) {
		return false
	}
	if slices.Contains(g.NotVerificationStatus, t.VerificationStatus) {
		return false
	}
	return t.MissingTiles >= g.MinMissingTiles
}
