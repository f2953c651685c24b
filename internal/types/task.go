package types

import (
	"time"
)

// TaskStatus is the lifecycle status of an acquisition task
type TaskStatus string

const (
	StatusQueued    TaskStatus = "queued"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// VerificationStatus is the verification sub-state of a task
type VerificationStatus string

const (
	VerificationNone      VerificationStatus = "none"
	VerificationRunning   VerificationStatus = "running"
	VerificationCompleted VerificationStatus = "completed"
	VerificationFailed    VerificationStatus = "failed"
)

// LatLng is a geographic point in degrees
type LatLng struct {
	Lat float64 `json:"lat" binding:"min=-90,max=90" jsonschema:"minimum=-90,maximum=90"`
	Lng float64 `json:"lng" binding:"min=-180,max=180" jsonschema:"minimum=-180,maximum=180"`
}

// Bounds is a southwest/northeast bounding box
type Bounds struct {
	SW LatLng `json:"sw" jsonschema:"required"`
	NE LatLng `json:"ne" jsonschema:"required"`
}

// IsZero reports whether the bounds were never set
func (b Bounds) IsZero() bool {
	return b == Bounds{}
}

// Task is one tile acquisition job
type Task struct {
	ID                   int64              `json:"id" jsonschema:"required"`
	Name                 string             `json:"name" jsonschema:"required"`
	Description          string             `json:"description"`
	MapType              string             `json:"mapType" jsonschema:"required"`
	Bounds               Bounds             `json:"bounds" jsonschema:"required"`
	ZoomLevels           []int              `json:"zoomLevels" jsonschema:"required"`
	Concurrency          int                `json:"concurrency" jsonschema:"required"`
	DownloadDelay        float64            `json:"downloadDelay" jsonschema:"required"`
	Status               TaskStatus         `json:"status" jsonschema:"required,enum=queued,enum=running,enum=completed,enum=failed"`
	Progress             int                `json:"progress" jsonschema:"required"`
	TotalTiles           int                `json:"totalTiles" jsonschema:"required"`
	CompletedTiles       int                `json:"completedTiles" jsonschema:"required"`
	VerificationStatus   VerificationStatus `json:"verificationStatus" jsonschema:"required,enum=none,enum=running,enum=completed,enum=failed"`
	VerificationProgress int                `json:"verificationProgress" jsonschema:"required"`
	VerifiedTiles        int                `json:"verifiedTiles" jsonschema:"required"`
	MissingTiles         int                `json:"missingTiles" jsonschema:"required"`
	CreatedAt            time.Time          `json:"createdAt" jsonschema:"required"`
	UpdatedAt            time.Time          `json:"updatedAt" jsonschema:"required"`
}

// Delay returns the per-tile delay as a duration
func (t *Task) Delay() time.Duration {
	if t.DownloadDelay <= 0 {
		return 0
	}
	return time.Duration(t.DownloadDelay * float64(time.Second))
}

// Clone returns a deep copy of the task
func (t *Task) Clone() *Task {
	c := *t
	c.ZoomLevels = append([]int(nil), t.ZoomLevels...)
	return &c
}

// NewTask holds the fields an operator supplies when creating a task
type NewTask struct {
	Name          string
	Description   string
	MapType       string
	Bounds        Bounds
	ZoomLevels    []int
	Concurrency   int
	DownloadDelay float64
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
