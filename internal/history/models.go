package history

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a render run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRendering Status = "rendering"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

var allStatuses = []Status{StatusPending, StatusRendering, StatusDone, StatusFailed, StatusCancelled, StatusRejected}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus matches a status name case-insensitively.
func ParseStatus(value string) (Status, bool) {
	for _, s := range allStatuses {
		if strings.EqualFold(string(s), strings.TrimSpace(value)) {
			return s, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusCancelled, StatusRejected:
		return true
	}
	return false
}

// SkippedScene records a scene that produced no segment.
type SkippedScene struct {
	SceneID int    `json:"scene_id"`
	Reason  string `json:"reason"`
}

// Render is one persisted render run.
type Render struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Status          Status         `json:"status"`
	Stage           string         `json:"stage,omitempty"`
	ManifestPath    string         `json:"manifest_path,omitempty"`
	OutputPath      string         `json:"output_path,omitempty"`
	SizeBytes       int64          `json:"size_bytes"`
	DurationSeconds float64        `json:"duration_seconds"`
	SceneCount      int            `json:"scene_count"`
	SegmentCount    int            `json:"segment_count"`
	Skipped         []SkippedScene `json:"skipped,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Outcome carries the results of a successful run.
type Outcome struct {
	OutputPath      string
	SizeBytes       int64
	DurationSeconds float64
	SegmentCount    int
	Skipped         []SkippedScene
}

// PruneResult lists what Prune removed.
type PruneResult struct {
	Removed []string
	Errors  []error
}
