package render

// SkippedScene records a scene that contributed no segment.
type SkippedScene struct {
	SceneID int    `json:"scene_id"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
}

// Artifact is the finished video. The file at Path belongs to the caller.
type Artifact struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`

	SizeBytes int64 `json:"size_bytes"`
	// TotalDurationSeconds sums the durations of scenes that produced a
	// segment. ScriptDurationSeconds is the script's own figure and is
	// reported unchanged.
	TotalDurationSeconds  float64        `json:"total_duration_seconds"`
	ScriptDurationSeconds float64        `json:"script_duration_seconds"`
	SceneCount            int            `json:"scene_count"`
	SegmentCount          int            `json:"segment_count"`
	Skipped               []SkippedScene `json:"skipped,omitempty"`
}
