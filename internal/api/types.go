package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RenderItem describes a render run in a transport-friendly format.
type RenderItem struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Status          string         `json:"status"`
	Stage           string         `json:"stage,omitempty"`
	OutputPath      string         `json:"outputPath,omitempty"`
	SizeBytes       int64          `json:"sizeBytes"`
	DurationSeconds float64        `json:"durationSeconds"`
	SceneCount      int            `json:"sceneCount"`
	SegmentCount    int            `json:"segmentCount"`
	Skipped         []SkippedScene `json:"skipped,omitempty"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
	CreatedAt       string         `json:"createdAt,omitempty"`
	UpdatedAt       string         `json:"updatedAt,omitempty"`
	CompletedAt     string         `json:"completedAt,omitempty"`
	StreamURL       string         `json:"streamUrl,omitempty"`
	DownloadURL     string         `json:"downloadUrl,omitempty"`
}

// SkippedScene names a scene left out of a video and why.
type SkippedScene struct {
	SceneID int    `json:"sceneId"`
	Reason  string `json:"reason"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Path        string `json:"path,omitempty"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// ServiceStatus aggregates runtime information for API consumers.
type ServiceStatus struct {
	PID           int                `json:"pid"`
	HistoryDBPath string             `json:"historyDbPath"`
	OutputDir     string             `json:"outputDir"`
	ActiveRenders int64              `json:"activeRenders"`
	Counts        map[string]int     `json:"counts"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// RenderListResponse wraps a collection of renders.
type RenderListResponse struct {
	Items []RenderItem `json:"items"`
}

// RenderItemResponse wraps a single render.
type RenderItemResponse struct {
	Item RenderItem `json:"item"`
}

// RenderFailureResponse reports a run that ended without a video.
type RenderFailureResponse struct {
	Error string      `json:"error"`
	Item  *RenderItem `json:"item,omitempty"`
}
