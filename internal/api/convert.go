package api

import (
	"net/url"
	"time"

	"explainer/internal/deps"
	"explainer/internal/history"
	"explainer/internal/render"
)

// FromRender converts a history row into its API representation. Stream and
// download links are only set for finished renders.
func FromRender(r *history.Render) RenderItem {
	if r == nil {
		return RenderItem{}
	}
	item := RenderItem{
		ID:              r.ID,
		Title:           r.Title,
		Status:          string(r.Status),
		Stage:           r.Stage,
		OutputPath:      r.OutputPath,
		SizeBytes:       r.SizeBytes,
		DurationSeconds: r.DurationSeconds,
		SceneCount:      r.SceneCount,
		SegmentCount:    r.SegmentCount,
		ErrorMessage:    r.ErrorMessage,
		CreatedAt:       formatTime(r.CreatedAt),
		UpdatedAt:       formatTime(r.UpdatedAt),
	}
	if r.CompletedAt != nil {
		item.CompletedAt = formatTime(*r.CompletedAt)
	}
	for _, s := range r.Skipped {
		item.Skipped = append(item.Skipped, SkippedScene{SceneID: s.SceneID, Reason: s.Reason})
	}
	if r.Status == history.StatusDone && r.OutputPath != "" {
		base := "/api/renders/" + url.PathEscape(r.ID)
		item.StreamURL = base + "/stream"
		item.DownloadURL = base + "/download"
	}
	return item
}

// FromRenders converts a slice of history rows.
func FromRenders(renders []*history.Render) []RenderItem {
	items := make([]RenderItem, 0, len(renders))
	for _, r := range renders {
		if r == nil {
			continue
		}
		items = append(items, FromRender(r))
	}
	return items
}

// MergeStats returns counts for every known status, including zeros.
func MergeStats(stats map[history.Status]int) map[string]int {
	out := make(map[string]int, len(stats))
	for _, s := range history.AllStatuses() {
		out[string(s)] = stats[s]
	}
	for s, n := range stats {
		if _, ok := out[string(s)]; !ok {
			out[string(s)] = n
		}
	}
	return out
}

// FromDependencies converts dependency check results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Path:        dep.Path,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// ToHistorySkipped converts orchestrator skip records for persistence.
func ToHistorySkipped(skipped []render.SkippedScene) []history.SkippedScene {
	if len(skipped) == 0 {
		return nil
	}
	out := make([]history.SkippedScene, len(skipped))
	for i, s := range skipped {
		out[i] = history.SkippedScene{SceneID: s.SceneID, Reason: s.Reason}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
