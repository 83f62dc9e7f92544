package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"explainer/internal/script"
)

func formatBytes(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond)
	return d.String()
}

// shortID keeps the first block of a UUID-style run ID for tables.
func shortID(id string) string {
	if short, _, ok := strings.Cut(id, "-"); ok && len(short) >= 6 {
		return short
	}
	return id
}

// formatVisuals counts scenes per visual type in first-seen order, for
// example "2 Diagram, 1 Summary".
func formatVisuals(scenes []script.Scene) string {
	if len(scenes) == 0 {
		return "-"
	}
	var order []script.VisualType
	counts := make(map[script.VisualType]int)
	for _, scene := range scenes {
		vt := scene.VisualType
		if vt == "" {
			vt = script.VisualConcept
		}
		if counts[vt] == 0 {
			order = append(order, vt)
		}
		counts[vt]++
	}
	parts := make([]string, 0, len(order))
	for _, vt := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[vt], vt.Label()))
	}
	return strings.Join(parts, ", ")
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
