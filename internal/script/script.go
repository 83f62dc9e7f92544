package script

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// VisualType classifies what a scene's still image depicts.
type VisualType string

const (
	VisualTitle     VisualType = "title"
	VisualDiagram   VisualType = "diagram"
	VisualConcept   VisualType = "concept"
	VisualAnimation VisualType = "animation"
	VisualSummary   VisualType = "summary"
)

var visualTypes = []VisualType{VisualTitle, VisualDiagram, VisualConcept, VisualAnimation, VisualSummary}

// ParseVisualType normalizes a visual type string. Empty input maps to concept.
func ParseVisualType(value string) (VisualType, error) {
	normalized := VisualType(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return VisualConcept, nil
	}
	for _, vt := range visualTypes {
		if vt == normalized {
			return vt, nil
		}
	}
	return "", fmt.Errorf("unknown visual type %q", value)
}

// Label returns a display label such as "Diagram".
func (v VisualType) Label() string {
	return cases.Title(language.English).String(string(v))
}

// Scene is one narrated unit of the script.
type Scene struct {
	ID                int        `json:"id"`
	DurationSeconds   float64    `json:"duration"`
	NarrationText     string     `json:"narration"`
	VisualDescription string     `json:"visual_description"`
	VisualType        VisualType `json:"visual_type"`
}

// Script is the finalized, ordered scene list plus the collaborator-supplied
// total duration. TotalDurationSeconds is informational: it is not recomputed
// from rendered segments and may exceed the rendered length when scenes are
// skipped.
type Script struct {
	Title                string  `json:"title"`
	Scenes               []Scene `json:"scenes"`
	TotalDurationSeconds float64 `json:"total_duration"`
}

// ErrEmpty reports a script without scenes.
var ErrEmpty = errors.New("script has no scenes")

// Validate checks the scene list. It returns every problem found.
func (s Script) Validate() error {
	if len(s.Scenes) == 0 {
		return ErrEmpty
	}
	var errs []error
	seen := make(map[int]int, len(s.Scenes))
	for idx, scene := range s.Scenes {
		if prev, ok := seen[scene.ID]; ok {
			errs = append(errs, fmt.Errorf("scene %d: duplicate id (first at position %d)", scene.ID, prev+1))
		} else {
			seen[scene.ID] = idx
		}
		if scene.DurationSeconds <= 0 || math.IsNaN(scene.DurationSeconds) || math.IsInf(scene.DurationSeconds, 0) {
			errs = append(errs, fmt.Errorf("scene %d: duration must be positive, got %v", scene.ID, scene.DurationSeconds))
		}
		if _, err := ParseVisualType(string(scene.VisualType)); err != nil {
			errs = append(errs, fmt.Errorf("scene %d: %w", scene.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Normalize canonicalizes visual types and fills TotalDurationSeconds when the
// collaborator left it empty. Call after Validate.
func (s *Script) Normalize() {
	for i := range s.Scenes {
		if vt, err := ParseVisualType(string(s.Scenes[i].VisualType)); err == nil {
			s.Scenes[i].VisualType = vt
		}
	}
	if s.TotalDurationSeconds <= 0 {
		s.TotalDurationSeconds = s.SceneDurationSum()
	}
}

// SceneDurationSum adds up every scene's duration.
func (s Script) SceneDurationSum() float64 {
	total := 0.0
	for _, scene := range s.Scenes {
		total += scene.DurationSeconds
	}
	return total
}
