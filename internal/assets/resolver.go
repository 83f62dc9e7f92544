package assets

import (
	"log/slog"
	"strings"

	"explainer/internal/logging"
	"explainer/internal/script"
)

// Image is a still image generated for one scene.
type Image struct {
	SceneID int    `json:"scene_id"`
	Path    string `json:"path"`
}

// Audio is the narration clip for one scene. Silent or an empty Path both mean
// the scene has no narration.
type Audio struct {
	SceneID int    `json:"scene_id"`
	Path    string `json:"path,omitempty"`
	Silent  bool   `json:"silent,omitempty"`
}

// Resolution is the outcome of matching one scene.
type Resolution struct {
	Scene     script.Scene
	HasImage  bool
	ImagePath string
	// AudioPath is empty when the scene should be rendered over silence.
	AudioPath string
}

// Silent reports whether the scene has no narration audio.
func (r Resolution) Silent() bool {
	return r.AudioPath == ""
}

// Resolver indexes image and audio assets by scene ID.
type Resolver struct {
	images     map[int]Image
	audio      map[int]Audio
	imageDupes map[int]int
	audioDupes map[int]int
	logger     *slog.Logger
}

// NewResolver indexes the provided assets. The first asset seen for a scene
// wins; later duplicates are counted and reported when that scene resolves.
func NewResolver(images []Image, audio []Audio, logger *slog.Logger) *Resolver {
	r := &Resolver{
		images:     make(map[int]Image, len(images)),
		audio:      make(map[int]Audio, len(audio)),
		imageDupes: make(map[int]int),
		audioDupes: make(map[int]int),
		logger:     logging.NewComponentLogger(logger, "assets"),
	}
	for _, img := range images {
		if _, ok := r.images[img.SceneID]; ok {
			r.imageDupes[img.SceneID]++
			continue
		}
		r.images[img.SceneID] = img
	}
	for _, clip := range audio {
		if _, ok := r.audio[clip.SceneID]; ok {
			r.audioDupes[clip.SceneID]++
			continue
		}
		r.audio[clip.SceneID] = clip
	}
	return r
}

// Resolve matches a scene to its image and narration.
func (r *Resolver) Resolve(scene script.Scene) Resolution {
	res := Resolution{Scene: scene}

	if n := r.imageDupes[scene.ID]; n > 0 {
		r.warnDuplicate(scene.ID, "image", n)
	}
	if n := r.audioDupes[scene.ID]; n > 0 {
		r.warnDuplicate(scene.ID, "audio", n)
	}

	if img, ok := r.images[scene.ID]; ok && strings.TrimSpace(img.Path) != "" {
		res.HasImage = true
		res.ImagePath = strings.TrimSpace(img.Path)
	}
	if clip, ok := r.audio[scene.ID]; ok && !clip.Silent {
		res.AudioPath = strings.TrimSpace(clip.Path)
	}
	return res
}

func (r *Resolver) warnDuplicate(sceneID int, kind string, extra int) {
	logging.WarnWithContext(r.logger, "duplicate scene assets; using the first match", "asset_duplicate",
		logging.Int(logging.FieldSceneID, sceneID),
		logging.String("asset_kind", kind),
		logging.Int("ignored", extra),
		logging.String(logging.FieldErrorHint, "check the upstream asset generator for repeated scene ids"),
		logging.String(logging.FieldImpact, "later assets for this scene are ignored"),
	)
}
