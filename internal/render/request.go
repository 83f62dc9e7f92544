package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"explainer/internal/assets"
	"explainer/internal/script"
)

// Request is everything one run needs. ID is optional; a UUID is generated
// when it is empty.
type Request struct {
	ID     string         `json:"id,omitempty"`
	Script script.Script  `json:"script"`
	Images []assets.Image `json:"images"`
	Audio  []assets.Audio `json:"audio"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// LoadRequest reads a render manifest. Relative asset paths resolve against
// the manifest's directory.
func LoadRequest(path string) (Request, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Request{}, fmt.Errorf("resolve manifest path: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return Request{}, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return DecodeRequest(f, filepath.Dir(abs))
}

// DecodeRequest parses a manifest from r. When baseDir is set, relative asset
// paths are joined to it.
func DecodeRequest(r io.Reader, baseDir string) (Request, error) {
	var req Request
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return Request{}, fmt.Errorf("decode manifest: %w", err)
	}
	req.ID = strings.TrimSpace(req.ID)
	if baseDir != "" {
		for i := range req.Images {
			req.Images[i].Path = resolveAssetPath(baseDir, req.Images[i].Path)
		}
		for i := range req.Audio {
			req.Audio[i].Path = resolveAssetPath(baseDir, req.Audio[i].Path)
		}
	}
	return req, nil
}

func resolveAssetPath(baseDir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
