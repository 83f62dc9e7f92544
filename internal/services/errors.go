package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"explainer/internal/history"
)

// Generic markers shared by every component.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Render pipeline taxonomy.
var (
	// ErrInvalidScript rejects a script before any work starts.
	ErrInvalidScript = errors.New("invalid script")
	// ErrMissingSceneAsset marks a scene skipped for lack of an image.
	ErrMissingSceneAsset = errors.New("missing scene asset")
	// ErrEncodingFailure marks a scene whose segment could not be produced.
	ErrEncodingFailure = errors.New("encoding failure")
	// ErrNoValidSegments fails a run where every scene was skipped.
	ErrNoValidSegments = errors.New("no valid segments")
	// ErrConcatenationFailure fails a run whose segments could not be joined.
	ErrConcatenationFailure = errors.New("concatenation failure")
	// ErrCleanup reports a temporary file that could not be removed. Never fatal.
	ErrCleanup = errors.New("cleanup warning")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureStatus maps a render error to the history status the caller should
// persist after the run ends. A stage timeout is a failure even though it
// carries context.DeadlineExceeded; only the caller's own deadline cancels.
func FailureStatus(err error) history.Status {
	switch {
	case errors.Is(err, ErrTimeout):
		return history.StatusFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return history.StatusCancelled
	case errors.Is(err, ErrInvalidScript), errors.Is(err, ErrValidation):
		return history.StatusRejected
	default:
		return history.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
