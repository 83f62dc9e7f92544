package render

import (
	"fmt"
	"strings"
)

// RunError describes why a run ended in the failed state. Err wraps one of the
// services taxonomy sentinels, or a context error when the run was cancelled.
type RunError struct {
	RunID   string
	Stage   State
	SceneID int
	Skipped []SkippedScene
	Err     error
}

func (e *RunError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "render %s failed during %s", e.RunID, e.Stage)
	if e.SceneID != 0 {
		fmt.Fprintf(&b, " (scene %d)", e.SceneID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *RunError) Unwrap() error {
	return e.Err
}
