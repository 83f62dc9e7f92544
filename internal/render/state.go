package render

import "context"

// State is a pipeline stage of one run.
type State string

const (
	StateInit          State = "init"
	StateResolving     State = "resolving"
	StateEncoding      State = "encoding"
	StateConcatenating State = "concatenating"
	StateFinalizing    State = "finalizing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Observer is notified of every state transition. It runs synchronously on
// the orchestrating goroutine and must not block for long.
type Observer func(ctx context.Context, runID string, state State)
