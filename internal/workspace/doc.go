// Package workspace owns the per-run scratch directories under work_dir.
//
// Each render run gets an exclusive run-<id> directory holding its segments
// and concat manifest. The directory is locked with an advisory file lock for
// as long as the run is alive, so CleanStale can reclaim directories left by
// crashed processes without ever touching a live run.
package workspace
