// Package history records render runs in SQLite so finished videos can be
// listed, streamed, and pruned after the process that rendered them exits.
//
// Each run is one row keyed by its run ID. A row is created as pending before
// work starts, moves to rendering as the pipeline advances, and ends as done,
// failed, cancelled, or rejected. Rows left in pending or rendering by a
// crashed process are marked failed by ResetInterrupted.
//
// Schema changes bump schemaVersion; users delete history.db to adopt a new
// schema.
package history
