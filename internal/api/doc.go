// Package api exposes render runs over HTTP and defines the wire types shared
// by the server and the CLI's JSON output.
//
// RenderService ties the render orchestrator to the history store: every run
// gets a history row before work starts, stage transitions are recorded as
// they happen, and the terminal outcome is persisted whether the run succeeds
// or fails. Server serves that service plus streaming and download of finished
// videos.
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
package api
