// Package services defines shared utilities consumed by the render pipeline,
// the API server, and the external tool wrappers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, pipeline stages, and scene IDs for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent history statuses (failed, rejected, cancelled).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability) stays uniform across the repository.
package services
