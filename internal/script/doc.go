// Package script defines the finalized narration script the renderer consumes:
// an ordered list of scenes with timing and visual metadata.
//
// Scenes are immutable once a script is finalized. Their order in Script.Scenes
// is the order of the rendered video; scene IDs are join keys for assets and
// carry no ordering meaning.
package script
