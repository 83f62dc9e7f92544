// Package assets pairs script scenes with the still images and narration clips
// produced by upstream collaborators.
//
// Matching is by exact scene ID. The resolver is a pure lookup: it never
// touches the filesystem and never fails. Missing images surface as
// Resolution.HasImage == false; missing or silent narration surfaces as an
// empty AudioPath, which the encoder turns into digital silence.
package assets
