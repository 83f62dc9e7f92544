// Package ffprobe inspects rendered segments and videos with ffprobe.
//
// Inspect runs ffprobe and decodes its JSON report. Result.CheckLayout verifies
// that a file carries the stream layout every segment must share before it can
// be stream-copied into the final video.
package ffprobe
