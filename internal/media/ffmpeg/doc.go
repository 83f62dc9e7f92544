// Package ffmpeg drives the external ffmpeg binary to turn a still image and an
// optional narration clip into a fixed-format video segment, and to join
// segments into one file without re-encoding.
//
// A Client carries exactly one Profile. Every segment it produces shares that
// profile's codec, resolution, pixel format, and audio layout, which is what
// allows Concatenate to stream-copy. Segments always contain one audio stream:
// scenes without narration get a synthesized silence track.
//
// Tests replace the process runner with WithCommandRunner and the stream
// inspector with WithProbe.
package ffmpeg
