// Package render turns a finalized script and its scene assets into one video.
//
// Orchestrator.Render drives a run through a fixed sequence of states:
//
//	init -> resolving -> encoding -> concatenating -> finalizing -> done
//
// with failed reachable from any non-terminal state. Scenes without an image,
// and scenes whose segment fails to encode, are skipped with a warning; the
// run only fails when no scene produced a segment or when concatenation fails.
// Segments are encoded by a bounded worker pool but always joined in script
// order.
//
// Every run gets its own locked working directory, which is removed on every
// exit path. The joined video is moved into the output directory under
// <slug>-<run id>.mp4 and belongs to the caller from then on.
package render
