// Command explainer renders explainer videos from a manifest of narrated
// scenes, keeps a history of past renders, and serves them over HTTP.
//
// Typical usage:
//
//	explainer config init
//	explainer deps
//	explainer render manifest.json
//	explainer history list
//	explainer serve
package main
