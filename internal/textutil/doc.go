// Package textutil turns human-entered titles into filesystem-safe names.
//
// Slug folds accented characters to ASCII through Unicode decomposition, so
// "Café Überblick" becomes "cafe-uberblick". SanitizeToken keeps identifiers
// such as run IDs safe for path segments.
package textutil
