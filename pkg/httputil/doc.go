// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
//
// Error responses always carry the shape {"error": "message"} so API clients
// can rely on a single field regardless of which handler produced the error.
package httputil
