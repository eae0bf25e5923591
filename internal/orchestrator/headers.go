package orchestrator

import "net/http"

// allowedResponseHeaders is the fixed allow-list applied whenever a
// downstream response is rebuilt for the client.
var allowedResponseHeaders = []string{
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Headers",
	"Access-Control-Allow-Methods",
	"Content-Type",
	"Content-Length",
	"Cache-Control",
	"Connection",
	"User",
	"Date",
	"requires-tool-call",
}

// copyAllowedHeaders copies only the allow-listed headers from src to dst.
// Shared by both the streamed and buffered response paths.
func copyAllowedHeaders(dst, src http.Header) {
	for _, name := range allowedResponseHeaders {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}

// CopyAllowedHeaders is the exported form of copyAllowedHeaders, used by the
// HTTP layer when relaying a dispatched response to the client.
func CopyAllowedHeaders(dst, src http.Header) {
	copyAllowedHeaders(dst, src)
}
