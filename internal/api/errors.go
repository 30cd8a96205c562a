// Package api provides HTTP API server implementation for the core service.
package api

import (
	"net/http"

	"github.com/integration-os/core/internal/ioserr"
)

// writeError serialises err as the boundary's flat JSON error body
// (spec.md §7: `{"error": "<message>"}`, never a stack trace), deriving
// the HTTP status from its ioserr.Kind.
func writeError(w http.ResponseWriter, err error) {
	ioserr.WriteHTTP(w, err)
}
