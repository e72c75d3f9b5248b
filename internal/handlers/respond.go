// Package handlers exposes the matching and settlement core over the
// PocketBase router. Authorization and session handling live in front
// of these handlers; the acting account id arrives on the X-Account-ID
// header set by that layer.
package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"ticket-resale/internal/status"
)

const accountHeader = "X-Account-ID"

func actorID(e *core.RequestEvent) string {
	return e.Request.Header.Get(accountHeader)
}

// respondError maps the core error taxonomy onto HTTP status codes.
func respondError(e *core.RequestEvent, err error) error {
	code := http.StatusInternalServerError
	switch {
	case status.IsValidation(err):
		code = http.StatusBadRequest
	case status.IsNotFound(err):
		code = http.StatusNotFound
	case status.IsConflict(err):
		code = http.StatusConflict
	case status.IsBusinessRule(err):
		code = http.StatusUnprocessableEntity
	case status.IsExternal(err):
		code = http.StatusBadGateway
	}
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "path", e.Request.URL.Path, "error", err)
	}
	return e.JSON(code, map[string]string{"error": err.Error()})
}
