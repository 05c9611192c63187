package web

// errors.go turns handler errors into coded JSON responses.
//
// The technical error is logged with the request ID; the client receives
// the core.MapError message, suggested action and code.

import (
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/nipa/internal/core"
	"github.com/go-chi/chi/v5/middleware"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user message with statusCode.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSONStatus(w, statusCode, ErrorResponse{
		Error:   err.Error(),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// logExportError records a failure after the response has started.
func (s *Server) logExportError(r *http.Request, datasetID string, err error) {
	slog.Error("dataset export failed",
		"dataset_id", datasetID,
		"error", err,
		"request_id", middleware.GetReqID(r.Context()),
	)
}
