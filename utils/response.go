package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// WriteJSONResponse writes payload as JSON with the given status code.
func WriteJSONResponse(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

// WriteError maps err onto an HTTP response. Errors that are not AppErrors become a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	if appErr := GetAppError(err); appErr != nil && appErr.Type != ErrorTypeInternal {
		logger.Info("request rejected",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("type", string(appErr.Type)),
			zap.String("message", appErr.Message),
		)
		WriteJSONResponse(w, appErr.HTTPStatus, ErrorResponse{Error: true, Type: string(appErr.Type), Message: appErr.Message})
		return
	}

	message := "An internal error occurred"
	if appErr := GetAppError(err); appErr != nil {
		message = appErr.Message
	}
	logger.Error("request failed",
		zap.Error(err),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
	WriteJSONResponse(w, http.StatusInternalServerError, ErrorResponse{Error: true, Type: string(ErrorTypeInternal), Message: message})
}
