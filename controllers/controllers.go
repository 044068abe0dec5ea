package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"cardvault_server/utils"
)

// Identity headers set by the upstream auth layer.
const (
	HeaderUserID      = "X-User-Id"
	HeaderDisplayName = "X-Display-Name"
)

const maxLimit = 100

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the CardVault API."})
}

// Identity is the authenticated caller.
type Identity struct {
	UserID      string
	DisplayName string
}

// identityFromRequest reads the caller from the identity headers.
func identityFromRequest(r *http.Request) (Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, utils.NewUnauthorizedError("missing " + HeaderUserID + " header")
	}
	return Identity{UserID: userID, DisplayName: strings.TrimSpace(r.Header.Get(HeaderDisplayName))}, nil
}

// decodeJSON decodes the request body into v. An empty body is rejected.
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return utils.NewValidationError("request body is required")
		}
		return utils.NewValidationError("invalid request body: %v", err)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be omitted.
// Chunked requests report ContentLength -1, so the body is always read.
func decodeOptionalJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return utils.NewValidationError("invalid request body: %v", err)
	}
	return nil
}

// queryLimit parses the limit query parameter, returning def when absent.
func queryLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, utils.NewValidationError("limit must be a positive integer")
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, nil
}
