package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"memories/app/services"
)

// Helper methods for consistent response handling

// sendJSON writes data with the given status.
func sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("failed to encode response", slog.Any("error", err))
	}
}

// sendMessage writes a {message} body, the shape of every error response.
func sendMessage(w http.ResponseWriter, status int, message string) {
	sendJSON(w, status, map[string]string{"message": message})
}

// sendError maps a service error to its status code.
func sendError(w http.ResponseWriter, err error) {
	switch services.KindOf(err) {
	case services.KindNotFound:
		sendMessage(w, http.StatusNotFound, err.Error())
	case services.KindConflict:
		sendMessage(w, http.StatusConflict, err.Error())
	default:
		sendMessage(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeJSON reads one JSON document from the request body into dst.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		sendMessage(w, http.StatusRequestEntityTooLarge, "Request body too large")
	case errors.Is(err, io.EOF):
		sendMessage(w, http.StatusBadRequest, "Request body is empty")
	default:
		sendMessage(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
	}
	return false
}
