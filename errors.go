package main

import (
	"encoding/json"
	"net/http"
)

// Error codes returned in the response envelope.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidInput    = "INVALID_INPUT"
	CodeInternal        = "INTERNAL_ERROR"
)

// APIError is the error payload inside the response envelope.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// apiError carries a status/code/message triple out of store-adjacent helpers
// so handlers and the chat agent share one failure taxonomy.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string { return e.Message }

func errNotFound(msg string) *apiError {
	return &apiError{Status: http.StatusNotFound, Code: CodeNotFound, Message: msg}
}

func errForbidden(msg string) *apiError {
	return &apiError{Status: http.StatusForbidden, Code: CodeForbidden, Message: msg}
}

func errInvalid(msg string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: CodeInvalidInput, Message: msg}
}

func errInternal(msg string) *apiError {
	return &apiError{Status: http.StatusInternalServerError, Code: CodeInternal, Message: msg}
}

// writeError writes a structured error response
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   APIError{Code: code, Message: message},
	})
}

// writeAPIError writes an apiError through the standard envelope.
func writeAPIError(w http.ResponseWriter, err *apiError) {
	writeError(w, err.Status, err.Code, err.Message)
}

// writeSuccess writes a success response
func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// writeMessage writes a success response carrying only a message.
func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": true,
		"message": message,
	})
}
