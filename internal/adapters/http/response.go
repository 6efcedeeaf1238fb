package http

import (
	"context"
	"encoding/json"
	"net/http"
)

type successEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, successEnvelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, successEnvelope{Status: "success", Message: message})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, errorEnvelope{Status: "error", Code: code, Message: message})
}

// writeServiceError maps an application error onto the wire envelope and logs
// it under the given operation name.
func writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	statusCode, code, message := mapDomainError(err)
	logHTTPOperationError(ctx, op, statusCode, code, message, err)
	writeError(w, statusCode, code, message)
}
