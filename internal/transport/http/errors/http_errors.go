package errors

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

type RateLimitError struct {
	Message       string `json:"error"`
	RetryAfterSec int64  `json:"retry_after_sec"`
}

func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	Write(w, status, APIError{Message: message})
}
