package ee

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a failure reported by the platform.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       int    `json:"code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("earth engine: %s (%d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("earth engine: %d: %s", e.Code, e.Message)
}

// Temporary reports whether retrying the same request may succeed.
func (e *APIError) Temporary() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
}

func decodeAPIError(status int, body []byte) *APIError {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.HTTPStatus = status
		if envelope.Error.Code == 0 {
			envelope.Error.Code = status
		}
		return envelope.Error
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{HTTPStatus: status, Code: status, Message: msg}
}
