package server

import (
	"encoding/json"
	"net/http"
	"time"

	"attendancehook/internal/apperr"
)

// FieldError is one validation problem in an error envelope.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Envelope is the body of every JSON response.
type Envelope struct {
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
	Error     string       `json:"error,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	Data      any          `json:"data,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// respondJSON sends a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.Logger.Error("Failed to encode JSON response", "error", err)
	}
}

// respondSuccess wraps data in a success envelope.
func (s *Server) respondSuccess(w http.ResponseWriter, statusCode int, message string, data any) {
	s.respondJSON(w, statusCode, Envelope{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: s.timestamp(),
	})
}

// respondError maps err onto an error envelope. An empty message falls back
// to the public message for the error's code.
func (s *Server) respondError(w http.ResponseWriter, err error, message string) {
	if message == "" {
		message = apperr.PublicMessage(err)
	}

	env := Envelope{
		Success:   false,
		Message:   message,
		Error:     apperr.Code(err),
		Timestamp: s.timestamp(),
	}
	for _, fe := range apperr.FieldErrors(err) {
		env.Errors = append(env.Errors, FieldError{Field: fe.Field, Message: fe.Message})
	}

	s.respondJSON(w, apperr.HTTPStatus(err), env)
}

func (s *Server) timestamp() string {
	return s.now().Format(time.RFC3339)
}

func (s *Server) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}
