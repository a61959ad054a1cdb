package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"time"

	"attendancehook/internal/apperr"
	"attendancehook/internal/attendance"
	"attendancehook/internal/security"

	"github.com/go-chi/chi/v5/middleware"
	goerrors "github.com/goliatone/go-errors"
)

const (
	MaxPayloadBytes = 1_000_000 // 1 MB

	// HealthPingTimeout bounds the shared limiter check in /health.
	HealthPingTimeout = 2 * time.Second
)

// AttendanceData is the data block of a successful ingestion response.
type AttendanceData struct {
	NotificationID string  `json:"notification_id"`
	MessageID      string  `json:"message_id"`
	EmployeeName   string  `json:"employee_name"`
	Company        string  `json:"company"`
	Role           string  `json:"role"`
	EventTime      string  `json:"event_time"`
	HasPhoto       bool    `json:"has_photo"`
	PhotoURL       *string `json:"photo_url"`
	Timestamp      string  `json:"timestamp"`
}

// HandleWebhook validates an attendance payload and dispatches one
// notification for it.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	// ContentLength can be -1 if not set; the body reader enforces the limit too
	if r.ContentLength > MaxPayloadBytes {
		s.respondError(w, payloadTooLarge(), "The request payload is too large")
		return
	}

	if !isJSONContentType(r.Header.Get("Content-Type")) {
		s.Logger.Warn("Request is not JSON", "content_type", r.Header.Get("Content-Type"), "request_id", reqID)
		s.respondError(w, badInput("invalid content type"), "Content-Type must be application/json")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPayloadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.respondError(w, payloadTooLarge(), "The request payload is too large")
			return
		}
		s.Logger.Warn("Failed to read request body", "error", err, "request_id", reqID)
		s.respondError(w, badInput("unreadable body"), "Failed to read payload")
		return
	}

	if secret := s.webhookSecret(); secret != "" {
		if !VerifySignature(body, r.Header.Get(SignatureHeader), secret) {
			s.Logger.Warn("Invalid payload signature", "ip", clientIP(r), "request_id", reqID)
			s.respondError(w, forbidden("invalid signature"), "Invalid signature")
			return
		}
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload == nil {
		s.Logger.Warn("Invalid JSON payload", "error", err, "request_id", reqID)
		s.respondError(w, badInput("invalid json"), "Request body must contain a valid JSON object")
		return
	}

	s.Logger.Debug("Received attendance data", "payload", security.RedactPayload(payload), "request_id", reqID)

	ev, err := attendance.Parse(payload)
	if err != nil {
		s.Metrics.IncValidationFailure()
		s.Logger.Warn("Attendance data validation failed", "error", err, "request_id", reqID)
		s.respondError(w, err, "Attendance data validation failed")
		return
	}

	result, err := s.Notifier.Notify(r.Context(), ev)
	if err != nil {
		if apperr.Code(err) == apperr.CodeCredentialsRejected {
			s.Logger.Error("WhatsApp rejected the configured credentials, check WHATSAPP_TOKEN",
				"error", err, "request_id", reqID)
		}
		s.respondError(w, err, "")
		return
	}

	data := AttendanceData{
		NotificationID: result.NotificationID,
		MessageID:      result.MessageID,
		EmployeeName:   ev.Name,
		Company:        ev.Company,
		Role:           ev.Role,
		EventTime:      ev.EventTime(result.ProcessedAt),
		HasPhoto:       result.HasPhoto(),
		Timestamp:      result.ProcessedAt.Format(time.RFC3339),
	}
	if ev.HasPhoto() {
		photo := ev.PhotoURL
		data.PhotoURL = &photo
	}

	s.respondSuccess(w, http.StatusOK, "Attendance notification sent successfully", data)
}

// HandleVerify answers the subscription handshake. Both the Meta parameter
// names (hub.verify_token, hub.challenge) and plain ones are accepted.
func (s *Server) HandleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	token := firstNonEmpty(q.Get("hub.verify_token"), q.Get("verify_token"))
	challenge := firstNonEmpty(q.Get("hub.challenge"), q.Get("challenge"))
	modeOK := !q.Has("hub.mode") || q.Get("hub.mode") == "subscribe"

	matched := tokensEqual(token, s.verifyToken())
	if !modeOK || !matched {
		s.Logger.Warn("Webhook verification failed",
			"mode", q.Get("hub.mode"),
			"token_match", matched,
			"ip", clientIP(r))
		s.respondError(w, forbidden("verification failed"), "Verification failed")
		return
	}

	if challenge == "" {
		s.respondError(w, badInput("missing challenge"), "Missing challenge parameter")
		return
	}

	s.Logger.Info("Webhook verification successful")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// HandleHealth reports service status and the non-secret configuration.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	info := map[string]interface{}{
		"service": ServiceName,
		"version": s.Version,
	}

	if cfg := s.Config; cfg != nil {
		info["environment"] = cfg.Environment
		info["debug"] = cfg.Debug
		info["phone_number_id"] = cfg.WhatsApp.PhoneNumberID
		info["recipient_number"] = cfg.WhatsApp.RecipientNumber
		info["api_version"] = cfg.WhatsApp.APIVersion
		info["rate_limit"] = cfg.RateLimit.String()
		info["signatures_required"] = cfg.WebhookSecret != ""
	}

	if pinger, ok := s.Limiter.(interface{ Ping(context.Context) error }); ok {
		ctx, cancel := context.WithTimeout(r.Context(), HealthPingTimeout)
		defer cancel()
		if err := pinger.Ping(ctx); err != nil {
			// Requests are still served, the limiter fails open
			s.Logger.Warn("Rate limit storage unreachable", "error", err)
			status = "degraded"
			info["rate_limit_storage"] = "unreachable"
		} else {
			info["rate_limit_storage"] = "ok"
		}
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"status":       status,
		"service_info": info,
		"timestamp":    s.timestamp(),
	})
}

// HandleIndex describes the service.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"service": ServiceName,
		"version": s.Version,
		"status":  "active",
		"endpoints": map[string]string{
			"attendance_webhook":   "/attendance-webhook",
			"health_check":         "/health",
			"metrics":              "/metrics",
			"webhook_verification": "/attendance-webhook?hub.mode=subscribe&hub.verify_token=TOKEN&hub.challenge=CHALLENGE",
		},
		"timestamp": s.timestamp(),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.Logger.Info("Route not found", "method", r.Method, "path", r.URL.Path, "ip", clientIP(r))
	s.respondError(w,
		apperr.New("route not found", goerrors.CategoryNotFound, http.StatusNotFound, apperr.CodeNotFound),
		"The requested resource was not found")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.Logger.Warn("Method not allowed", "method", r.Method, "path", r.URL.Path, "ip", clientIP(r))
	s.respondError(w,
		apperr.New("method not allowed", goerrors.CategoryBadInput, http.StatusMethodNotAllowed, apperr.CodeMethodNotAllowed),
		"The request method is not allowed for this resource")
}

func (s *Server) webhookSecret() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.WebhookSecret
}

func (s *Server) verifyToken() string {
	if s.Config == nil {
		return ""
	}
	return s.Config.WhatsApp.VerifyToken
}

func isJSONContentType(value string) bool {
	mediaType, _, err := mime.ParseMediaType(value)
	return err == nil && mediaType == "application/json"
}

func badInput(message string) error {
	return apperr.New(message, goerrors.CategoryBadInput, http.StatusBadRequest, apperr.CodeBadInput)
}

func forbidden(message string) error {
	return apperr.New(message, goerrors.CategoryAuthz, http.StatusForbidden, apperr.CodeForbidden)
}

func payloadTooLarge() error {
	return apperr.New("payload too large", goerrors.CategoryBadInput, http.StatusRequestEntityTooLarge, apperr.CodePayloadTooLarge)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
