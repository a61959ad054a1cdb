// Package attendance validates incoming attendance payloads and formats the
// notification text sent for them.
package attendance

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	goerrors "github.com/goliatone/go-errors"

	"attendancehook/internal/apperr"
)

// Payload field names as sent by the attendance system.
const (
	FieldName      = "nombre"
	FieldCompany   = "empresa"
	FieldRole      = "cargo"
	FieldTimestamp = "fecha_hora"
	FieldPhoto     = "photo"
)

const (
	MaxFieldLength = 100
	MaxPhotoURLLen = 2000
)

// ImageExtensions are the photo URL path suffixes accepted without content
// negotiation.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp"}

// Event is one validated check-in.
type Event struct {
	Name      string
	Company   string
	Role      string
	Timestamp string
	PhotoURL  string
}

// HasPhoto reports whether the event carries a photo to send as an image.
func (e Event) HasPhoto() bool {
	return e.PhotoURL != ""
}

// Parse validates a decoded JSON object and returns the event it describes.
// All field problems are reported together as a validation error.
func Parse(payload map[string]any) (Event, error) {
	var (
		ev     Event
		fields []goerrors.FieldError
	)

	addErr := func(field, format string, args ...any) {
		fields = append(fields, goerrors.FieldError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
		})
	}

	required := func(field string) string {
		value, present, ok := stringField(payload, field)
		switch {
		case !ok:
			addErr(field, "%s must be a string", field)
		case !present || value == "":
			addErr(field, "%s is required", field)
		case utf8.RuneCountInString(value) > MaxFieldLength:
			addErr(field, "%s exceeds maximum length of %d characters", field, MaxFieldLength)
		}
		return value
	}

	optional := func(field string, maxLen int) string {
		value, _, ok := stringField(payload, field)
		if !ok {
			addErr(field, "%s must be a string", field)
			return ""
		}
		if maxLen > 0 && utf8.RuneCountInString(value) > maxLen {
			addErr(field, "%s exceeds maximum length of %d characters", field, maxLen)
		}
		return value
	}

	ev.Name = required(FieldName)
	ev.Company = required(FieldCompany)
	ev.Role = optional(FieldRole, MaxFieldLength)
	ev.Timestamp = optional(FieldTimestamp, 0)

	if photo, _, ok := stringField(payload, FieldPhoto); !ok {
		addErr(FieldPhoto, "invalid photo URL: must be a string")
	} else if photo != "" {
		if err := ValidatePhotoURL(photo); err != nil {
			addErr(FieldPhoto, "%s", err.Error())
		} else {
			ev.PhotoURL = photo
		}
	}

	if len(fields) > 0 {
		return Event{}, goerrors.NewValidation("attendance: validation failed", fields...).
			WithCode(http.StatusBadRequest).
			WithTextCode(apperr.CodeBadInput).
			WithSeverity(goerrors.SeverityError)
	}

	return ev, nil
}

// ValidatePhotoURL checks that raw is an absolute http(s) URL whose path ends
// in a known image extension.
func ValidatePhotoURL(raw string) error {
	if len(raw) > MaxPhotoURLLen {
		return fmt.Errorf("invalid photo URL: exceeds maximum length of %d characters", MaxPhotoURLLen)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid photo URL: %v", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid photo URL: must start with http:// or https://")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid photo URL: missing host")
	}

	path := strings.ToLower(u.Path)
	for _, ext := range ImageExtensions {
		if strings.HasSuffix(path, ext) {
			return nil
		}
	}
	return fmt.Errorf("invalid photo URL: must end in one of %s", strings.Join(ImageExtensions, ", "))
}

// stringField reads a trimmed string value. ok is false when the key holds a
// non-string, non-null value.
func stringField(payload map[string]any, key string) (value string, present bool, ok bool) {
	raw, exists := payload[key]
	if !exists || raw == nil {
		return "", false, true
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, false
	}
	return strings.TrimSpace(s), true, true
}
