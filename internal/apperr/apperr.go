// Package apperr maps domain errors onto HTTP responses.
//
// Every error that can reach the request boundary is a *goerrors.Error
// carrying a category, an HTTP status code and a stable text code. Handlers
// call HTTPStatus and PublicMessage instead of switching on error types.
package apperr

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes returned in the "error" field of the response envelope.
const (
	CodeBadInput            = "BAD_INPUT"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeMethodNotAllowed    = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeRateLimited         = "RATE_LIMITED"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeCredentialsRejected = "CREDENTIALS_REJECTED"
	CodeConfigInvalid       = "CONFIG_INVALID"
	CodeInternal            = "INTERNAL"
)

// TextCode returns the text code for a category when the error itself does
// not carry one.
func TextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return CodeBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return CodeForbidden
	case goerrors.CategoryNotFound:
		return CodeNotFound
	case goerrors.CategoryRateLimit:
		return CodeRateLimited
	case goerrors.CategoryExternal:
		return CodeUpstreamUnavailable
	default:
		return CodeInternal
	}
}

// New builds a rich error with the status and text code filled in.
func New(message string, category goerrors.Category, status int, textCode string) *goerrors.Error {
	return goerrors.New(message, category).
		WithCode(status).
		WithTextCode(textCode)
}

// Wrap is New for errors with an underlying cause.
func Wrap(source error, category goerrors.Category, message string, status int, textCode string) *goerrors.Error {
	if source == nil {
		return New(message, category, status, textCode)
	}
	return goerrors.Wrap(source, category, message).
		WithCode(status).
		WithTextCode(textCode)
}

// HTTPStatus resolves the response status for err. Errors that are not rich
// errors are treated as internal.
func HTTPStatus(err error) int {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return http.StatusInternalServerError
	}
	if rich.Code != 0 {
		return rich.Code
	}
	switch rich.Category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns the text code carried by err, or CodeInternal.
func Code(err error) string {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return CodeInternal
	}
	if rich.TextCode != "" {
		return rich.TextCode
	}
	return TextCode(rich.Category)
}

// PublicMessage is the caller-facing message for err. Upstream and internal
// details never leave the process.
func PublicMessage(err error) string {
	switch Code(err) {
	case CodeUpstreamUnavailable:
		return "WhatsApp service is currently unavailable"
	case CodeCredentialsRejected, CodeConfigInvalid, CodeInternal:
		return "An unexpected error occurred while processing the request"
	case CodeRateLimited:
		return "Too many requests. Please try again later."
	case CodeForbidden:
		return "Verification failed"
	default:
		return "The request could not be processed"
	}
}

// FieldErrors returns the validation entries attached to err, if any.
func FieldErrors(err error) []goerrors.FieldError {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return nil
	}
	return rich.AllValidationErrors()
}
