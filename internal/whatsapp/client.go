// Package whatsapp is a small client for the WhatsApp Cloud API messages
// endpoint. It only knows how to send a text message and an image with a
// caption to a single recipient.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"

	"attendancehook/internal/apperr"
)

const (
	DefaultBaseURL    = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
	DefaultTimeout    = 30 * time.Second

	// MaxResponseBytes caps how much of an API response is read.
	MaxResponseBytes = 1 << 20

	// Graph API error code for an invalid or expired access token.
	codeInvalidToken = 190
)

// Config holds the credentials and endpoint for the client.
type Config struct {
	Token         string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration

	// HTTPClient is the transport the bearer token is layered on. Optional.
	HTTPClient *http.Client
}

// Client sends messages through the Cloud API.
type Client struct {
	httpClient *http.Client
	endpoint   string
}

// NewClient validates cfg and returns a ready client. Missing credentials are
// a configuration error.
func NewClient(cfg Config) (*Client, error) {
	var missing []string
	if strings.TrimSpace(cfg.Token) == "" {
		missing = append(missing, "token")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		missing = append(missing, "phone number id")
	}
	if len(missing) > 0 {
		return nil, apperr.New(
			"whatsapp: missing credentials: "+strings.Join(missing, ", "),
			goerrors.CategoryValidation,
			http.StatusInternalServerError,
			apperr.CodeConfigInvalid,
		)
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := cfg.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		endpoint:   fmt.Sprintf("%s/%s/%s/messages", baseURL, version, cfg.PhoneNumberID),
	}, nil
}

type textBody struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type imageBody struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type messageRequest struct {
	MessagingProduct string     `json:"messaging_product"`
	RecipientType    string     `json:"recipient_type"`
	To               string     `json:"to"`
	Type             string     `json:"type"`
	Text             *textBody  `json:"text,omitempty"`
	Image            *imageBody `json:"image,omitempty"`
}

type messageResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

// SendText sends a plain text message and returns the message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               NormalizeRecipient(to),
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendImage sends the image at link with caption and returns the message id.
func (c *Client) SendImage(ctx context.Context, to, link, caption string) (string, error) {
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               NormalizeRecipient(to),
		Type:             "image",
		Image:            &imageBody{Link: link, Caption: caption},
	})
}

func (c *Client) send(ctx context.Context, msg messageRequest) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", apperr.Wrap(err, goerrors.CategoryInternal, "whatsapp: encode request",
			http.StatusInternalServerError, apperr.CodeInternal)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", apperr.Wrap(err, goerrors.CategoryInternal, "whatsapp: build request",
			http.StatusInternalServerError, apperr.CodeInternal)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", upstreamError(err, "whatsapp: request failed", map[string]any{
			"message_type": msg.Type,
			"timeout":      isTimeout(err),
		})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return "", upstreamError(err, "whatsapp: read response", map[string]any{
			"message_type": msg.Type,
			"status":       resp.StatusCode,
		})
	}

	var decoded messageResponse
	decodeErr := json.Unmarshal(raw, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", statusError(resp.StatusCode, decoded.Error, msg.Type)
	}
	if decodeErr != nil {
		return "", upstreamError(decodeErr, "whatsapp: malformed response", map[string]any{
			"message_type": msg.Type,
			"status":       resp.StatusCode,
		})
	}
	if len(decoded.Messages) == 0 || decoded.Messages[0].ID == "" {
		return "", upstreamError(nil, "whatsapp: response has no message id", map[string]any{
			"message_type": msg.Type,
			"status":       resp.StatusCode,
		})
	}

	return decoded.Messages[0].ID, nil
}

// NormalizeRecipient strips the leading plus sign and separators the API does
// not accept in the "to" field.
func NormalizeRecipient(number string) string {
	replacer := strings.NewReplacer("+", "", " ", "", "-", "", "(", "", ")", "")
	return replacer.Replace(strings.TrimSpace(number))
}

func statusError(status int, apiErr *apiError, msgType string) error {
	metadata := map[string]any{
		"message_type": msgType,
		"status":       status,
	}
	detail := http.StatusText(status)
	if apiErr != nil {
		metadata["api_code"] = apiErr.Code
		metadata["api_type"] = apiErr.Type
		if apiErr.FBTraceID != "" {
			metadata["fbtrace_id"] = apiErr.FBTraceID
		}
		if apiErr.Message != "" {
			detail = apiErr.Message
		}
	}

	if status == http.StatusUnauthorized || (apiErr != nil && apiErr.Code == codeInvalidToken) {
		err := apperr.New(
			fmt.Sprintf("whatsapp: credentials rejected: %s", detail),
			goerrors.CategoryAuth,
			http.StatusInternalServerError,
			apperr.CodeCredentialsRejected,
		)
		err.WithMetadata(metadata)
		return err
	}

	return upstreamError(nil, fmt.Sprintf("whatsapp: api returned %d: %s", status, detail), metadata)
}

func upstreamError(source error, message string, metadata map[string]any) error {
	err := apperr.Wrap(source, goerrors.CategoryExternal, message,
		http.StatusServiceUnavailable, apperr.CodeUpstreamUnavailable)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
