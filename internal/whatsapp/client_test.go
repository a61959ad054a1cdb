package whatsapp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"attendancehook/internal/apperr"
)

type capturedRequest struct {
	Path          string
	Authorization string
	Body          map[string]any
}

func newTestAPI(t *testing.T, status int, response string) (*httptest.Server, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)
		captured = append(captured, capturedRequest{
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	return srv, &captured
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Token:         "test_token",
		PhoneNumberID: "123456",
		BaseURL:       baseURL,
		APIVersion:    "v18.0",
		Timeout:       2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestNewClient_MissingCredentials(t *testing.T) {
	_, err := NewClient(Config{PhoneNumberID: "123"})
	if err == nil {
		t.Fatal("Expected error for missing token")
	}
	if apperr.Code(err) != apperr.CodeConfigInvalid {
		t.Errorf("Expected config error code, got %q", apperr.Code(err))
	}
	if !strings.Contains(err.Error(), "token") {
		t.Errorf("Expected error to name the token, got %v", err)
	}
}

func TestSendText(t *testing.T) {
	srv, captured := newTestAPI(t, http.StatusOK, `{"messaging_product":"whatsapp","messages":[{"id":"wamid.TEXT1"}]}`)
	client := newTestClient(t, srv.URL)

	id, err := client.SendText(context.Background(), "+1 234-567-890", "hola")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if id != "wamid.TEXT1" {
		t.Errorf("Expected message id 'wamid.TEXT1', got %q", id)
	}

	if len(*captured) != 1 {
		t.Fatalf("Expected 1 request, got %d", len(*captured))
	}
	req := (*captured)[0]
	if req.Path != "/v18.0/123456/messages" {
		t.Errorf("Unexpected path %q", req.Path)
	}
	if req.Authorization != "Bearer test_token" {
		t.Errorf("Expected bearer token, got %q", req.Authorization)
	}
	if req.Body["to"] != "1234567890" {
		t.Errorf("Expected normalized recipient, got %v", req.Body["to"])
	}
	if req.Body["type"] != "text" {
		t.Errorf("Expected text type, got %v", req.Body["type"])
	}
	text, _ := req.Body["text"].(map[string]any)
	if text["body"] != "hola" {
		t.Errorf("Expected body 'hola', got %v", text["body"])
	}
	if _, ok := req.Body["image"]; ok {
		t.Error("Expected no image object in text message")
	}
}

func TestSendImage(t *testing.T) {
	srv, captured := newTestAPI(t, http.StatusOK, `{"messages":[{"id":"wamid.IMG1"}]}`)
	client := newTestClient(t, srv.URL)

	id, err := client.SendImage(context.Background(), "+1234567890", "https://example.com/a.jpg", "caption text")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if id != "wamid.IMG1" {
		t.Errorf("Expected message id 'wamid.IMG1', got %q", id)
	}

	req := (*captured)[0]
	if req.Body["type"] != "image" {
		t.Errorf("Expected image type, got %v", req.Body["type"])
	}
	image, _ := req.Body["image"].(map[string]any)
	if image["link"] != "https://example.com/a.jpg" || image["caption"] != "caption text" {
		t.Errorf("Unexpected image object %v", image)
	}
}

func TestSend_APIErrorIsUpstream(t *testing.T) {
	srv, _ := newTestAPI(t, http.StatusBadRequest,
		`{"error":{"message":"Recipient not allowed","type":"OAuthException","code":131030,"fbtrace_id":"trace"}}`)
	client := newTestClient(t, srv.URL)

	_, err := client.SendText(context.Background(), "+1234567890", "hola")
	if err == nil {
		t.Fatal("Expected error")
	}
	if apperr.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 mapping, got %d", apperr.HTTPStatus(err))
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("Expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Errorf("Expected external category, got %q", rich.Category)
	}
	if rich.Metadata["api_code"] != 131030 {
		t.Errorf("Expected api_code metadata, got %v", rich.Metadata["api_code"])
	}
}

func TestSend_InvalidTokenIsCredentialsError(t *testing.T) {
	srv, _ := newTestAPI(t, http.StatusUnauthorized,
		`{"error":{"message":"Invalid OAuth access token.","type":"OAuthException","code":190}}`)
	client := newTestClient(t, srv.URL)

	_, err := client.SendText(context.Background(), "+1234567890", "hola")
	if err == nil {
		t.Fatal("Expected error")
	}
	if apperr.Code(err) != apperr.CodeCredentialsRejected {
		t.Errorf("Expected credentials rejected code, got %q", apperr.Code(err))
	}
	if apperr.HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("Expected 500 mapping, got %d", apperr.HTTPStatus(err))
	}
}

func TestSend_MissingMessageID(t *testing.T) {
	srv, _ := newTestAPI(t, http.StatusOK, `{"messaging_product":"whatsapp"}`)
	client := newTestClient(t, srv.URL)

	_, err := client.SendText(context.Background(), "+1234567890", "hola")
	if apperr.Code(err) != apperr.CodeUpstreamUnavailable {
		t.Errorf("Expected upstream error, got %v", err)
	}
}

func TestSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client := newTestClient(t, baseURL)
	_, err := client.SendText(context.Background(), "+1234567890", "hola")
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	if apperr.HTTPStatus(err) != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 mapping, got %d", apperr.HTTPStatus(err))
	}
}

func TestSend_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client, err := NewClient(Config{
		Token:         "test_token",
		PhoneNumberID: "123456",
		BaseURL:       srv.URL,
		Timeout:       50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.SendText(context.Background(), "+1234567890", "hola")
	if err == nil {
		t.Fatal("Expected timeout error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("Expected go-errors envelope, got %T", err)
	}
	if rich.Metadata["timeout"] != true {
		t.Errorf("Expected timeout metadata, got %v", rich.Metadata)
	}
}

func TestNormalizeRecipient(t *testing.T) {
	testCases := map[string]string{
		"+1234567890":      "1234567890",
		" +52 55 1234 5678": "525512345678",
		"(555) 123-4567":   "5551234567",
	}
	for in, want := range testCases {
		if got := NormalizeRecipient(in); got != want {
			t.Errorf("NormalizeRecipient(%q) = %q, want %q", in, got, want)
		}
	}
}
