package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"attendancehook/internal/attendance"
	"attendancehook/internal/notify"
	"attendancehook/internal/ratelimit"
)

type unreachableStoreLimiter struct{ failingLimiter }

func (unreachableStoreLimiter) Ping(context.Context) error {
	return errors.New("dial tcp 127.0.0.1:6379: connection refused")
}

// deadlineDispatcher records the deadline of the context it is called with.
type deadlineDispatcher struct {
	deadline    time.Time
	hasDeadline bool
}

func (d *deadlineDispatcher) Notify(ctx context.Context, ev attendance.Event) (*notify.Result, error) {
	d.deadline, d.hasDeadline = ctx.Deadline()
	return &notify.Result{
		NotificationID: "n-1",
		MessageID:      "wamid.TEXT",
		Type:           notify.TypeText,
		Event:          ev,
		ProcessedAt:    time.Now(),
	}, nil
}

func postFrom(router http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/attendance-webhook", strings.NewReader(`{"nombre":"Ana Ruiz","empresa":"Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestRateLimit_IgnoresForwardedHeadersFromUntrustedPeer(t *testing.T) {
	server, messenger := setupTestServer(t)
	server.Limiter = ratelimit.NewMemoryLimiter(ratelimit.Budget{Requests: 3, Window: time.Hour})
	router := server.Router()

	admitted := 0
	for i := 0; i < 20; i++ {
		rr := postFrom(router, "203.0.113.7:4000", map[string]string{
			"X-Forwarded-For": fmt.Sprintf("198.51.100.%d", i+1),
			"X-Real-IP":       fmt.Sprintf("192.0.2.%d", i+1),
			"True-Client-IP":  fmt.Sprintf("192.0.2.%d", i+100),
		})
		switch rr.Code {
		case http.StatusOK:
			admitted++
		case http.StatusTooManyRequests:
		default:
			t.Fatalf("Request %d: unexpected status %d", i+1, rr.Code)
		}
	}

	if admitted != 3 {
		t.Errorf("Expected 3 of 20 requests admitted, got %d", admitted)
	}
	if got := len(messenger.calls()); got != 3 {
		t.Errorf("Expected 3 messages sent, got %d", got)
	}
}

func TestRateLimit_TrustedProxyForwardsClientIP(t *testing.T) {
	server, _ := setupTestServer(t)
	server.Config.TrustedProxies = []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	server.Limiter = ratelimit.NewMemoryLimiter(ratelimit.Budget{Requests: 2, Window: time.Hour})
	router := server.Router()

	client := map[string]string{"X-Real-IP": "198.51.100.1"}
	for i := 0; i < 2; i++ {
		if rr := postFrom(router, "10.1.2.3:5000", client); rr.Code != http.StatusOK {
			t.Fatalf("Request %d: expected status 200, got %d", i+1, rr.Code)
		}
	}
	if rr := postFrom(router, "10.1.2.3:5001", client); rr.Code != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 for the same forwarded client, got %d", rr.Code)
	}

	// Another client behind the same proxy has its own budget
	if rr := postFrom(router, "10.1.2.3:5002", map[string]string{"X-Real-IP": "198.51.100.2"}); rr.Code != http.StatusOK {
		t.Errorf("Expected other forwarded client to be allowed, got %d", rr.Code)
	}
}

func TestPeerAddr(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"203.0.113.7:4000", "203.0.113.7", true},
		{"[::1]:8080", "::1", true},
		{"[::ffff:10.0.0.1]:80", "10.0.0.1", true},
		{"198.51.100.1", "198.51.100.1", true},
		{"not-an-address", "", false},
	}

	for _, tt := range tests {
		got, ok := peerAddr(tt.in)
		if ok != tt.ok {
			t.Errorf("peerAddr(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && got.String() != tt.want {
			t.Errorf("peerAddr(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRequestTimeout_CoversOutboundTimeout(t *testing.T) {
	server, _ := setupTestServer(t)
	server.Config.WhatsApp.Timeout = 90 * time.Second
	dispatcher := &deadlineDispatcher{}
	server.Notifier = dispatcher

	start := time.Now()
	rr := postWebhook(server, `{"nombre":"Ana Ruiz","empresa":"Acme"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	if !dispatcher.hasDeadline {
		t.Fatal("Expected the dispatch context to carry a deadline")
	}
	if budget := dispatcher.deadline.Sub(start); budget < 90*time.Second+OutboundMargin-time.Second {
		t.Errorf("Expected request deadline to cover the 90s outbound timeout, got %s", budget)
	}

	hs := server.httpServer("127.0.0.1:0")
	if hs.WriteTimeout <= server.requestTimeout() {
		t.Errorf("Expected write timeout %s to exceed request deadline %s", hs.WriteTimeout, server.requestTimeout())
	}
}

func TestRequestTimeout_Minimum(t *testing.T) {
	server, _ := setupTestServer(t)
	server.Config.WhatsApp.Timeout = 5 * time.Second

	if got := server.requestTimeout(); got != RequestTimeout {
		t.Errorf("Expected %s, got %s", RequestTimeout, got)
	}
}

func TestRecoverer_ResponseAlreadyStarted(t *testing.T) {
	server, _ := setupTestServer(t)

	handler := server.recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, "partial")
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	if rr.Code != http.StatusAccepted {
		t.Errorf("Expected status 202 to be kept, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "partial" {
		t.Errorf("Expected no envelope after a started response, got %q", body)
	}
}

func TestHandleHealth_DegradedLimiterStorage(t *testing.T) {
	server, _ := setupTestServer(t)
	server.Limiter = unreachableStoreLimiter{}

	req := httptest.NewRequest("GET", "/health", nil)
	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != "degraded" {
		t.Errorf("Expected status 'degraded', got %v", response["status"])
	}
	info := response["service_info"].(map[string]interface{})
	if info["rate_limit_storage"] != "unreachable" {
		t.Errorf("Expected rate_limit_storage 'unreachable', got %v", info["rate_limit_storage"])
	}
}
