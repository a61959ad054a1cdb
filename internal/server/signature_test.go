package server

import (
	"strings"
	"testing"
)

const testWebhookSecret = "test-secret-at-least-32-chars-long-here"

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"nombre":"Ana Ruiz","empresa":"Acme"}`)
	signature := MakeTestSignature(payload, testWebhookSecret)

	if !VerifySignature(payload, signature, testWebhookSecret) {
		t.Error("Expected valid signature to be accepted")
	}
}

func TestVerifySignature_UppercaseHex(t *testing.T) {
	payload := []byte(`{"nombre":"Ana Ruiz","empresa":"Acme"}`)
	signature := MakeTestSignature(payload, testWebhookSecret)
	upper := SignaturePrefix + strings.ToUpper(strings.TrimPrefix(signature, SignaturePrefix))

	if !VerifySignature(payload, upper, testWebhookSecret) {
		t.Error("Expected uppercase hex digest to be accepted")
	}
}

func TestVerifySignature_Invalid(t *testing.T) {
	payload := []byte(`{"nombre":"Ana Ruiz","empresa":"Acme"}`)
	signature := MakeTestSignature(payload, "wrong-secret-at-least-32-chars-long-x")

	if VerifySignature(payload, signature, testWebhookSecret) {
		t.Error("Expected invalid signature to be rejected")
	}
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	signature := MakeTestSignature([]byte(`{"nombre":"Ana Ruiz","empresa":"Acme"}`), testWebhookSecret)

	if VerifySignature([]byte(`{"nombre":"Eve","empresa":"Acme"}`), signature, testWebhookSecret) {
		t.Error("Expected signature over a different payload to be rejected")
	}
}

func TestVerifySignature_MalformedSignature(t *testing.T) {
	payload := []byte(`{"nombre":"Ana Ruiz","empresa":"Acme"}`)

	testCases := []struct {
		name      string
		signature string
	}{
		{"missing", ""},
		{"no prefix", "abc123def456"},
		{"wrong prefix", "sha1=abc123def456"},
		{"no equals", "sha256abc123def456"},
		{"empty after prefix", "sha256="},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if VerifySignature(payload, tc.signature, testWebhookSecret) {
				t.Errorf("Expected malformed signature '%s' to be rejected", tc.signature)
			}
		})
	}
}

func TestTokensEqual(t *testing.T) {
	testCases := []struct {
		name      string
		got, want string
		equal     bool
	}{
		{"match", "test_verify_token", "test_verify_token", true},
		{"mismatch", "wrong", "test_verify_token", false},
		{"prefix", "test_verify", "test_verify_token", false},
		{"empty given", "", "test_verify_token", false},
		{"empty configured", "anything", "", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tokensEqual(tc.got, tc.want); got != tc.equal {
				t.Errorf("tokensEqual(%q, %q) = %v, want %v", tc.got, tc.want, got, tc.equal)
			}
		})
	}
}
