package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	SignatureHeader = "X-Hub-Signature-256"
	SignaturePrefix = "sha256="
)

// VerifySignature verifies an X-Hub-Signature-256 value against the raw
// request body.
func VerifySignature(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	// Signature format: "sha256=<hex_digest>"
	if !strings.HasPrefix(signature, SignaturePrefix) {
		return false
	}

	receivedMAC := strings.TrimPrefix(signature, SignaturePrefix)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison to prevent timing attacks
	return hmac.Equal([]byte(expectedMAC), []byte(strings.ToLower(receivedMAC)))
}

// tokensEqual compares verify tokens in constant time.
func tokensEqual(got, want string) bool {
	if got == "" || want == "" {
		return false
	}
	gotSum := sha256.Sum256([]byte(got))
	wantSum := sha256.Sum256([]byte(want))
	return hmac.Equal(gotSum[:], wantSum[:])
}
