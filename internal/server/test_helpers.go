package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// MakeTestSignature generates an X-Hub-Signature-256 value. The send-test
// command uses it to sign synthetic payloads.
func MakeTestSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
