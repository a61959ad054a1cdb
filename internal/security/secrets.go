package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Strength rules for SECRET_KEY and WEBHOOK_SECRET in production.
const (
	MinSecretLength = 32
	MinEntropy      = 3.5 // Shannon bits per character

	// DevSecretKey is the SECRET_KEY used outside production.
	DevSecretKey = "dev-secret-key-change-in-production"

	generatedSecretBytes = 36 // 48 base64 characters
)

// placeholderMarkers appear in sample .env values that were never replaced.
var placeholderMarkers = []string{
	"change-in-production",
	"changeme",
	"replace",
	"your-",
	"password",
}

// ValidateSecret rejects secrets that are short, copied from a sample file,
// or too repetitive to be random.
func ValidateSecret(secret string) error {
	if len(secret) < MinSecretLength {
		return fmt.Errorf("must be at least %d characters, got %d", MinSecretLength, len(secret))
	}

	lower := strings.ToLower(secret)
	for _, marker := range placeholderMarkers {
		if strings.Contains(lower, marker) {
			return errors.New("looks like a placeholder, generate one with gen-secret")
		}
	}

	if e := shannonEntropy(secret); e < MinEntropy {
		return fmt.Errorf("entropy %.2f bits/char is below %.1f, generate one with gen-secret", e, MinEntropy)
	}
	return nil
}

// GenerateSecret returns 48 URL-safe characters from crypto/rand.
func GenerateSecret() (string, error) {
	buf := make([]byte, generatedSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	var counts [256]int
	for i := 0; i < len(s); i++ {
		counts[s[i]]++
	}

	n := float64(len(s))
	var bits float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		bits -= p * math.Log2(p)
	}
	return bits
}
