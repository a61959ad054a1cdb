package config

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"attendancehook/internal/ratelimit"
	"attendancehook/internal/security"
)

// Environment selects a profile of defaults.
type Environment string

const (
	Development Environment = "development"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

const (
	DefaultAPIURL     = "https://graph.facebook.com"
	DefaultAPIVersion = "v18.0"
	DefaultTimeout    = 30 * time.Second
	DefaultRateLimit  = "100 per hour"
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 5000
)

// WhatsAppConfig holds the Cloud API credentials and endpoint.
type WhatsAppConfig struct {
	Token           string
	PhoneNumberID   string
	VerifyToken     string
	RecipientNumber string
	APIURL          string
	APIVersion      string
	Timeout         time.Duration
}

// Config is the typed runtime configuration.
type Config struct {
	Environment Environment
	Debug       bool
	LogLevel    string
	LogFile     string

	SecretKey     string
	WebhookSecret string

	Host string
	Port int

	// TrustedProxies are the peers whose X-Forwarded-For / X-Real-IP
	// headers name the client. Empty means the TCP peer is the client.
	TrustedProxies []netip.Prefix

	RateLimit           ratelimit.Budget
	RateLimitStorageURL string

	WhatsApp WhatsAppConfig
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load reads the process environment. An empty environment falls back to
// APP_ENV, then FLASK_ENV, then development.
func Load(environment string) (*Config, error) {
	return LoadFrom(environment, os.LookupEnv)
}

// LoadFrom builds a Config from lookup. Malformed values are reported
// together; missing required values are left to Validate.
func LoadFrom(environment string, lookup LookupFunc) (*Config, error) {
	r := &reader{lookup: lookup}

	env, err := ParseEnvironment(firstNonEmpty(environment, r.get("APP_ENV"), r.get("FLASK_ENV")))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:         env,
		Debug:               r.boolEnv(r.firstKey("DEBUG", "FLASK_DEBUG"), env != Production),
		LogLevel:            strings.ToUpper(r.getEnv("LOG_LEVEL", defaultLogLevel(env))),
		LogFile:             r.getEnv("LOG_FILE", ""),
		SecretKey:           r.getEnv("SECRET_KEY", defaultSecretKey(env)),
		WebhookSecret:       r.getEnv("WEBHOOK_SECRET", ""),
		Host:                r.getEnv("HOST", DefaultHost),
		Port:                r.intEnv("PORT", DefaultPort),
		RateLimitStorageURL: r.getEnv("RATELIMIT_STORAGE_URL", ""),
		TrustedProxies:      r.prefixListEnv("TRUSTED_PROXIES"),
		WhatsApp: WhatsAppConfig{
			Token:           r.getEnv("WHATSAPP_TOKEN", testingDefault(env, "test_token")),
			PhoneNumberID:   r.getEnv("WHATSAPP_PHONE_NUMBER_ID", testingDefault(env, "test_phone_id")),
			VerifyToken:     r.getEnv("WHATSAPP_VERIFY_TOKEN", testingDefault(env, "test_verify_token")),
			RecipientNumber: r.getEnv("WHATSAPP_RECIPIENT_NUMBER", testingDefault(env, "+1234567890")),
			APIURL:          strings.TrimRight(r.getEnv("WHATSAPP_API_URL", DefaultAPIURL), "/"),
			APIVersion:      r.getEnv("WHATSAPP_API_VERSION", DefaultAPIVersion),
			Timeout:         r.timeoutEnv(),
		},
	}

	budget, err := ratelimit.ParseBudget(r.getEnv("RATE_LIMIT", DefaultRateLimit))
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("  - RATE_LIMIT: %v", err))
	}
	cfg.RateLimit = budget

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid environment:\n%s", strings.Join(r.errs, "\n"))
	}
	return cfg, nil
}

// ParseEnvironment accepts the profile names and their common short forms.
func ParseEnvironment(name string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "development", "dev":
		return Development, nil
	case "testing", "test":
		return Testing, nil
	case "production", "prod":
		return Production, nil
	default:
		return "", fmt.Errorf("unknown environment %q (expected development, testing or production)", name)
	}
}

// Validate returns every configuration problem at once.
func (c *Config) Validate() error {
	var errs []string

	required := []struct{ key, value string }{
		{"WHATSAPP_TOKEN", c.WhatsApp.Token},
		{"WHATSAPP_PHONE_NUMBER_ID", c.WhatsApp.PhoneNumberID},
		{"WHATSAPP_VERIFY_TOKEN", c.WhatsApp.VerifyToken},
		{"WHATSAPP_RECIPIENT_NUMBER", c.WhatsApp.RecipientNumber},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Sprintf("  - %s: required", r.key))
		}
	}

	if u, err := url.Parse(c.WhatsApp.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Sprintf("  - WHATSAPP_API_URL: %q is not an absolute URL", c.WhatsApp.APIURL))
	}
	if c.WhatsApp.Timeout <= 0 {
		errs = append(errs, "  - WHATSAPP_TIMEOUT: must be positive")
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("  - PORT: %d out of range", c.Port))
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		errs = append(errs, fmt.Sprintf("  - LOG_LEVEL: unknown level %q", c.LogLevel))
	}

	if c.Environment == Production {
		if err := security.ValidateSecret(c.SecretKey); err != nil {
			errs = append(errs, fmt.Sprintf("  - SECRET_KEY: %v", err))
		}
		if c.WebhookSecret != "" {
			if err := security.ValidateSecret(c.WebhookSecret); err != nil {
				errs = append(errs, fmt.Sprintf("  - WEBHOOK_SECRET: %v", err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

// Warnings lists tolerated weaknesses worth logging at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Environment != Production && c.SecretKey == security.DevSecretKey {
		warnings = append(warnings, "SECRET_KEY is the development placeholder")
	}
	if c.WebhookSecret == "" {
		warnings = append(warnings, "WEBHOOK_SECRET is not set, payload signatures are not checked")
	} else if c.Environment != Production && security.ValidateSecret(c.WebhookSecret) != nil {
		warnings = append(warnings, "WEBHOOK_SECRET looks weak, generate one with gen-secret")
	}
	if c.Environment == Production && c.Debug {
		warnings = append(warnings, "DEBUG is enabled in production")
	}
	return warnings
}

// TrustsProxy reports whether the peer at addr may set forwarding headers.
func (c *Config) TrustsProxy(addr netip.Addr) bool {
	addr = addr.Unmap()
	for _, prefix := range c.TrustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c *Config) SlogLevel() slog.Level {
	if level, ok := logLevels[c.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

var logLevels = map[string]slog.Level{
	"DEBUG":    slog.LevelDebug,
	"INFO":     slog.LevelInfo,
	"WARN":     slog.LevelWarn,
	"WARNING":  slog.LevelWarn,
	"ERROR":    slog.LevelError,
	"CRITICAL": slog.LevelError,
}

func defaultLogLevel(env Environment) string {
	if env == Production {
		return "WARNING"
	}
	return "DEBUG"
}

func defaultSecretKey(env Environment) string {
	if env == Production {
		return ""
	}
	return security.DevSecretKey
}

func testingDefault(env Environment, value string) string {
	if env == Testing {
		return value
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// reader wraps a lookup and collects malformed values.
type reader struct {
	lookup LookupFunc
	errs   []string
}

func (r *reader) get(key string) string {
	val, _ := r.lookup(key)
	return strings.TrimSpace(val)
}

// firstKey returns the first of keys that is set, or the first key.
func (r *reader) firstKey(keys ...string) string {
	for _, key := range keys {
		if r.get(key) != "" {
			return key
		}
	}
	return keys[0]
}

func (r *reader) getEnv(key, fallback string) string {
	if val := r.get(key); val != "" {
		return val
	}
	return fallback
}

func (r *reader) boolEnv(key string, fallback bool) bool {
	val := r.get(key)
	if val == "" {
		return fallback
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	r.errs = append(r.errs, fmt.Sprintf("  - %s: invalid bool %q", key, val))
	return fallback
}

func (r *reader) intEnv(key string, fallback int) int {
	val := r.get(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("  - %s: invalid integer %q", key, val))
		return fallback
	}
	return parsed
}

// durationEnv accepts Go durations ("45s") and bare seconds ("45").
func (r *reader) durationEnv(key string, fallback time.Duration) time.Duration {
	val := r.get(key)
	if val == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(val, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("  - %s: invalid duration %q", key, val))
		return fallback
	}
	return d
}

// prefixListEnv reads a comma-separated list of CIDRs or single addresses.
func (r *reader) prefixListEnv(key string) []netip.Prefix {
	val := r.get(key)
	if val == "" {
		return nil
	}

	var prefixes []netip.Prefix
	for _, item := range strings.Split(val, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			prefix, err := netip.ParsePrefix(item)
			if err != nil {
				r.errs = append(r.errs, fmt.Sprintf("  - %s: invalid CIDR %q", key, item))
				continue
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			r.errs = append(r.errs, fmt.Sprintf("  - %s: invalid address %q", key, item))
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

func (r *reader) timeoutEnv() time.Duration {
	return r.durationEnv(r.firstKey("WHATSAPP_TIMEOUT", "REQUEST_TIMEOUT"), DefaultTimeout)
}
