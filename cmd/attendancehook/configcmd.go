package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"attendancehook/internal/config"
	"attendancehook/internal/security"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and validate the effective configuration",
	Long: `Load the configuration the same way 'serve' does and print it with
secrets masked. Exits non-zero when the configuration is invalid.`,
	RunE: runConfig,
}

func runConfig(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	printConfig(out, loaded)

	if err := loaded.Config.Validate(); err != nil {
		fmt.Fprintln(out, "\nStatus: INVALID")
		return err
	}
	fmt.Fprintln(out, "\nStatus: OK")
	return nil
}

func printConfig(out io.Writer, loaded *loadedConfig) {
	cfg := loaded.Config

	envFileName := loaded.EnvFile
	if envFileName == "" {
		envFileName = "(none)"
	}
	storage := cfg.RateLimitStorageURL
	if storage == "" {
		storage = "memory"
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := [][2]string{
		{"Env file", envFileName},
		{"Environment", string(cfg.Environment)},
		{"Debug", fmt.Sprintf("%t", cfg.Debug)},
		{"Log level", cfg.LogLevel},
		{"Log file", orDash(cfg.LogFile)},
		{"Listen address", cfg.Addr()},
		{"Trusted proxies", orDash(trustedProxies(cfg))},
		{"Rate limit", cfg.RateLimit.String()},
		{"Rate limit storage", security.MaskURLCredentials(storage)},
		{"Secret key", orDash(security.MaskSecret(cfg.SecretKey))},
		{"Webhook secret", orDash(security.MaskSecret(cfg.WebhookSecret))},
		{"WhatsApp token", orDash(security.MaskSecret(cfg.WhatsApp.Token))},
		{"Phone number ID", orDash(cfg.WhatsApp.PhoneNumberID)},
		{"Verify token", orDash(security.MaskSecret(cfg.WhatsApp.VerifyToken))},
		{"Recipient", orDash(cfg.WhatsApp.RecipientNumber)},
		{"API URL", cfg.WhatsApp.APIURL},
		{"API version", cfg.WhatsApp.APIVersion},
		{"API timeout", cfg.WhatsApp.Timeout.String()},
	}
	for _, row := range rows {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	tw.Flush()

	if len(loaded.Warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range loaded.Warnings {
			fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	if cfg.Environment == config.Production && cfg.WebhookSecret == "" {
		fmt.Fprintln(out, "\nNote: WEBHOOK_SECRET is not set, payload signatures are not checked")
	}
}

func trustedProxies(cfg *config.Config) string {
	parts := make([]string, 0, len(cfg.TrustedProxies))
	for _, prefix := range cfg.TrustedProxies {
		parts = append(parts, prefix.String())
	}
	return strings.Join(parts, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
