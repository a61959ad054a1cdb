package main

import (
	"fmt"

	"attendancehook/internal/security"

	"github.com/spf13/cobra"
)

var secretCount int

var genSecretCmd = &cobra.Command{
	Use:   "gen-secret",
	Short: "Generate a random value for SECRET_KEY or WEBHOOK_SECRET",
	Long: `Print cryptographically random secrets that pass the production
strength checks (length and entropy).`,
	Example: `  attendancehook gen-secret
  attendancehook gen-secret --count 2`,
	Args: cobra.NoArgs,
	RunE: runGenSecret,
}

func init() {
	genSecretCmd.Flags().IntVarP(&secretCount, "count", "n", 1, "Number of secrets to generate")
}

func runGenSecret(cmd *cobra.Command, args []string) error {
	if secretCount < 1 {
		return fmt.Errorf("--count must be at least 1")
	}
	for i := 0; i < secretCount; i++ {
		secret, err := security.GenerateSecret()
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), secret)
	}
	return nil
}
