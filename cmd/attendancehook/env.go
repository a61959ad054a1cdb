package main

import (
	"fmt"
	"os"

	"attendancehook/internal/config"
	"attendancehook/internal/security"
	"attendancehook/pkg/fileutil"

	"github.com/joho/godotenv"
)

var (
	environment string
	envFile     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "Environment profile: development, testing or production (default: APP_ENV)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", getEnvOrDefault("ATTENDANCEHOOK_ENV_FILE", ""), "Path to a .env file (default: ./.env, ./config/.env, /etc/attendancehook/.env)")
}

// loadedConfig is the outcome of loading the environment.
type loadedConfig struct {
	Config   *config.Config
	EnvFile  string
	Warnings []string
}

// loadConfig applies the .env file, if any, and builds the typed config.
// Variables already present in the process environment are not overridden.
func loadConfig() (*loadedConfig, error) {
	path, err := fileutil.FindEnvFile(envFile)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if path != "" {
		if err := security.ValidateSecurePermissions(path); err != nil {
			warnings = append(warnings, fmt.Sprintf("%v (expected %04o)", err, security.PermEnvFile))
		}
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
		}
	}

	cfg, err := config.Load(environment)
	if err != nil {
		return nil, err
	}

	return &loadedConfig{
		Config:   cfg,
		EnvFile:  path,
		Warnings: append(warnings, cfg.Warnings()...),
	}, nil
}

// Helper functions for environment variables
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
