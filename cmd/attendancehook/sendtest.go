package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"attendancehook/internal/server"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

var (
	targetURL     string
	scenarioFile  string
	signingSecret string
	sendTimeout   time.Duration
)

var sendTestCmd = &cobra.Command{
	Use:   "send-test",
	Short: "Send synthetic attendance events to a running instance",
	Long: `Check /health on a running instance, then POST each scenario to
/attendance-webhook and compare the response status with the expectation.

Scenarios come from a YAML file (--scenarios) or the built-in set. The
command exits non-zero when any scenario does not get its expected status.`,
	Example: `  attendancehook send-test
  attendancehook send-test --url http://127.0.0.1:5000 --scenarios ./scenarios.yaml`,
	RunE: runSendTest,
}

func init() {
	sendTestCmd.Flags().StringVar(&targetURL, "url", getEnvOrDefault("ATTENDANCEHOOK_URL", "http://127.0.0.1:5000"), "Base URL of the running instance")
	sendTestCmd.Flags().StringVar(&scenarioFile, "scenarios", "", "YAML scenario file (default: built-in scenarios)")
	sendTestCmd.Flags().StringVar(&signingSecret, "secret", os.Getenv("WEBHOOK_SECRET"), "Secret used to sign payloads (X-Hub-Signature-256)")
	sendTestCmd.Flags().DurationVar(&sendTimeout, "timeout", 45*time.Second, "Per-request timeout")
}

// Scenario is one synthetic request and the status it should get.
type Scenario struct {
	Name         string         `yaml:"name"`
	Payload      map[string]any `yaml:"payload"`
	RawBody      string         `yaml:"raw_body"`
	ContentType  string         `yaml:"content_type"`
	ExpectStatus int            `yaml:"expect_status"`
}

type scenarioFileFormat struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// ScenarioResult is the outcome of one scenario.
type ScenarioResult struct {
	Scenario Scenario
	Status   int
	Body     string
	Err      error
}

// Passed reports whether the expected status came back.
func (r ScenarioResult) Passed() bool {
	return r.Err == nil && r.Status == r.Scenario.ExpectStatus
}

func loadScenarios(data []byte) ([]Scenario, error) {
	var file scenarioFileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios defined")
	}
	for i, sc := range file.Scenarios {
		if sc.Name == "" {
			return nil, fmt.Errorf("scenario %d: missing name", i+1)
		}
		if sc.ExpectStatus == 0 {
			return nil, fmt.Errorf("scenario %q: missing expect_status", sc.Name)
		}
		if sc.Payload != nil && sc.RawBody != "" {
			return nil, fmt.Errorf("scenario %q: payload and raw_body are exclusive", sc.Name)
		}
	}
	return file.Scenarios, nil
}

// requestBody renders the body and content type for sc.
func (sc Scenario) requestBody() ([]byte, string, error) {
	contentType := sc.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	if sc.RawBody != "" {
		return []byte(sc.RawBody), contentType, nil
	}
	body, err := json.Marshal(sc.Payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return body, contentType, nil
}

func runScenario(ctx context.Context, client *http.Client, baseURL, secret string, sc Scenario) ScenarioResult {
	result := ScenarioResult{Scenario: sc}

	body, contentType, err := sc.requestBody()
	if err != nil {
		result.Err = err
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/attendance-webhook", bytes.NewReader(body))
	if err != nil {
		result.Err = err
		return result
	}
	req.Header.Set("Content-Type", contentType)
	if secret != "" {
		req.Header.Set(server.SignatureHeader, server.MakeTestSignature(body, secret))
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Err = err
		return result
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	result.Status = resp.StatusCode
	result.Body = string(respBody)
	return result
}

func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", baseURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// sendScenarios runs every scenario in order and writes a report to out.
// It returns the number of failed scenarios.
func sendScenarios(ctx context.Context, out io.Writer, client *http.Client, baseURL, secret string, scenarios []Scenario) (int, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	fmt.Fprintf(out, "Testing attendance webhook at %s\n", baseURL)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	if err := checkHealth(ctx, client, baseURL); err != nil {
		return 0, err
	}
	fmt.Fprintln(out, "Service is healthy")

	failed := 0
	for _, sc := range scenarios {
		result := runScenario(ctx, client, baseURL, secret, sc)

		mark := "PASS"
		if !result.Passed() {
			mark = "FAIL"
			failed++
		}

		fmt.Fprintln(out, strings.Repeat("-", 60))
		fmt.Fprintf(out, "[%s] %s\n", mark, sc.Name)
		if result.Err != nil {
			fmt.Fprintf(out, "  error:  %v\n", result.Err)
			continue
		}
		fmt.Fprintf(out, "  status: %d (expected %d)\n", result.Status, sc.ExpectStatus)
		fmt.Fprintf(out, "  body:   %s\n", strings.TrimSpace(result.Body))
	}

	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "%d scenarios, %d failed\n", len(scenarios), failed)
	return failed, nil
}

func runSendTest(cmd *cobra.Command, args []string) error {
	data := defaultScenarios
	if scenarioFile != "" {
		var err error
		data, err = os.ReadFile(scenarioFile)
		if err != nil {
			return fmt.Errorf("failed to read scenarios: %w", err)
		}
	}

	scenarios, err := loadScenarios(data)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: sendTimeout}
	failed, err := sendScenarios(cmd.Context(), cmd.OutOrStdout(), client, targetURL, signingSecret, scenarios)
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(scenarios))
	}
	return nil
}
