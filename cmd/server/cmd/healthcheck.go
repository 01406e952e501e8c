package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

// HealthResponse is the subset of the /healthz and /readyz bodies the probe reads.
type HealthResponse struct {
	Status string `json:"status"`
}

// healthyStatuses are the liveness and readiness success values.
var healthyStatuses = map[string]bool{"ok": true, "healthy": true}

func newHealthcheckCmd() *cobra.Command {
	var (
		timeout time.Duration
		url     string
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server",
		Long: `Calls the liveness endpoint and exits non-zero unless the server reports ok.
Used as the container HEALTHCHECK.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = defaultHealthURL()
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			status, err := performHealthCheck(ctx, http.DefaultClient, url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", status)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&url, "url", "", "health URL (default http://localhost:$SERVER_PORT/healthz)")
	return cmd
}

func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/healthz", port)
}

// performHealthCheck returns the reported status, or an error when the
// server is unreachable or not healthy.
func performHealthCheck(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("parse health response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return body.Status, fmt.Errorf("unhealthy: status %d (%s)", resp.StatusCode, body.Status)
	}
	if !healthyStatuses[body.Status] {
		return body.Status, fmt.Errorf("unhealthy: %s", body.Status)
	}
	return body.Status, nil
}
