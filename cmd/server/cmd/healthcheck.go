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

const defaultServerPort = "10000"

var (
	healthcheckTimeout int
	healthcheckURL     string
)

func newHealthcheckCommand() *cobra.Command {
	healthcheck := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server reports "healthy", non-zero otherwise.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := healthcheckURL
			if url == "" {
				url = defaultHealthURL()
			}
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
			defer cancel()

			resp, err := performHealthCheck(ctx, url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server status: %s\n", resp.Status)
			return nil
		},
	}

	healthcheck.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheck.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	return healthcheck
}

// HealthResponse matches the response from internal/api/handlers/health.go
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// defaultHealthURL targets the local server using the same port precedence
// as the server itself.
func defaultHealthURL() string {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultServerPort
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheck(ctx context.Context, url string) (HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("health check failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return HealthResponse{}, fmt.Errorf("parse health check response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		return health, fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	if health.Status != "healthy" {
		return health, fmt.Errorf("unhealthy: status=%s", health.Status)
	}
	return health, nil
}
