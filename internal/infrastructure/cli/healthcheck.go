package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/nutrisense/api/pkg/healthcheck"
	"github.com/nutrisense/api/pkg/retry"
	"github.com/spf13/cobra"
)

type healthCheckOptions struct {
	url           string
	timeout       time.Duration
	retries       int
	retryDelay    time.Duration
	allowDegraded bool
	verbose       bool
}

// healthReport mirrors the fields of the health endpoint the probe needs
type healthReport struct {
	Status healthcheck.Status `json:"status"`
	Checks []struct {
		Name    string             `json:"name"`
		Status  healthcheck.Status `json:"status"`
		Message string             `json:"message"`
	} `json:"checks"`
}

func newHealthCheckCmd() *cobra.Command {
	opts := &healthCheckOptions{}

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe a running server's health endpoint",
		Long: `Probe a running server's health endpoint and exit non-zero unless it is healthy.

Suitable for container health checks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runHealthCheck(ctx, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.url, "url", "http://localhost:8080/health", "Health check endpoint URL")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	cmd.Flags().IntVar(&opts.retries, "retry", 0, "Number of retries on failure")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", time.Second, "Delay before the first retry")
	cmd.Flags().BoolVar(&opts.allowDegraded, "allow-degraded", true, "Treat a degraded report as passing")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print every check")
	return cmd
}

func runHealthCheck(ctx context.Context, out io.Writer, opts *healthCheckOptions) error {
	client := &http.Client{Timeout: opts.timeout}

	policy := retry.Policy{
		MaxRetries: opts.retries,
		BaseDelay:  opts.retryDelay,
		Retryable:  func(error) bool { return true },
	}
	notify := func(err error, attempt int, wait time.Duration) {
		fmt.Fprintf(out, "Attempt %d failed: %v, retrying in %v\n", attempt, err, wait)
	}

	report, err := retry.Do(ctx, policy, notify, func(ctx context.Context) (*healthReport, error) {
		return fetchHealth(ctx, client, opts.url)
	})
	if err != nil {
		return fmt.Errorf("health check failed after %d attempt(s): %w", opts.retries+1, err)
	}

	fmt.Fprintf(out, "Status: %s\n", report.Status)
	if opts.verbose {
		for _, c := range report.Checks {
			fmt.Fprintf(out, "  %-16s %-9s %s\n", c.Name, c.Status, c.Message)
		}
	}

	switch report.Status {
	case healthcheck.StatusHealthy:
		return nil
	case healthcheck.StatusDegraded:
		if opts.allowDegraded {
			return nil
		}
	}
	return fmt.Errorf("service is %s", report.Status)
}

func fetchHealth(ctx context.Context, client *http.Client, url string) (*healthReport, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var report healthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("unexpected response (HTTP %d): %w", resp.StatusCode, err)
	}
	return &report, nil
}
