package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
)

// ErrUnhealthy is returned when the catalog API fails its health probe.
var ErrUnhealthy = errors.New("catalog API is unhealthy")

// HealthOptions holds options for the health command
type HealthOptions struct {
	Timeout time.Duration
}

type healthResult struct {
	Healthy bool   `json:"healthy"`
	Elapsed string `json:"elapsed"`
}

// NewHealthCommand creates the health command
func NewHealthCommand(global *GlobalOptions) *cobra.Command {
	opts := &HealthOptions{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe the catalog API",
		Long: `Calls the configured health path on the catalog API and reports the result.
Exits non-zero when the API is unreachable or rejects the credential.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHealth(cmd, global, opts)
		},
	}

	cmd.Flags().DurationVarP(&opts.Timeout, "timeout", "t", 15*time.Second, "Overall probe deadline")

	return cmd
}

func runHealth(cmd *cobra.Command, global *GlobalOptions, opts *HealthOptions) error {
	env, err := newQueryEnv(global, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	start := time.Now()
	healthy := env.client.HealthCheck(ctx)
	if err := env.print(healthResult{Healthy: healthy, Elapsed: time.Since(start).Round(time.Millisecond).String()}); err != nil {
		return err
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}
