package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gridflow/internal/server"
	"github.com/matzehuels/gridflow/pkg/pipeline"
)

// serveCommand creates the serve command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr     string
		redisURL string
		noCache  bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the layout pipeline over HTTP",
		Long: `Serve the layout pipeline over HTTP.

POST /v1/layout accepts the same options as the layout command as JSON
({"markup": "...", "strategy": "masonry", "strategy_params": {"column": 3}})
and returns the laid-out markup with the captured status. Images are only
fetched over http(s) or from data URIs.

Statuses are cached in Redis when --redis is given, otherwise on disk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, redisURL, noCache, timeout)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&redisURL, "redis", "", "redis URL for a shared cache (e.g. redis://localhost:6379/0)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	cmd.Flags().DurationVar(&timeout, "timeout", pipeline.DefaultTimeout, "per-request layout timeout")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, redisURL string, noCache bool, timeout time.Duration) error {
	logger := loggerFromContext(ctx)
	runner, err := c.newRunner(ctx, noCache, redisURL)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	cacheKind := "file"
	switch {
	case noCache:
		cacheKind = "disabled"
	case redisURL != "":
		cacheKind = "redis"
	}
	printKeyValue("address", addr)
	printKeyValue("cache", cacheKind)
	printKeyValue("timeout", timeout.String())

	srv := server.New(runner, server.Options{Timeout: timeout, Logger: logger})
	err = srv.ListenAndServe(ctx, addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
