package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"query-insights/internal/api"
	"query-insights/internal/middleware"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts)
			if err != nil {
				return err
			}
			rt, err := openRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close() //nolint:errcheck

			limiter := middleware.NewRateLimiter(ctx, middleware.RateLimitConfig{
				RequestsPerSecond: cfg.RateLimitRPS,
				Burst:             cfg.RateLimitBurst,
			})
			routerCfg := api.RouterConfig{
				Handler:            api.NewHandler(rt.app.Query, logger),
				Logger:             logger,
				CORSAllowedOrigins: cfg.CORSAllowedOrigins,
				RateLimiter:        limiter,
				Health:             rt.app.Health,
			}
			if rt.registry != nil {
				routerCfg.Gatherer = rt.registry
			}

			srv := &http.Server{
				Addr:              cfg.ListenAddr,
				Handler:           api.NewRouter(routerCfg),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("http api listening", "addr", cfg.ListenAddr, "data_sources", rt.app.Registry.Names())
				logger.Info("try: curl http://" + curlHostForListenAddr(cfg.ListenAddr) + "/v1/queries")
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

// curlHostForListenAddr turns a listen address into a host:port usable in an
// example curl command.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
