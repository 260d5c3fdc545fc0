// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatehouse/gatehouse/internal/access"
	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/web"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand. A nil deps uses the defaults.
func NewServeCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Long: `Start the HTTP gateway. Settings come from the config file, then
flags. The metrics and health endpoints listen on metrics.addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, deps)
		},
	}
	cmd.Flags().AddFlagSet(config.Flags())
	return cmd
}

// runServe runs until ctx is cancelled, a signal arrives, or a listener
// fails.
func runServe(ctx context.Context, cmd *cobra.Command, deps *Deps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd, deps)
	if err != nil {
		return err
	}

	logger, err := logging.SetDefault(logging.Options{
		Service: "gatehouse",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.Log.Level,
		Writer:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return oops.With("operation", "set up logging").Wrap(err)
	}

	logger.Info("starting gatehouse",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"log_format", cfg.Log.Format)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := openStores(ctx, cfg, deps)
	if err != nil {
		return err
	}
	defer st.close()

	gw, err := buildGateway(ctx, cfg, deps, st, logger)
	if err != nil {
		return err
	}

	var listening atomic.Bool

	var obsServer ObservabilityServer
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, readiness(&listening, st),
			auth.RegisterMetrics,
			access.RegisterMetrics,
			web.RegisterMetrics,
		)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		obsServer.Metrics().BuildInfo.WithLabelValues(version, commit).Set(1)
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	if interval := cfg.Server.SessionSweep; interval > 0 {
		onSweep := func(int64) {}
		if obsServer != nil {
			swept := obsServer.Metrics().SessionsSwept
			onSweep = func(n int64) { swept.Add(float64(n)) }
		}
		go runSweeper(ctx, gw.sessions, interval, onSweep, logger)
	}

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		stopObservability(obsServer, logger)
		return oops.Code("LISTEN_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	}

	httpSrv := &http.Server{
		Handler:           gw.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	httpErrCh := make(chan error, 1)
	go func() {
		defer close(httpErrCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			httpErrCh <- serveErr
		}
	}()

	listening.Store(true)
	addr := listener.Addr().String()
	cmd.Println("Gatehouse listening on " + addr)
	logger.Info("gatehouse ready", "addr", addr, "base_url", cfg.Server.BaseURL)
	if deps.Listening != nil {
		deps.Listening(addr)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-httpErrCh:
		if ok && err != nil {
			serveErr = oops.Code("HTTP_SERVER_FAILED").Wrap(err)
		}
	}
	listening.Store(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping http server", "error", err)
	}
	stopObservability(obsServer, logger)

	logger.Info("shutdown complete")
	return serveErr
}

func stopObservability(obsServer ObservabilityServer, logger *slog.Logger) {
	if obsServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := obsServer.Stop(ctx); err != nil {
		logger.Warn("error stopping observability server", "error", err)
	}
}

// monitorServerErrors monitors a server's error channel and cancels the context on error.
// It exits when either an error is received, the channel is closed, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
