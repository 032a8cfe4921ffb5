// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/laxels/humanify-sub001/services/rename"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(ro *rootOptions) *cobra.Command {
	var (
		addr  string
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the renaming engine over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = ro.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, ro, addr, debug)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config server.addr)")
	cmd.Flags().BoolVar(&debug, "debug", false, "Gin debug mode and request logging")
	return cmd
}

// newRouter wires the HTTP routes, tracing middleware and /metrics.
func newRouter(handlers *rename.Handlers, debug bool) *gin.Engine {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	if debug {
		router.Use(gin.Logger())
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	rename.RegisterRoutes(v1, handlers)
	return router
}

// setupMetrics exports OpenTelemetry metrics through the default Prometheus
// registry, next to the promauto collectors.
func setupMetrics() (func(context.Context) error, error) {
	exp, err := otelprom.New()
	if err != nil {
		return nil, fmt.Errorf("prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

func serve(ctx context.Context, ro *rootOptions, addr string, debug bool) error {
	renamer, closer, err := ro.newRenamer()
	if err != nil {
		return err
	}
	defer func() {
		if err := closer.Close(); err != nil {
			ro.logger.Warn("closing oracle cache", slog.String("error", err.Error()))
		}
	}()

	stopMetrics, err := setupMetrics()
	if err != nil {
		return err
	}
	defer func() { _ = stopMetrics(context.WithoutCancel(ctx)) }()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(rename.NewHandlers(renamer, ro.cfg, ro.logger), debug),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		ro.logger.Info("starting humanify server",
			slog.String("address", addr),
			slog.String("provider", ro.cfg.Oracle.Provider),
			slog.String("model", ro.cfg.Oracle.Model),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	ro.logger.Info("shutting down humanify server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
