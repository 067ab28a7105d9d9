// Copyright (C) 2026 Casefile Labs (dev@casefile.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command catalogd runs the Casefile entity catalog service.
//
// Configuration is via environment variables:
//
//	CATALOG_UPSTREAM_URL   upstream archive API root (required)
//	CATALOG_PORT           listen port (default 8095)
//	CATALOG_WARM_DIR       warm tier directory (default: warm tier disabled)
//	CATALOG_WARM_TTL       warm entry lifetime, e.g. "24h"
//	CATALOG_MAX_ENTRIES    per-store record bound (default: unbounded)
//	CATALOG_FETCH_TIMEOUT  per-fetch deadline, e.g. "30s"
//	CATALOG_RATE_LIMIT     upstream requests per second (default: unlimited)
//	CATALOG_RATE_BURST     burst allowance when rate limited
//	CATALOG_LOG_LEVEL      debug, info, warn, error (default info)
//	CATALOG_LOG_DIR        log file directory (default: stderr only)
//	CATALOG_ENV            deployment environment label (default "dev")
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/casefilehq/casefile/pkg/logging"
	"github.com/casefilehq/casefile/services/catalog"
	"github.com/casefilehq/casefile/services/catalog/telemetry"
)

const (
	defaultPort            = "8095"
	shutdownTimeout        = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
	defaultFetchTimeout    = 30 * time.Second
	serviceName            = "casefile-catalog"
	serviceVersionFallback = "dev"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logLevel(os.Getenv("CATALOG_LOG_LEVEL")),
		Service: "catalog",
		LogDir:  os.Getenv("CATALOG_LOG_DIR"),
	})
	defer logger.Close()

	upstream := os.Getenv("CATALOG_UPSTREAM_URL")
	if upstream == "" {
		logger.Error("CATALOG_UPSTREAM_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceName = serviceName
	tcfg.ServiceVersion = envOr("CATALOG_VERSION", serviceVersionFallback)
	tcfg.Environment = envOr("CATALOG_ENV", "dev")
	shutdownTelemetry, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	cfg := catalog.DefaultServiceConfig()
	cfg.UpstreamURL = upstream
	cfg.WarmDir = os.Getenv("CATALOG_WARM_DIR")
	cfg.WarmTTL = envDuration(logger, "CATALOG_WARM_TTL", 0)
	cfg.MaxEntries = envInt(logger, "CATALOG_MAX_ENTRIES", 0)
	cfg.FetchTimeout = envDuration(logger, "CATALOG_FETCH_TIMEOUT", defaultFetchTimeout)
	cfg.RateLimit = envFloat(logger, "CATALOG_RATE_LIMIT", 0)
	cfg.RateBurst = envInt(logger, "CATALOG_RATE_BURST", 0)
	cfg.Logger = logger

	service, err := catalog.NewService(cfg)
	if err != nil {
		logger.Error("service init failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := service.Close(); err != nil {
			logger.Warn("service close failed", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(catalog.RequestID())

	handlers := catalog.NewHandlers(service, logger)
	router.GET("/health", handlers.Health)
	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}
	catalog.RegisterRoutes(router.Group("/v1"), handlers)

	port := envOr("CATALOG_PORT", defaultPort)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info("catalog listening",
			"port", port,
			"upstream", upstream,
			"warm_tier", cfg.WarmDir != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func logLevel(s string) logging.Level {
	switch s {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(logger *logging.Logger, key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn("ignoring invalid value", "var", key, "value", v)
		return fallback
	}
	return n
}

func envFloat(logger *logging.Logger, key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		logger.Warn("ignoring invalid value", "var", key, "value", v)
		return fallback
	}
	return f
}

func envDuration(logger *logging.Logger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logger.Warn("ignoring invalid value", "var", key, "value", v)
		return fallback
	}
	return d
}
