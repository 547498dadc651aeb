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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	"github.com/vigilops/vigil/pkg/logging"
	"github.com/vigilops/vigil/services/checker"
	"github.com/vigilops/vigil/services/checker/notify"
	badgerstore "github.com/vigilops/vigil/services/checker/storage/badger"
	"github.com/vigilops/vigil/services/checker/telemetry"
)

const version = "1.0.0"

// runServe starts the full daemon: scheduler, dispatcher, HTTP API and
// metrics endpoint. It blocks until SIGINT/SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.LogLevel),
		LogDir:  cfg.LogDir,
		Service: "vigil",
	})
	defer logger.Close()
	slogger := logger.Slog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "vigil",
		ServiceVersion: version,
		Environment:    os.Getenv("VIGIL_ENV"),
		TraceExporter:  cfg.Telemetry.TraceExporter,
		MetricExporter: cfg.Telemetry.MetricExporter,
		PrometheusPort: cfg.Telemetry.PrometheusPort,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slogger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	dbCfg := badgerstore.DefaultConfig(cfg.DataDir)
	dbCfg.Logger = slogger
	store, err := badgerstore.New(dbCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	store.StartGC(ctx, dbCfg)

	registry := checker.NewRegistry()
	if err := registerBuiltinCheckers(registry, store); err != nil {
		return err
	}
	for _, dup := range registry.Duplicates() {
		slogger.Warn("duplicate checker registration ignored", slog.String("name", dup.Name))
	}

	escalator := buildEscalator(slogger)
	runner, err := checker.NewRunner(store, escalator, slogger)
	if err != nil {
		return err
	}
	dispatcher, err := checker.NewDispatcher(registry, runner, cfg.DispatcherConfig(), cfg.Switches(), slogger)
	if err != nil {
		return err
	}
	dispatcher.Start(ctx)

	scheduler, err := checker.NewScheduler(dispatcher, cfg.DailyRunAt, slogger)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	if err := checker.WatchConfig(ctx, configPath, slogger, dispatcher.UpdateSwitches); err != nil {
		slogger.Warn("config hot-reload unavailable", slog.String("error", err.Error()))
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware("vigil"))
	handlers, err := checker.NewHandlers(store, slogger)
	if err != nil {
		return err
	}
	handlers.Register(router)

	apiServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var metricsServer *http.Server
	if handler := telemetry.MetricsHandler(); handler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Telemetry.PrometheusPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		slogger.Info("http api listening", slog.String("addr", cfg.ListenAddr))
		if err := apiServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http api: %w", err)
		}
		return nil
	})
	if metricsServer != nil {
		group.Go(func() error {
			slogger.Info("metrics listening", slog.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	group.Go(func() error {
		<-gctx.Done()
		slogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slogger.Warn("api shutdown failed", slog.String("error", err.Error()))
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				slogger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	err = group.Wait()
	if closeErr := dispatcher.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// buildEscalator assembles the notification transports from the config.
// Unconfigured transports become no-ops inside the escalator.
func buildEscalator(logger *slog.Logger) *checker.Escalator {
	var mailer checker.Mailer
	if cfg.Notifications.SMTP.Host != "" {
		m, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.Notifications.SMTP.Host,
			Port:     cfg.Notifications.SMTP.Port,
			Username: cfg.Notifications.SMTP.Username,
			Password: cfg.Notifications.SMTP.Password,
			From:     cfg.Notifications.ServerEmail,
		})
		if err != nil {
			logger.Warn("smtp mailer disabled", slog.String("error", err.Error()))
		} else {
			mailer = m
		}
	}

	var chat checker.ChatNotifier
	if cfg.Notifications.Slack.WebhookURL != "" {
		n, err := notify.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL, nil)
		if err != nil {
			logger.Warn("slack notifier disabled", slog.String("error", err.Error()))
		} else {
			chat = n
		}
	}

	return checker.NewEscalator(mailer, chat, cfg.EscalationConfig(), logger)
}
