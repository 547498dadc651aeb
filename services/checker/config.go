// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the engine's YAML configuration.
type Config struct {
	// DataDir is the directory for the embedded database.
	DataDir string `yaml:"data_dir" validate:"required"`

	// ListenAddr is the HTTP API bind address (default ":8410").
	ListenAddr string `yaml:"listen_addr"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogDir   string `yaml:"log_dir"`

	// DisableCheckers is the global kill switch; DisabledCheckers
	// excludes individual names. Both are consulted at dispatch time
	// and hot-reloaded when the config file changes.
	DisableCheckers  bool     `yaml:"disable_checkers"`
	DisabledCheckers []string `yaml:"disabled_checkers"`

	// DailyRunAt is the daily cadence's time of day, "H:MM" (default
	// "9:30").
	DailyRunAt string `yaml:"daily_run_at"`

	Workers struct {
		EveryTenMinutes int `yaml:"every_ten_minutes" validate:"min=0"`
		Hourly          int `yaml:"hourly" validate:"min=0"`
		Daily           int `yaml:"daily" validate:"min=0"`
	} `yaml:"workers"`

	Notifications struct {
		AdminEmails []string `yaml:"admin_emails" validate:"dive,email"`
		PagingEmail string   `yaml:"paging_email" validate:"omitempty,email"`
		ServerEmail string   `yaml:"server_email" validate:"omitempty,email"`
		SiteURL     string   `yaml:"site_url" validate:"omitempty,url"`

		Slack struct {
			WebhookURL string `yaml:"webhook_url" validate:"omitempty,url"`
			Channel    string `yaml:"channel"`
		} `yaml:"slack"`

		SMTP struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"smtp"`
	} `yaml:"notifications"`

	Telemetry struct {
		TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=stdout none"`
		MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=prometheus stdout none"`
		PrometheusPort int    `yaml:"prometheus_port" validate:"omitempty,min=1,max=65535"`
	} `yaml:"telemetry"`
}

var configValidate = validator.New()

// LoadConfig reads, parses and validates the YAML config at path, applying
// defaults for optional fields.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := configValidate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8410"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DailyRunAt == "" {
		c.DailyRunAt = "9:30"
	}
	if c.Notifications.Slack.Channel == "" {
		c.Notifications.Slack.Channel = "#alerts"
	}
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = "none"
	}
	if c.Telemetry.MetricExporter == "" {
		c.Telemetry.MetricExporter = "prometheus"
	}
	if c.Telemetry.PrometheusPort == 0 {
		c.Telemetry.PrometheusPort = 9090
	}
}

// Switches returns the dispatch-time controls derived from the config.
func (c *Config) Switches() Switches {
	return NewSwitches(c.DisableCheckers, c.DisabledCheckers)
}

// DispatcherConfig returns the worker-pool sizing derived from the config.
func (c *Config) DispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers: map[Cadence]int{
			CadenceEveryTenMinutes: c.Workers.EveryTenMinutes,
			CadenceHourly:          c.Workers.Hourly,
			CadenceDaily:           c.Workers.Daily,
		},
	}
}

// EscalationConfig returns the notification addressing derived from the
// config.
func (c *Config) EscalationConfig() EscalationConfig {
	return EscalationConfig{
		AdminEmails: c.Notifications.AdminEmails,
		PagingEmail: c.Notifications.PagingEmail,
		ChatChannel: c.Notifications.Slack.Channel,
		SiteURL:     c.Notifications.SiteURL,
	}
}

// WatchConfig watches the config file and invokes onReload with the fresh
// dispatch switches whenever it changes. Parse or validation errors keep
// the previous switches and are logged.
//
// Editors often replace files via rename, so the parent directory is
// watched rather than the file itself.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger, onReload func(Switches)) error {
	if logger == nil {
		logger = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch config dir %s: %w", dir, err)
	}
	target := filepath.Clean(path)

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					logger.Warn("config reload failed, keeping previous switches",
						slog.String("error", err.Error()))
					continue
				}
				logger.Info("config reloaded",
					slog.Bool("disable_checkers", cfg.DisableCheckers),
					slog.Int("disabled_names", len(cfg.DisabledCheckers)))
				onReload(cfg.Switches())
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", slog.String("error", err.Error()))
			}
		}
	}()
	return nil
}
