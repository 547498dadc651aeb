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
	"sort"
	"strings"
)

// EscalationConfig carries the addressing for outbound notifications.
type EscalationConfig struct {
	// AdminEmails receive every escalation.
	AdminEmails []string

	// PagingEmail is the fixed on-call address used for high-severity
	// checkers. Empty disables paging.
	PagingEmail string

	// ChatChannel is the channel for chat alerts (default "#alerts").
	ChatChannel string

	// SiteURL, when set, is used to link notifications back to the
	// checker detail page.
	SiteURL string
}

// Escalator maps a status transition plus severity into zero or more
// outbound messages.
//
// It is invoked by the Runner once per *actual* status transition — never
// per run, never while a checker is ignored. Escalating on every failing
// run proved too noisy; escalating only on the transition edge, with one
// representative failure as the dossier, bounds notification volume
// independent of how many individual failures exist.
//
// Transport errors are logged and counted, never propagated: a flaky SMTP
// server must not fail a checker run.
type Escalator struct {
	mailer Mailer
	chat   ChatNotifier
	cfg    EscalationConfig
	logger *slog.Logger
}

// NewEscalator creates an escalator. Nil transports are replaced with
// no-ops so partial configurations (mail only, chat only) work.
func NewEscalator(mailer Mailer, chat ChatNotifier, cfg EscalationConfig, logger *slog.Logger) *Escalator {
	if mailer == nil {
		mailer = NopMailer{}
	}
	if chat == nil {
		chat = NopChatNotifier{}
	}
	if cfg.ChatChannel == "" {
		cfg.ChatChannel = "#alerts"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Escalator{mailer: mailer, chat: chat, cfg: cfg, logger: logger}
}

// Escalate dispatches the notifications for a checker's new status.
//
// failures are the persisted failures of the triggering run; the first one
// serves as the representative dossier for failing transitions.
func (e *Escalator) Escalate(ctx context.Context, chk *Checker, run *CheckerRun, failures []CheckerFailure) {
	switch chk.Status {
	case StatusErrored:
		e.escalateError(ctx, chk, run)
	case StatusFailing:
		e.escalateFailure(ctx, chk, failures)
	case StatusSucceeding:
		e.escalateRecovery(ctx, chk)
	}
	// StatusNew and StatusIgnored produce nothing.
}

func (e *Escalator) escalateError(ctx context.Context, chk *Checker, run *CheckerRun) {
	subject := fmt.Sprintf("Error while running %s", chk.Name)
	body := run.Data["exception"]

	recipients := append([]string(nil), e.cfg.AdminEmails...)
	if chk.Owner != "" {
		recipients = append(recipients, chk.Owner)
	}
	e.mail(ctx, subject, body, recipients)

	if chk.Severity == SeverityHigh && e.cfg.PagingEmail != "" {
		e.mail(ctx, subject, body, []string{e.cfg.PagingEmail})
	}
}

func (e *Escalator) escalateFailure(ctx context.Context, chk *Checker, failures []CheckerFailure) {
	if len(failures) == 0 {
		// A failing transition without persisted failures should not
		// happen; nothing sensible to report.
		e.logger.Warn("failing transition without failures", slog.String("name", chk.Name))
		return
	}
	dossier := failures[0]
	body := e.renderFailure(chk, dossier)

	e.notify(ctx, fmt.Sprintf("%s: %s", dossier.Text, dossier.Subtext), e.cfg.ChatChannel)
	e.mail(ctx, dossier.Text, body, e.cfg.AdminEmails)

	if chk.Severity == SeverityHigh && e.cfg.PagingEmail != "" {
		e.mail(ctx, dossier.Text, body, []string{e.cfg.PagingEmail})
	}
}

func (e *Escalator) escalateRecovery(ctx context.Context, chk *Checker) {
	subject := fmt.Sprintf("%s is now succeeding", chk.Name)
	e.mail(ctx, subject, e.renderRecovery(chk), e.cfg.AdminEmails)
}

// renderFailure builds the plain-text dossier for one failure.
func (e *Escalator) renderFailure(chk *Checker, f CheckerFailure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checker %s is failing.\n\n", chk.Name)
	fmt.Fprintf(&b, "%s\n", f.Text)
	if f.Subtext != "" {
		fmt.Fprintf(&b, "%s\n", f.Subtext)
	}
	if len(f.Data) > 0 {
		b.WriteString("\nAttributes:\n")
		for _, k := range sortedKeys(f.Data) {
			fmt.Fprintf(&b, "  %s: %s\n", k, f.Data[k])
		}
	}
	if e.cfg.SiteURL != "" {
		fmt.Fprintf(&b, "\n%s/checkers/%s\n", strings.TrimSuffix(e.cfg.SiteURL, "/"), chk.Name)
	}
	return b.String()
}

func (e *Escalator) renderRecovery(chk *Checker) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Checker %s has recovered and is succeeding again.\n", chk.Name)
	if e.cfg.SiteURL != "" {
		fmt.Fprintf(&b, "\n%s/checkers/%s\n", strings.TrimSuffix(e.cfg.SiteURL, "/"), chk.Name)
	}
	return b.String()
}

func (e *Escalator) mail(ctx context.Context, subject, body string, recipients []string) {
	if len(recipients) == 0 {
		return
	}
	if err := e.mailer.Send(ctx, subject, body, recipients); err != nil {
		notificationsTotal.WithLabelValues("email", "error").Inc()
		e.logger.Error("email notification failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
		return
	}
	notificationsTotal.WithLabelValues("email", "ok").Inc()
}

func (e *Escalator) notify(ctx context.Context, message, channel string) {
	if err := e.chat.Notify(ctx, message, channel); err != nil {
		notificationsTotal.WithLabelValues("chat", "error").Inc()
		e.logger.Error("chat notification failed", slog.String("error", err.Error()))
		return
	}
	notificationsTotal.WithLabelValues("chat", "ok").Inc()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
