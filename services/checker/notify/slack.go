// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPDoer abstracts the HTTP client so tests can stub delivery.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// SlackNotifier posts messages to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     HTTPDoer
}

// NewSlackNotifier returns a notifier for the given webhook URL. A nil
// client gets a default with a 10s timeout.
func NewSlackNotifier(webhookURL string, client HTTPDoer) (*SlackNotifier, error) {
	if webhookURL == "" {
		return nil, errors.New("slack notifier: webhook URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{webhookURL: webhookURL, client: client}, nil
}

// slackPayload is the incoming-webhook message body.
type slackPayload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// Notify posts one message. The channel overrides the webhook's default
// when non-empty.
func (n *SlackNotifier) Notify(ctx context.Context, message, channel string) error {
	body, err := json.Marshal(slackPayload{Text: message, Channel: channel})
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
