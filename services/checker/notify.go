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

import "context"

// Mailer delivers email notifications. The Escalator decides whether and
// what to send, never how delivery happens.
type Mailer interface {
	Send(ctx context.Context, subject, body string, recipients []string) error
}

// ChatNotifier delivers chat-style alerts to a channel.
type ChatNotifier interface {
	Notify(ctx context.Context, message, channel string) error
}

// NopMailer discards all mail. Used when no mail transport is configured.
type NopMailer struct{}

func (NopMailer) Send(ctx context.Context, subject, body string, recipients []string) error {
	return nil
}

// NopChatNotifier discards all chat alerts.
type NopChatNotifier struct{}

func (NopChatNotifier) Notify(ctx context.Context, message, channel string) error {
	return nil
}
