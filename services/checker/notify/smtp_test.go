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
	"context"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPMailer(t *testing.T) {
	t.Run("requires host and from", func(t *testing.T) {
		_, err := NewSMTPMailer(SMTPConfig{From: "vigil@example.com"})
		assert.Error(t, err)
		_, err = NewSMTPMailer(SMTPConfig{Host: "mail.example.com"})
		assert.Error(t, err)
	})

	t.Run("defaults port to 587", func(t *testing.T) {
		m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", From: "vigil@example.com"})
		require.NoError(t, err)
		assert.Equal(t, 587, m.cfg.Port)
	})

	t.Run("builds message and addresses delivery", func(t *testing.T) {
		m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", Port: 25, From: "vigil@example.com"})
		require.NoError(t, err)

		var gotAddr, gotFrom, gotMsg string
		var gotTo []string
		m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
			assert.Nil(t, a, "no auth without username")
			return nil
		}

		err = m.Send(context.Background(), "Error while running billing_sync", "traceback", []string{"admins@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "mail.example.com:25", gotAddr)
		assert.Equal(t, "vigil@example.com", gotFrom)
		assert.Equal(t, []string{"admins@example.com"}, gotTo)
		assert.Contains(t, gotMsg, "Subject: Error while running billing_sync\r\n")
		assert.Contains(t, gotMsg, "To: admins@example.com\r\n")
		assert.Contains(t, gotMsg, "\r\n\r\ntraceback")
	})

	t.Run("no recipients is a no-op", func(t *testing.T) {
		m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", From: "vigil@example.com"})
		require.NoError(t, err)
		m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			t.Fatal("send must not be called")
			return nil
		}
		assert.NoError(t, m.Send(context.Background(), "s", "b", nil))
	})

	t.Run("cancelled context is surfaced", func(t *testing.T) {
		m, err := NewSMTPMailer(SMTPConfig{Host: "mail.example.com", From: "vigil@example.com"})
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.Error(t, m.Send(ctx, "s", "b", []string{"a@example.com"}))
	})
}
