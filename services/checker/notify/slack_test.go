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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackNotifier(t *testing.T) {
	t.Run("posts payload to webhook", func(t *testing.T) {
		var received slackPayload
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &received))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		n, err := NewSlackNotifier(server.URL, server.Client())
		require.NoError(t, err)

		require.NoError(t, n.Notify(context.Background(), "checker failing", "#ops"))
		assert.Equal(t, "checker failing", received.Text)
		assert.Equal(t, "#ops", received.Channel)
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "invalid_payload", http.StatusBadRequest)
		}))
		defer server.Close()

		n, err := NewSlackNotifier(server.URL, server.Client())
		require.NoError(t, err)

		err = n.Notify(context.Background(), "msg", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
		assert.Contains(t, err.Error(), "invalid_payload")
	})

	t.Run("empty webhook url is rejected", func(t *testing.T) {
		_, err := NewSlackNotifier("", nil)
		assert.Error(t, err)
	})
}
