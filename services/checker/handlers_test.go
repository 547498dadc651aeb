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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, store Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers, err := NewHandlers(store, nil)
	require.NoError(t, err)
	handlers.Register(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var payload map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	}
	return w, payload
}

func TestHandlers_Checkers(t *testing.T) {
	store := newMockStore()
	chk, _, err := store.GetOrCreateChecker(context.Background(), "orphaned_invoices", "billing")
	require.NoError(t, err)
	chk.Status = StatusFailing
	require.NoError(t, store.UpdateChecker(context.Background(), chk))
	router := newTestRouter(t, store)

	t.Run("health", func(t *testing.T) {
		w, payload := doJSON(t, router, http.MethodGet, "/healthz", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", payload["status"])
	})

	t.Run("list", func(t *testing.T) {
		w, payload := doJSON(t, router, http.MethodGet, "/api/v1/checkers", "")
		require.Equal(t, http.StatusOK, w.Code)
		checkers := payload["checkers"].([]any)
		require.Len(t, checkers, 1)
		first := checkers[0].(map[string]any)
		assert.Equal(t, "orphaned_invoices", first["name"])
		assert.Equal(t, "failing", first["status"])
	})

	t.Run("list with non-matching filter", func(t *testing.T) {
		w, payload := doJSON(t, router, http.MethodGet, "/api/v1/checkers?status=succeeding", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, payload["checkers"], 0)
	})

	t.Run("detail", func(t *testing.T) {
		w, payload := doJSON(t, router, http.MethodGet, "/api/v1/checkers/orphaned_invoices", "")
		require.Equal(t, http.StatusOK, w.Code)
		detail := payload["checker"].(map[string]any)
		assert.Equal(t, "billing", detail["section"])
	})

	t.Run("detail unknown name", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodGet, "/api/v1/checkers/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandlers_IgnoreUnignore(t *testing.T) {
	store := newMockStore()
	_, _, err := store.GetOrCreateChecker(context.Background(), "noisy", "ops")
	require.NoError(t, err)
	router := newTestRouter(t, store)

	w, payload := doJSON(t, router, http.MethodPost, "/api/v1/checkers/noisy/ignore", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ignored", payload["checker"].(map[string]any)["status"])

	// Operator action is recorded in the transition log.
	transitions, err := store.TransitionsForChecker(context.Background(), "noisy", 0)
	require.NoError(t, err)
	require.Len(t, transitions, 1)
	assert.Equal(t, StatusNew, transitions[0].OldValue)
	assert.Equal(t, StatusIgnored, transitions[0].NewValue)

	// Ignoring an already-ignored checker is a no-op.
	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/checkers/noisy/ignore", "")
	require.Equal(t, http.StatusOK, w.Code)
	transitions, err = store.TransitionsForChecker(context.Background(), "noisy", 0)
	require.NoError(t, err)
	assert.Len(t, transitions, 1)

	// Unignore resets to new.
	w, payload = doJSON(t, router, http.MethodPost, "/api/v1/checkers/noisy/unignore", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "new", payload["checker"].(map[string]any)["status"])

	w, _ = doJSON(t, router, http.MethodPost, "/api/v1/checkers/absent/ignore", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_Overrides(t *testing.T) {
	store := newMockStore()
	_, _, err := store.GetOrCreateChecker(context.Background(), "orphaned_invoices", "billing")
	require.NoError(t, err)
	router := newTestRouter(t, store)

	t.Run("create scoped override", func(t *testing.T) {
		w, payload := doJSON(t, router, http.MethodPost, "/api/v1/overrides",
			`{"checker_name":"orphaned_invoices","data":{"invoice_id":"42"},"note":"known bad row","user":"ops"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		override := payload["override"].(map[string]any)
		assert.NotEmpty(t, override["id"])

		scoped, err := store.OverridesForChecker(context.Background(), "orphaned_invoices")
		require.NoError(t, err)
		require.Len(t, scoped, 1)
		assert.Equal(t, "known bad row", scoped[0].Note)
	})

	t.Run("create global override", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/api/v1/overrides",
			`{"apply_to_all_checkers":true,"data":{"region":"eu"}}`)
		require.Equal(t, http.StatusCreated, w.Code)

		global, err := store.GlobalOverrides(context.Background())
		require.NoError(t, err)
		assert.Len(t, global, 1)
	})

	t.Run("override must have a target", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/api/v1/overrides", `{"data":{"a":"b"}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("data field is required", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/api/v1/overrides", `{"checker_name":"orphaned_invoices"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown checker is rejected", func(t *testing.T) {
		w, _ := doJSON(t, router, http.MethodPost, "/api/v1/overrides",
			`{"checker_name":"absent","data":{"a":"b"}}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		overrides, err := store.ListOverrides(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, overrides)

		w, _ := doJSON(t, router, http.MethodDelete, "/api/v1/overrides/"+overrides[0].ID, "")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w, _ = doJSON(t, router, http.MethodDelete, "/api/v1/overrides/absent", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandlers_RunDetail(t *testing.T) {
	store := newMockStore()
	router := newTestRouter(t, store)

	w, _ := doJSON(t, router, http.MethodGet, "/api/v1/runs/absent", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
