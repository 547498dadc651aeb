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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers contains the HTTP API for inspecting and administering
// checkers: list/detail views, run detail, override management and the
// ignore switch. Checker *execution* is never triggered over HTTP; that is
// the scheduler's and the CLI's job.
type Handlers struct {
	store  Store
	logger *slog.Logger
}

// NewHandlers creates the HTTP handlers.
func NewHandlers(store Store, logger *slog.Logger) (*Handlers, error) {
	if store == nil {
		return nil, ErrNilDependency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{store: store, logger: logger}, nil
}

// Register attaches all routes to the router.
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/healthz", h.HandleHealth)
	v1 := r.Group("/api/v1")
	v1.GET("/checkers", h.HandleListCheckers)
	v1.GET("/checkers/:name", h.HandleCheckerDetail)
	v1.POST("/checkers/:name/ignore", h.HandleIgnore)
	v1.POST("/checkers/:name/unignore", h.HandleUnignore)
	v1.GET("/runs/:id", h.HandleRunDetail)
	v1.GET("/overrides", h.HandleListOverrides)
	v1.POST("/overrides", h.HandleCreateOverride)
	v1.DELETE("/overrides/:id", h.HandleDeleteOverride)
}

// checkerView is the list/detail payload for one checker.
type checkerView struct {
	Name               string     `json:"name"`
	Section            string     `json:"section"`
	Description        string     `json:"description,omitempty"`
	Severity           Severity   `json:"severity"`
	Cadence            Cadence    `json:"cadence"`
	Status             Status     `json:"status"`
	StatusAge          string     `json:"status_age,omitempty"`
	LatestStatusChange *time.Time `json:"latest_status_change,omitempty"`
	LatestRunDate      *time.Time `json:"latest_run_date,omitempty"`
}

func viewForChecker(c *Checker) checkerView {
	return checkerView{
		Name:               c.Name,
		Section:            c.Section,
		Description:        c.Description,
		Severity:           c.Severity,
		Cadence:            c.Cadence,
		Status:             c.Status,
		StatusAge:          c.HumanStatusAge(),
		LatestStatusChange: c.LatestStatusChange,
		LatestRunDate:      c.LatestRunDate,
	}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleListCheckers returns all checkers, optionally filtered by status
// and cadence query parameters.
func (h *Handlers) HandleListCheckers(c *gin.Context) {
	filter := ListFilter{
		Status:  Status(c.Query("status")),
		Cadence: Cadence(c.Query("cadence")),
	}
	checkers, err := h.store.ListCheckers(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list checkers", err)
		return
	}
	views := make([]checkerView, 0, len(checkers))
	for _, chk := range checkers {
		views = append(views, viewForChecker(chk))
	}
	c.JSON(http.StatusOK, gin.H{"checkers": views})
}

// HandleCheckerDetail returns one checker with its recent runs and status
// transitions.
func (h *Handlers) HandleCheckerDetail(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	chk, err := h.store.GetChecker(ctx, name)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown checker"})
		return
	}
	if err != nil {
		h.fail(c, "get checker", err)
		return
	}
	runs, err := h.store.RunsForChecker(ctx, name, 20)
	if err != nil {
		h.fail(c, "list runs", err)
		return
	}
	transitions, err := h.store.TransitionsForChecker(ctx, name, 20)
	if err != nil {
		h.fail(c, "list transitions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checker":     viewForChecker(chk),
		"runs":        runs,
		"transitions": transitions,
	})
}

// HandleRunDetail returns one run with its persisted failures.
func (h *Handlers) HandleRunDetail(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	run, err := h.store.GetRun(ctx, id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
		return
	}
	if err != nil {
		h.fail(c, "get run", err)
		return
	}
	failures, err := h.store.FailuresForRun(ctx, id)
	if err != nil {
		h.fail(c, "list failures", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "failures": failures})
}

// HandleIgnore sets a checker's status to ignored. While ignored, runs
// still execute but cause no status mutation, transition or notification.
// The operator action itself is recorded in the transition log.
func (h *Handlers) HandleIgnore(c *gin.Context) {
	h.setStatus(c, StatusIgnored)
}

// HandleUnignore resets an ignored checker to new, so the next run
// re-establishes status from scratch.
func (h *Handlers) HandleUnignore(c *gin.Context) {
	h.setStatus(c, StatusNew)
}

func (h *Handlers) setStatus(c *gin.Context, target Status) {
	name := c.Param("name")
	ctx := c.Request.Context()

	chk, err := h.store.GetChecker(ctx, name)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown checker"})
		return
	}
	if err != nil {
		h.fail(c, "get checker", err)
		return
	}
	if chk.Status == target {
		c.JSON(http.StatusOK, gin.H{"checker": viewForChecker(chk)})
		return
	}

	now := time.Now().UTC()
	old := chk.Status
	chk.Status = target
	chk.LatestStatusChange = &now
	if err := h.store.UpdateChecker(ctx, chk); err != nil {
		h.fail(c, "update checker", err)
		return
	}
	transition := &StatusTransition{
		ID:           uuid.NewString(),
		CheckerName:  chk.Name,
		OldValue:     old,
		NewValue:     target,
		CreationDate: now,
	}
	if err := h.store.AppendTransition(ctx, transition); err != nil {
		h.fail(c, "append transition", err)
		return
	}
	transitionsTotal.WithLabelValues(string(target)).Inc()
	h.logger.Info("checker status set by operator",
		slog.String("name", chk.Name),
		slog.String("old", string(old)),
		slog.String("new", string(target)))
	c.JSON(http.StatusOK, gin.H{"checker": viewForChecker(chk)})
}

// overrideRequest is the create-override payload.
type overrideRequest struct {
	CheckerName        string            `json:"checker_name"`
	ApplyToAllCheckers bool              `json:"apply_to_all_checkers"`
	Data               map[string]string `json:"data" binding:"required"`
	Note               string            `json:"note"`
	User               string            `json:"user"`
}

// HandleListOverrides returns all overrides.
func (h *Handlers) HandleListOverrides(c *gin.Context) {
	overrides, err := h.store.ListOverrides(c.Request.Context())
	if err != nil {
		h.fail(c, "list overrides", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"overrides": overrides})
}

// HandleCreateOverride creates a suppression override, either scoped to an
// existing checker or global.
//
// Override data is deliberately not shape-validated beyond requiring the
// field: an empty mapping matches every failure that has data, and that is
// the operator's call to make.
func (h *Handlers) HandleCreateOverride(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CheckerName == "" && !req.ApplyToAllCheckers {
		c.JSON(http.StatusBadRequest, gin.H{"error": "override must name a checker or apply to all"})
		return
	}
	ctx := c.Request.Context()
	if req.CheckerName != "" {
		if _, err := h.store.GetChecker(ctx, req.CheckerName); errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown checker"})
			return
		} else if err != nil {
			h.fail(c, "get checker", err)
			return
		}
	}

	override := &CheckerOverride{
		ID:                 uuid.NewString(),
		CheckerName:        req.CheckerName,
		ApplyToAllCheckers: req.ApplyToAllCheckers,
		Data:               req.Data,
		Note:               req.Note,
		User:               req.User,
		CreationDate:       time.Now().UTC(),
	}
	if err := h.store.CreateOverride(ctx, override); err != nil {
		h.fail(c, "create override", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"override": override})
}

// HandleDeleteOverride deletes an override by id.
func (h *Handlers) HandleDeleteOverride(c *gin.Context) {
	err := h.store.DeleteOverride(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown override"})
		return
	}
	if err != nil {
		h.fail(c, "delete override", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) fail(c *gin.Context, op string, err error) {
	h.logger.Error("request failed",
		slog.String("op", op),
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
