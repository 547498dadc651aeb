// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigilops/vigil/services/checker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newRun(name string, created time.Time) *checker.CheckerRun {
	return &checker.CheckerRun{
		ID:           uuid.NewString(),
		Checker:      name,
		Status:       checker.RunInProgress,
		CreationDate: created,
	}
}

func TestStore_Checkers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("get or create", func(t *testing.T) {
		chk, created, err := store.GetOrCreateChecker(ctx, "orphaned_invoices", "billing")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, checker.StatusNew, chk.Status)
		assert.NotEmpty(t, chk.ID)

		again, created, err := store.GetOrCreateChecker(ctx, "orphaned_invoices", "other-section")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, chk.ID, again.ID)
		assert.Equal(t, "billing", again.Section, "existing row wins")
	})

	t.Run("get unknown", func(t *testing.T) {
		_, err := store.GetChecker(ctx, "absent")
		assert.ErrorIs(t, err, checker.ErrNotFound)
	})

	t.Run("update round-trips", func(t *testing.T) {
		chk, err := store.GetChecker(ctx, "orphaned_invoices")
		require.NoError(t, err)
		chk.Status = checker.StatusFailing
		now := time.Now().UTC().Truncate(time.Second)
		chk.LatestRunDate = &now
		require.NoError(t, store.UpdateChecker(ctx, chk))

		got, err := store.GetChecker(ctx, "orphaned_invoices")
		require.NoError(t, err)
		assert.Equal(t, checker.StatusFailing, got.Status)
		require.NotNil(t, got.LatestRunDate)
		assert.True(t, now.Equal(*got.LatestRunDate))
	})

	t.Run("list with filters", func(t *testing.T) {
		_, _, err := store.GetOrCreateChecker(ctx, "another", "ops")
		require.NoError(t, err)

		all, err := store.ListCheckers(ctx, checker.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "another", all[0].Name, "ordered by name")

		failing, err := store.ListCheckers(ctx, checker.ListFilter{Status: checker.StatusFailing})
		require.NoError(t, err)
		require.Len(t, failing, 1)
		assert.Equal(t, "orphaned_invoices", failing[0].Name)
	})
}

func TestStore_Runs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	var runs []*checker.CheckerRun
	for i := 0; i < 3; i++ {
		run := newRun("seq", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.CreateRun(ctx, run))
		runs = append(runs, run)
	}

	t.Run("get by id", func(t *testing.T) {
		got, err := store.GetRun(ctx, runs[1].ID)
		require.NoError(t, err)
		assert.Equal(t, runs[1].ID, got.ID)

		_, err = store.GetRun(ctx, "absent")
		assert.ErrorIs(t, err, checker.ErrNotFound)
	})

	t.Run("newest first with limit", func(t *testing.T) {
		got, err := store.RunsForChecker(ctx, "seq", 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, runs[2].ID, got[0].ID)
		assert.Equal(t, runs[1].ID, got[1].ID)
	})

	t.Run("latest excluding", func(t *testing.T) {
		prev, err := store.LatestRunExcluding(ctx, "seq", runs[2].ID)
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, runs[1].ID, prev.ID)

		none, err := store.LatestRunExcluding(ctx, "other", "x")
		require.NoError(t, err)
		assert.Nil(t, none, "no previous run yields nil, nil")
	})

	t.Run("finalize persists run and failures atomically", func(t *testing.T) {
		run := runs[0]
		now := time.Now().UTC()
		run.Status = checker.RunFailed
		run.CompletionDate = &now

		var failures []checker.CheckerFailure
		for i := 0; i < 5; i++ {
			failures = append(failures, checker.CheckerFailure{
				ID:    uuid.NewString(),
				RunID: run.ID,
				Text:  fmt.Sprintf("failure %d", i),
			})
		}
		require.NoError(t, store.FinalizeRun(ctx, run, failures))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, checker.RunFailed, got.Status)

		gotFailures, err := store.FailuresForRun(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, gotFailures, 5)
		assert.Equal(t, "failure 0", gotFailures[0].Text, "insertion order preserved")
		assert.Equal(t, "failure 4", gotFailures[4].Text)
	})
}

func TestStore_Overrides(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	scoped := &checker.CheckerOverride{
		ID:          uuid.NewString(),
		CheckerName: "orphaned_invoices",
		Data:        map[string]string{"invoice_id": "42"},
		CreationDate: time.Now().UTC(),
	}
	global := &checker.CheckerOverride{
		ID:                 uuid.NewString(),
		ApplyToAllCheckers: true,
		Data:               map[string]string{"region": "eu"},
		CreationDate:       time.Now().UTC(),
	}
	require.NoError(t, store.CreateOverride(ctx, scoped))
	require.NoError(t, store.CreateOverride(ctx, global))

	forChecker, err := store.OverridesForChecker(ctx, "orphaned_invoices")
	require.NoError(t, err)
	require.Len(t, forChecker, 1)
	assert.Equal(t, scoped.ID, forChecker[0].ID)

	globals, err := store.GlobalOverrides(ctx)
	require.NoError(t, err)
	require.Len(t, globals, 1)
	assert.Equal(t, global.ID, globals[0].ID)

	all, err := store.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, store.DeleteOverride(ctx, scoped.ID))
	assert.ErrorIs(t, store.DeleteOverride(ctx, scoped.ID), checker.ErrNotFound)

	all, err = store.ListOverrides(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_Transitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	statuses := []checker.Status{checker.StatusSucceeding, checker.StatusFailing, checker.StatusSucceeding}
	old := checker.StatusNew
	for i, next := range statuses {
		require.NoError(t, store.AppendTransition(ctx, &checker.StatusTransition{
			ID:           uuid.NewString(),
			CheckerName:  "seq",
			OldValue:     old,
			NewValue:     next,
			CreationDate: base.Add(time.Duration(i) * time.Minute),
		}))
		old = next
	}

	got, err := store.TransitionsForChecker(ctx, "seq", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, checker.StatusSucceeding, got[0].NewValue, "newest first")
	assert.Equal(t, checker.StatusFailing, got[1].NewValue)

	none, err := store.TransitionsForChecker(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
