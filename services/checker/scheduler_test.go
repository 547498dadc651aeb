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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyCronSpec(t *testing.T) {
	t.Run("valid times", func(t *testing.T) {
		cases := map[string]string{
			"9:30":  "30 9 * * *",
			"09:30": "30 9 * * *",
			"0:00":  "0 0 * * *",
			"23:59": "59 23 * * *",
			"":      "30 9 * * *",
		}
		for in, want := range cases {
			got, err := dailyCronSpec(in)
			require.NoError(t, err, "input %q", in)
			assert.Equal(t, want, got, "input %q", in)
		}
	})

	t.Run("invalid times", func(t *testing.T) {
		for _, in := range []string{"930", "24:00", "9:60", "a:b", "9:", ":30"} {
			_, err := dailyCronSpec(in)
			assert.Error(t, err, "input %q", in)
		}
	})
}

func TestNewScheduler(t *testing.T) {
	t.Run("nil dispatcher is rejected", func(t *testing.T) {
		_, err := NewScheduler(nil, "9:30", nil)
		assert.ErrorIs(t, err, ErrNilDependency)
	})

	t.Run("wires all cadence triggers", func(t *testing.T) {
		d, err := NewDispatcher(NewRegistry(), &fakeInvoker{}, DispatcherConfig{}, Switches{}, nil)
		require.NoError(t, err)
		s, err := NewScheduler(d, "9:30", nil)
		require.NoError(t, err)
		s.Start()
		s.Stop()
	})

	t.Run("bad daily time is rejected", func(t *testing.T) {
		d, err := NewDispatcher(NewRegistry(), &fakeInvoker{}, DispatcherConfig{}, Switches{}, nil)
		require.NoError(t, err)
		_, err = NewScheduler(d, "25:00", nil)
		assert.Error(t, err)
	})
}
