/*
 * Copyright 2025 Quay Labs, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package continuity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/models"
)

func activated(t *testing.T, cfg Config) *Capability {
	t.Helper()

	c, err := New(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, c.Activate(context.Background()))

	t.Cleanup(func() { _ = c.Deactivate(context.Background()) })

	return c
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero max activities", mutate: func(c *Config) { c.MaxActivities = 0 }, wantErr: true},
		{name: "zero sync timeout", mutate: func(c *Config) { c.SyncTimeout = 0 }, wantErr: true},
		{name: "zero ttl", mutate: func(c *Config) { c.ActivityTTL = 0 }, wantErr: true},
		{name: "zero history limit", mutate: func(c *Config) { c.HistoryLimit = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, capability.ErrInvalidConfiguration)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfigAdjustedFor(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()

	adj := base.AdjustedFor(models.Environment{LowPowerMode: true})
	assert.LessOrEqual(t, adj.MaxActivities, base.MaxActivities)
	assert.LessOrEqual(t, time.Duration(adj.ActivityTTL), time.Duration(base.ActivityTTL))
	require.NoError(t, adj.Validate())

	assert.Equal(t, base, base.AdjustedFor(models.Environment{}))
}

func TestCreateAndCurrentActivity(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	_, err := c.CurrentActivity()
	assert.ErrorIs(t, err, ErrNoCurrentActivity)

	a, err := c.CreateActivity("com.quaylabs.docs.editing", "Editing roadmap", map[string]any{"doc": "roadmap"})
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusActive, a.Status)
	assert.NotEmpty(t, a.ActivityID)

	cur, err := c.CurrentActivity()
	require.NoError(t, err)
	assert.Equal(t, a.ActivityID, cur.ActivityID)

	b, err := c.CreateActivity("com.quaylabs.docs.reading", "Reading spec", nil)
	require.NoError(t, err)

	cur, err = c.CurrentActivity()
	require.NoError(t, err)
	assert.Equal(t, b.ActivityID, cur.ActivityID)
}

func TestMaxActivitiesLimit(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxActivities = 2

	c := activated(t, cfg)

	_, err := c.CreateActivity("t", "one", nil)
	require.NoError(t, err)

	a2, err := c.CreateActivity("t", "two", nil)
	require.NoError(t, err)

	_, err = c.CreateActivity("t", "three", nil)
	require.Error(t, err)

	limitErr, ok := capability.AsLimitError(err)
	require.True(t, ok, "expected a limit error, got %v", err)
	assert.Equal(t, 2, limitErr.Limit)

	// Invalidating frees a slot.
	_, err = c.InvalidateActivity(a2.ActivityID)
	require.NoError(t, err)

	_, err = c.CreateActivity("t", "three", nil)
	require.NoError(t, err)
}

func TestUpdateActivityResetsSync(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	a, err := c.CreateActivity("t", "draft", nil)
	require.NoError(t, err)

	synced, err := c.SyncActivity(context.Background(), a.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusSynced, synced.Status)
	require.NotNil(t, synced.SyncedAt)

	updated, err := c.UpdateActivity(a.ActivityID, "draft v2", map[string]any{"rev": 2})
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusActive, updated.Status)
	assert.Nil(t, updated.SyncedAt)
}

func TestSyncTimeoutEnforced(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.SyncTimeout = models.Duration(20 * time.Millisecond)

	res, err := NewResource(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	res.SetSyncFunc(func(ctx context.Context, _ models.Activity) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	require.NoError(t, res.Allocate(context.Background()))

	t.Cleanup(func() { _ = res.Release(context.Background()) })

	a, err := res.CreateActivity("t", "slow", nil)
	require.NoError(t, err)

	start := time.Now()

	_, err = res.SyncActivity(context.Background(), a.ActivityID)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "sync must give up at the deadline")

	m := res.Metrics()
	assert.Equal(t, int64(1), m.FailureCount)

	// The failed sync leaves the activity unsynced and live.
	got, err := res.CurrentActivity()
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusActive, got.Status)
}

func TestInvalidateActivity(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	a, err := c.CreateActivity("t", "one", nil)
	require.NoError(t, err)

	retired, err := c.InvalidateActivity(a.ActivityID)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityStatusInvalidated, retired.Status)

	_, err = c.CurrentActivity()
	assert.ErrorIs(t, err, ErrNoCurrentActivity)

	_, err = c.InvalidateActivity(a.ActivityID)
	assert.ErrorIs(t, err, capability.ErrNotFound)

	hist, err := c.History()
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.ActivityStatusInvalidated, hist[0].Status)
}

func TestExpireStale(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ActivityTTL = models.Duration(time.Hour)

	res, err := NewResource(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, res.Allocate(context.Background()))

	t.Cleanup(func() { _ = res.Release(context.Background()) })

	now := time.Now()
	res.now = func() time.Time { return now }

	_, err = res.CreateActivity("t", "stale", nil)
	require.NoError(t, err)

	// Nothing stale yet.
	assert.Zero(t, res.ExpireStale())

	res.now = func() time.Time { return now.Add(2 * time.Hour) }

	assert.Equal(t, 1, res.ExpireStale())
	assert.Empty(t, res.Activities())

	hist := res.History()
	require.Len(t, hist, 1)
	assert.Equal(t, models.ActivityStatusExpired, hist[0].Status)
}

func TestCreateExpiresStaleFirst(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxActivities = 1
	cfg.ActivityTTL = models.Duration(time.Hour)

	res, err := NewResource(cfg, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, res.Allocate(context.Background()))

	t.Cleanup(func() { _ = res.Release(context.Background()) })

	now := time.Now()
	res.now = func() time.Time { return now }

	_, err = res.CreateActivity("t", "old", nil)
	require.NoError(t, err)

	// At the limit while the first activity is fresh.
	_, err = res.CreateActivity("t", "new", nil)
	require.Error(t, err)

	// Once the first is stale, its slot is reclaimed in the same call.
	res.now = func() time.Time { return now.Add(2 * time.Hour) }

	a, err := res.CreateActivity("t", "new", nil)
	require.NoError(t, err)
	assert.Equal(t, "new", a.Title)
}

func TestActivityEvents(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	bus, err := c.Events()
	require.NoError(t, err)

	ch, err := bus.Subscribe("test", 8)
	require.NoError(t, err)

	a, err := c.CreateActivity("t", "one", nil)
	require.NoError(t, err)

	_, err = c.SyncActivity(context.Background(), a.ActivityID)
	require.NoError(t, err)

	var kinds []string

	for len(kinds) < 2 {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", kinds)
		}
	}

	assert.Equal(t, []string{"activity.created", "activity.synced"}, kinds)
}

func TestGatingAndDisabled(t *testing.T) {
	t.Parallel()

	c, err := New(DefaultConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	_, err = c.CreateActivity("t", "x", nil)
	assert.ErrorIs(t, err, capability.ErrNotAvailable)

	cfg := DefaultConfig()
	cfg.Enabled = false

	d := activated(t, cfg)

	_, err = d.CreateActivity("t", "x", nil)
	assert.ErrorIs(t, err, capability.ErrFeatureDisabled)
}
