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

package battery

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

func testConfig() Config {
	cfg := DefaultConfig()
	// Long interval so the loop never fires during a test; samples are
	// driven explicitly.
	cfg.SampleInterval = models.Duration(time.Hour)

	return cfg
}

// levelSampler returns a Sampler that replays the given levels in order,
// repeating the last one.
func levelSampler(levels ...float64) Sampler {
	i := 0

	return func(context.Context) (models.BatteryState, error) {
		level := levels[min(i, len(levels)-1)]
		i++

		return models.BatteryState{Level: level, Source: models.PowerSourceBattery}, nil
	}
}

func startResource(t *testing.T, cfg Config, s Sampler) *Resource {
	t.Helper()

	res, err := NewResource(cfg, logger.NewTestLogger())
	require.NoError(t, err)

	if s != nil {
		res.SetSampler(s)
	}

	require.NoError(t, res.Allocate(context.Background()))

	t.Cleanup(func() { _ = res.Release(context.Background()) })

	return res
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "zero low threshold", mutate: func(c *Config) { c.LowBatteryThreshold = 0 }, wantErr: true},
		{name: "low threshold above one", mutate: func(c *Config) { c.LowBatteryThreshold = 1.1 }, wantErr: true},
		{name: "zero critical threshold", mutate: func(c *Config) { c.CriticalBatteryThreshold = 0 }, wantErr: true},
		{
			name: "critical not below low",
			mutate: func(c *Config) {
				c.CriticalBatteryThreshold = c.LowBatteryThreshold
			},
			wantErr: true,
		},
		{name: "zero interval", mutate: func(c *Config) { c.SampleInterval = 0 }, wantErr: true},
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
	assert.GreaterOrEqual(t, time.Duration(adj.SampleInterval), time.Duration(base.SampleInterval),
		"low power must not sample more often")
	assert.Equal(t, base.LowBatteryThreshold, adj.LowBatteryThreshold)
	require.NoError(t, adj.Validate())

	dbg := base.AdjustedFor(models.Environment{DebugMode: true})
	assert.LessOrEqual(t, time.Duration(dbg.HistoryMaxAge), time.Duration(base.HistoryMaxAge))

	// Pure.
	assert.Equal(t, DefaultConfig(), base)
}

func TestCriticalAlertIsEdgeTriggered(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LowBatteryThreshold = 0.20
	cfg.CriticalBatteryThreshold = 0.05

	res := startResource(t, cfg, levelSampler(0.50, 0.04, 0.04, 0.03, 0.50))

	ch, err := res.Events().Subscribe("test", 32)
	require.NoError(t, err)

	ctx := context.Background()

	for range 5 {
		_, serr := res.Sample(ctx)
		require.NoError(t, serr)
	}

	var alerts []models.BatteryAlert

collect:
	for {
		select {
		case ev := <-ch:
			if alert, ok := ev.Data.(models.BatteryAlert); ok {
				alerts = append(alerts, alert)
			}
		default:
			break collect
		}
	}

	// Crossing to 0.04 raises exactly one critical alert; 0.04 and 0.03
	// stay below and stay silent; 0.50 recovers.
	require.Len(t, alerts, 2)
	assert.Equal(t, models.BatteryAlertCritical, alerts[0].Kind)
	assert.InDelta(t, 0.04, alerts[0].Level, 1e-9)
	assert.InDelta(t, 0.05, alerts[0].Threshold, 1e-9)
	assert.Equal(t, models.BatteryAlertRecover, alerts[1].Kind)
}

func TestLowThenCriticalEscalates(t *testing.T) {
	t.Parallel()

	cfg := testConfig()

	res := startResource(t, cfg, levelSampler(0.50, 0.15, 0.15, 0.04))

	ch, err := res.Events().Subscribe("test", 32)
	require.NoError(t, err)

	ctx := context.Background()

	for range 4 {
		_, serr := res.Sample(ctx)
		require.NoError(t, serr)
	}

	var kinds []models.BatteryAlertKind

drain:
	for {
		select {
		case ev := <-ch:
			if alert, ok := ev.Data.(models.BatteryAlert); ok {
				kinds = append(kinds, alert.Kind)
			}
		default:
			break drain
		}
	}

	assert.Equal(t, []models.BatteryAlertKind{models.BatteryAlertLow, models.BatteryAlertCritical}, kinds)
}

func TestSampleRecordsHistoryAndCurrent(t *testing.T) {
	t.Parallel()

	res := startResource(t, testConfig(), levelSampler(0.9, 0.8))

	_, err := res.CurrentState()
	assert.ErrorIs(t, err, ErrNoSample)

	first, err := res.Sample(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, first.SampleID)
	assert.False(t, first.SampledAt.IsZero())

	second, err := res.Sample(context.Background())
	require.NoError(t, err)

	cur, err := res.CurrentState()
	require.NoError(t, err)
	assert.Equal(t, second.SampleID, cur.SampleID)

	hist := res.History()
	require.Len(t, hist, 2)
	assert.InDelta(t, 0.9, hist[0].Level, 1e-9)
	assert.InDelta(t, 0.8, hist[1].Level, 1e-9)

	m := res.Metrics()
	assert.Equal(t, int64(2), m.SuccessCount)
}

func TestSampleFailureCountsAgainstMetrics(t *testing.T) {
	t.Parallel()

	res := startResource(t, testConfig(), func(context.Context) (models.BatteryState, error) {
		return models.BatteryState{}, context.DeadlineExceeded
	})

	_, err := res.Sample(context.Background())
	require.Error(t, err)

	m := res.Metrics()
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Zero(t, m.SuccessRate)
}

func TestSampleDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Enabled = false

	res := startResource(t, cfg, levelSampler(0.9))

	_, err := res.Sample(context.Background())
	assert.ErrorIs(t, err, capability.ErrFeatureDisabled)
}

func TestMonitoringLoopSamples(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SampleInterval = models.Duration(10 * time.Millisecond)

	res := startResource(t, cfg, levelSampler(0.9))

	require.Eventually(t, func() bool {
		return len(res.History()) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestCapabilityGating(t *testing.T) {
	t.Parallel()

	c, err := New(testConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	_, err = c.CurrentState()
	assert.ErrorIs(t, err, capability.ErrNotAvailable)

	require.NoError(t, c.Activate(context.Background()))

	t.Cleanup(func() { _ = c.Deactivate(context.Background()) })

	_, err = c.Sample(context.Background())
	require.NoError(t, err)

	cur, err := c.CurrentState()
	require.NoError(t, err)
	assert.NotEmpty(t, cur.SampleID)
}
