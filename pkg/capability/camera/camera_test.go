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

package camera

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
		{name: "unknown resolution", mutate: func(c *Config) { c.PhotoResolution = 99 }, wantErr: true},
		{name: "negative resolution", mutate: func(c *Config) { c.VideoResolution = -1 }, wantErr: true},
		{name: "zero frame rate", mutate: func(c *Config) { c.FrameRate = 0 }, wantErr: true},
		{name: "zero quality", mutate: func(c *Config) { c.PhotoQuality = 0 }, wantErr: true},
		{name: "quality above one", mutate: func(c *Config) { c.PhotoQuality = 1.01 }, wantErr: true},
		{name: "zero video duration", mutate: func(c *Config) { c.MaxVideoDuration = 0 }, wantErr: true},
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

func TestConfigAdjustedForLowPower(t *testing.T) {
	t.Parallel()

	base := DefaultConfig()
	adj := base.AdjustedFor(models.Environment{LowPowerMode: true})

	assert.Less(t, adj.PhotoResolution, base.PhotoResolution)
	assert.Less(t, adj.VideoResolution, base.VideoResolution)
	assert.Less(t, adj.FrameRate, base.FrameRate)
	assert.Less(t, adj.PhotoQuality, base.PhotoQuality)
	assert.Less(t, time.Duration(adj.MaxVideoDuration), time.Duration(base.MaxVideoDuration))
	require.NoError(t, adj.Validate())

	// Floors hold even from the lowest tier.
	floor := base
	floor.PhotoResolution = models.ResolutionLow
	floor.VideoResolution = models.ResolutionLow
	floor.PhotoQuality = 0.5

	adj = floor.AdjustedFor(models.Environment{ThermalState: models.ThermalStateCritical})
	assert.Equal(t, models.ResolutionLow, adj.PhotoResolution)
	assert.InDelta(t, 0.5, adj.PhotoQuality, 1e-9)
	require.NoError(t, adj.Validate())
}

func TestCapturePhoto(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	result, err := c.CapturePhoto(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, result.CaptureID)
	assert.Equal(t, models.MediaTypePhoto, result.Media)
	assert.Equal(t, models.ResolutionHigh, result.Resolution)
	assert.Positive(t, result.SizeBytes)

	hist, err := c.History()
	require.NoError(t, err)
	require.Len(t, hist, 1)

	m, err := c.Metrics()
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.SuccessCount)
}

func TestCapturePhotoWhileRecording(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	require.NoError(t, c.StartRecording())

	_, err := c.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, ErrSessionBusy)

	_, err = c.StopRecording()
	require.NoError(t, err)

	_, err = c.CapturePhoto(context.Background())
	require.NoError(t, err)
}

func TestPreviewStateMachine(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	state, err := c.SessionState()
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, state)

	require.NoError(t, c.StartPreview())
	assert.ErrorIs(t, c.StartPreview(), ErrAlreadyPreviewing)

	state, err = c.SessionState()
	require.NoError(t, err)
	assert.Equal(t, SessionPreviewing, state)

	// Photos are allowed while previewing.
	_, err = c.CapturePhoto(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.StopPreview())
	require.NoError(t, c.StopPreview()) // idempotent
}

func TestRecordingLifecycle(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	_, err := c.StopRecording()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, c.StartRecording())
	assert.ErrorIs(t, c.StartRecording(), ErrSessionBusy)

	result, err := c.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, models.MediaTypeVideo, result.Media)
	assert.NotEmpty(t, result.CaptureID)

	state, err := c.SessionState()
	require.NoError(t, err)
	assert.Equal(t, SessionIdle, state)
}

func TestMaxVideoDurationAutoStops(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxVideoDuration = models.Duration(25 * time.Millisecond)

	c := activated(t, cfg)

	require.NoError(t, c.StartRecording())

	require.Eventually(t, func() bool {
		state, err := c.SessionState()
		return err == nil && state == SessionIdle
	}, time.Second, 5*time.Millisecond)

	hist, err := c.History()
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, models.MediaTypeVideo, hist[0].Media)
	assert.GreaterOrEqual(t, hist[0].Duration, 25*time.Millisecond)

	_, err = c.StopRecording()
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestCaptureEvents(t *testing.T) {
	t.Parallel()

	c := activated(t, DefaultConfig())

	bus, err := c.Events()
	require.NoError(t, err)

	ch, err := bus.Subscribe("test", 8)
	require.NoError(t, err)

	_, err = c.CapturePhoto(context.Background())
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, "capture.photo", ev.Kind)
		assert.Equal(t, CapabilityName, ev.Capability)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for capture event")
	}
}

func TestCaptureFailureRecorded(t *testing.T) {
	t.Parallel()

	res, err := NewResource(DefaultConfig(), logger.NewTestLogger())
	require.NoError(t, err)

	res.SetCaptureFunc(func(context.Context, CaptureRequest) (models.CaptureResult, error) {
		return models.CaptureResult{}, context.DeadlineExceeded
	})

	require.NoError(t, res.Allocate(context.Background()))

	t.Cleanup(func() { _ = res.Release(context.Background()) })

	_, err = res.CapturePhoto(context.Background())
	require.Error(t, err)

	m := res.Metrics()
	assert.Equal(t, int64(1), m.FailureCount)
	assert.Empty(t, res.History())
}

func TestDisabledCamera(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Enabled = false

	c := activated(t, cfg)

	_, err := c.CapturePhoto(context.Background())
	assert.ErrorIs(t, err, capability.ErrFeatureDisabled)
	assert.ErrorIs(t, c.StartRecording(), capability.ErrFeatureDisabled)
}

func TestReleaseStopsRecording(t *testing.T) {
	t.Parallel()

	res, err := NewResource(DefaultConfig(), logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, res.Allocate(context.Background()))

	require.NoError(t, res.StartRecording())
	require.NoError(t, res.Release(context.Background()))
	assert.Equal(t, SessionIdle, res.SessionState())
}
