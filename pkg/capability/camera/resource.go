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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/history"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/metrics"
	"github.com/quaylabs/peripheral/pkg/models"
)

const CapabilityName = "camera"

var (
	ErrSessionBusy        = errors.New("capture session is recording")
	ErrNotRecording       = errors.New("capture session is not recording")
	ErrAlreadyPreviewing  = errors.New("capture session is already previewing")
	errResourceNotStarted = errors.New("camera resource not started")
)

// SessionState tracks what the capture session is doing.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionPreviewing SessionState = "previewing"
	SessionRecording  SessionState = "recording"
)

// CaptureRequest tells an injected capture function what to produce.
type CaptureRequest struct {
	Media      models.MediaType
	Resolution models.Resolution
	Quality    float64
	FrameRate  int
	Duration   time.Duration
}

// CaptureFunc produces a capture result. The default simulates the capture
// pipeline; platform bindings inject the real one.
type CaptureFunc func(ctx context.Context, req CaptureRequest) (models.CaptureResult, error)

// Resource owns the capture session: its state, the in-flight recording and
// its auto-stop timer, capture history, metrics, and the capture event bus.
type Resource struct {
	mu      sync.Mutex
	config  Config
	logger  zerolog.Logger
	capture CaptureFunc
	started bool

	session        SessionState
	recordingStart time.Time
	stopTimer      *time.Timer

	history *history.Ring[models.CaptureResult]
	metrics *metrics.Accumulator
	events  *eventbus.Bus[models.CapabilityEvent]

	now func() time.Time
}

func NewResource(cfg Config, log logger.Logger) (*Resource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Resource{
		config:  cfg,
		logger:  log.WithComponent(CapabilityName),
		capture: simulatedCapture,
		session: SessionIdle,
		now:     time.Now,
	}, nil
}

// SetCaptureFunc replaces the capture pipeline. It must be called before
// Allocate.
func (r *Resource) SetCaptureFunc(fn CaptureFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.capture = fn
}

func (r *Resource) Allocate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.history = history.NewRing[models.CaptureResult](r.config.HistoryLimit, time.Duration(r.config.HistoryMaxAge))
	r.metrics = metrics.NewAccumulator(CapabilityName)
	r.events = eventbus.New[models.CapabilityEvent]()
	r.session = SessionIdle
	r.started = true

	r.logger.Info().
		Str("photo_resolution", r.config.PhotoResolution.String()).
		Str("video_resolution", r.config.VideoResolution.String()).
		Int("frame_rate", r.config.FrameRate).
		Msg("Capture session allocated")

	return nil
}

func (r *Resource) Release(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	if r.session == SessionRecording {
		_, _ = r.stopRecordingLocked("resource released")
	}

	_ = r.events.Close()

	r.session = SessionIdle
	r.started = false

	r.logger.Info().Msg("Capture session released")

	return nil
}

// StartPreview moves an idle session to previewing.
func (r *Resource) StartPreview() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return err
	}

	switch r.session {
	case SessionRecording:
		return ErrSessionBusy
	case SessionPreviewing:
		return ErrAlreadyPreviewing
	case SessionIdle:
	}

	r.session = SessionPreviewing
	r.publishLocked("preview.started", nil)

	return nil
}

// StopPreview returns a previewing session to idle. Stopping an idle session
// is a no-op.
func (r *Resource) StopPreview() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return err
	}

	if r.session == SessionRecording {
		return ErrSessionBusy
	}

	if r.session == SessionPreviewing {
		r.session = SessionIdle
		r.publishLocked("preview.stopped", nil)
	}

	return nil
}

// CapturePhoto takes a single photo at the configured resolution and
// quality. Photos may be taken while idle or previewing, not while a video
// recording holds the session.
func (r *Resource) CapturePhoto(ctx context.Context) (models.CaptureResult, error) {
	r.mu.Lock()

	if err := r.readyLocked(); err != nil {
		r.mu.Unlock()
		return models.CaptureResult{}, err
	}

	if r.session == SessionRecording {
		r.mu.Unlock()
		return models.CaptureResult{}, ErrSessionBusy
	}

	capture := r.capture
	req := CaptureRequest{
		Media:      models.MediaTypePhoto,
		Resolution: r.config.PhotoResolution,
		Quality:    r.config.PhotoQuality,
	}
	r.mu.Unlock()

	start := r.now()

	result, err := capture(ctx, req)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return models.CaptureResult{}, errResourceNotStarted
	}

	r.metrics.Record("photo", r.now().Sub(start), err)

	if err != nil {
		return models.CaptureResult{}, fmt.Errorf("photo capture failed: %w", err)
	}

	result = r.finalizeLocked(result, models.MediaTypePhoto, req.Resolution)
	r.publishLocked("capture.photo", result)

	return result, nil
}

// StartRecording transitions the session to recording and arms the
// MaxVideoDuration auto-stop.
func (r *Resource) StartRecording() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return err
	}

	if r.session == SessionRecording {
		return ErrSessionBusy
	}

	r.session = SessionRecording
	r.recordingStart = r.now()

	limit := time.Duration(r.config.MaxVideoDuration)
	r.stopTimer = time.AfterFunc(limit, r.onRecordingLimit)

	r.publishLocked("recording.started", nil)

	r.logger.Info().Str("limit", limit.String()).Msg("Recording started")

	return nil
}

// StopRecording finalizes the in-flight recording and returns its result.
func (r *Resource) StopRecording() (models.CaptureResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.CaptureResult{}, err
	}

	return r.stopRecordingLocked("stopped by caller")
}

// SessionState reports what the session is currently doing.
func (r *Resource) SessionState() SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.session
}

// History returns completed captures, oldest first.
func (r *Resource) History() []models.CaptureResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.history == nil {
		return nil
	}

	return r.history.Items()
}

func (r *Resource) Metrics() models.MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.metrics == nil {
		return models.MetricsSnapshot{Capability: CapabilityName}
	}

	return r.metrics.Snapshot()
}

func (r *Resource) Events() *eventbus.Bus[models.CapabilityEvent] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.events
}

func (r *Resource) Configuration() Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.config
}

// UpdateConfiguration swaps in a new validated configuration. An in-flight
// recording keeps the duration limit it started with.
func (r *Resource) UpdateConfiguration(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = cfg

	return nil
}

func (r *Resource) readyLocked() error {
	if !r.started {
		return errResourceNotStarted
	}

	if !r.config.Enabled {
		return fmt.Errorf("%w: camera", capability.ErrFeatureDisabled)
	}

	return nil
}

// onRecordingLimit fires when a recording reaches MaxVideoDuration.
func (r *Resource) onRecordingLimit() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.session != SessionRecording {
		return
	}

	result, err := r.stopRecordingLocked("max video duration reached")
	if err != nil {
		return
	}

	r.logger.Warn().
		Str("capture_id", result.CaptureID).
		Dur("duration", result.Duration).
		Msg("Recording auto-stopped at duration limit")
}

func (r *Resource) stopRecordingLocked(reason string) (models.CaptureResult, error) {
	if r.session != SessionRecording {
		return models.CaptureResult{}, ErrNotRecording
	}

	if r.stopTimer != nil {
		r.stopTimer.Stop()
		r.stopTimer = nil
	}

	now := r.now()
	duration := now.Sub(r.recordingStart)

	result := models.CaptureResult{
		Media:      models.MediaTypeVideo,
		Resolution: r.config.VideoResolution,
		Duration:   duration,
		SizeBytes:  estimateVideoSize(r.config.VideoResolution, r.config.FrameRate, duration),
	}

	result = r.finalizeLocked(result, models.MediaTypeVideo, r.config.VideoResolution)
	r.session = SessionIdle

	r.metrics.Record("video", duration, nil)
	r.publishLocked("capture.video", result)

	r.logger.Info().
		Str("capture_id", result.CaptureID).
		Dur("duration", duration).
		Str("reason", reason).
		Msg("Recording stopped")

	return result, nil
}

// finalizeLocked stamps identity and timestamps onto a capture result and
// records it in history.
func (r *Resource) finalizeLocked(result models.CaptureResult, media models.MediaType, res models.Resolution) models.CaptureResult {
	if result.CaptureID == "" {
		result.CaptureID = uuid.New().String()
	}

	result.Media = media
	result.Resolution = res

	if result.CapturedAt.IsZero() {
		result.CapturedAt = r.now()
	}

	r.history.AppendAt(result, result.CapturedAt)

	return result
}

func (r *Resource) publishLocked(kind string, data any) {
	if r.events == nil {
		return
	}

	r.events.Publish(models.CapabilityEvent{
		EventID:    uuid.New().String(),
		Capability: CapabilityName,
		Kind:       kind,
		Timestamp:  r.now(),
		Data:       data,
	})
}

// simulatedCapture fabricates a photo sized from the resolution tier and
// quality setting.
func simulatedCapture(ctx context.Context, req CaptureRequest) (models.CaptureResult, error) {
	if err := ctx.Err(); err != nil {
		return models.CaptureResult{}, err
	}

	// Rough JPEG sizing: bytes-per-pixel scaled by quality.
	size := int64(float64(req.Resolution.Pixels()) * 0.25 * req.Quality)

	return models.CaptureResult{SizeBytes: size}, nil
}

// estimateVideoSize approximates an H.264 stream at 0.1 bits per pixel per
// frame.
func estimateVideoSize(res models.Resolution, frameRate int, d time.Duration) int64 {
	bitsPerSecond := float64(res.Pixels()) * 0.1 * float64(frameRate)
	return int64(bitsPerSecond / 8 * d.Seconds())
}
