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

const CapabilityName = "battery"

var (
	ErrNoSample           = errors.New("no battery sample recorded yet")
	errResourceNotStarted = errors.New("battery resource not started")
)

// alert severity derived from a sample's level against the thresholds.
type severity int

const (
	severityNone severity = iota
	severityLow
	severityCritical
)

// Resource owns battery telemetry: the monitoring loop, the latest sample,
// the sample history ring, metrics, and the alert/sample event bus.
// Threshold alerts are edge-triggered; a level that stays at or below a
// threshold raises the alert once, on the crossing.
type Resource struct {
	mu      sync.RWMutex
	config  Config
	logger  zerolog.Logger
	sampler Sampler
	started bool

	current  *models.BatteryState
	severity severity

	history *history.Ring[models.BatteryState]
	metrics *metrics.Accumulator
	events  *eventbus.Bus[models.CapabilityEvent]

	stop chan struct{}
	done sync.WaitGroup

	now func() time.Time
}

func NewResource(cfg Config, log logger.Logger) (*Resource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Resource{
		config:  cfg,
		logger:  log.WithComponent(CapabilityName),
		sampler: defaultSampler,
		now:     time.Now,
	}, nil
}

// SetSampler replaces the telemetry source. It must be called before
// Allocate.
func (r *Resource) SetSampler(s Sampler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sampler = s
}

// Allocate starts the monitoring loop when the capability is enabled.
func (r *Resource) Allocate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.history = history.NewRing[models.BatteryState](r.config.HistoryLimit, time.Duration(r.config.HistoryMaxAge))
	r.metrics = metrics.NewAccumulator(CapabilityName)
	r.events = eventbus.New[models.CapabilityEvent]()
	r.severity = severityNone
	r.current = nil
	r.stop = make(chan struct{})
	r.started = true

	if r.config.Enabled {
		r.done.Add(1)

		go r.run()
	}

	r.logger.Info().
		Float64("low_threshold", r.config.LowBatteryThreshold).
		Float64("critical_threshold", r.config.CriticalBatteryThreshold).
		Str("interval", time.Duration(r.config.SampleInterval).String()).
		Msg("Battery monitoring started")

	return nil
}

func (r *Resource) Release(_ context.Context) error {
	r.mu.Lock()

	if !r.started {
		r.mu.Unlock()
		return nil
	}

	close(r.stop)
	r.started = false
	r.mu.Unlock()

	r.done.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.events.Close()
	r.current = nil

	r.logger.Info().Msg("Battery monitoring stopped")

	return nil
}

// run samples on the configured interval until Release. The timer is re-armed
// each pass so configuration updates take effect on the next tick.
func (r *Resource) run() {
	defer r.done.Done()

	for {
		r.mu.RLock()
		interval := time.Duration(r.config.SampleInterval)
		stop := r.stop
		r.mu.RUnlock()

		timer := time.NewTimer(interval)

		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)

		if _, err := r.Sample(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Battery sample failed")
		}

		cancel()
	}
}

// Sample takes one telemetry reading immediately, records it, and evaluates
// threshold crossings.
func (r *Resource) Sample(ctx context.Context) (models.BatteryState, error) {
	r.mu.RLock()

	if !r.started {
		r.mu.RUnlock()
		return models.BatteryState{}, errResourceNotStarted
	}

	if !r.config.Enabled {
		r.mu.RUnlock()
		return models.BatteryState{}, fmt.Errorf("%w: battery", capability.ErrFeatureDisabled)
	}

	sampler := r.sampler
	r.mu.RUnlock()

	start := r.now()

	state, err := sampler(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return models.BatteryState{}, errResourceNotStarted
	}

	r.metrics.Record("sample", r.now().Sub(start), err)

	if err != nil {
		return models.BatteryState{}, fmt.Errorf("battery sample failed: %w", err)
	}

	if state.SampleID == "" {
		state.SampleID = uuid.New().String()
	}

	if state.SampledAt.IsZero() {
		state.SampledAt = r.now()
	}

	r.current = &state
	r.history.AppendAt(state, state.SampledAt)
	r.publishLocked("battery.sample", state)
	r.evaluateThresholdsLocked(state)

	return state, nil
}

// CurrentState returns the most recent sample.
func (r *Resource) CurrentState() (models.BatteryState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started {
		return models.BatteryState{}, errResourceNotStarted
	}

	if r.current == nil {
		return models.BatteryState{}, ErrNoSample
	}

	return *r.current, nil
}

// History returns recorded samples, oldest first, bounded by count and age.
func (r *Resource) History() []models.BatteryState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started || r.history == nil {
		return nil
	}

	return r.history.Items()
}

func (r *Resource) Metrics() models.MetricsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started || r.metrics == nil {
		return models.MetricsSnapshot{Capability: CapabilityName}
	}

	return r.metrics.Snapshot()
}

func (r *Resource) Events() *eventbus.Bus[models.CapabilityEvent] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.events
}

func (r *Resource) Configuration() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.config
}

// UpdateConfiguration swaps in a new validated configuration. The monitoring
// loop picks up a changed interval on its next pass.
func (r *Resource) UpdateConfiguration(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = cfg

	return nil
}

// evaluateThresholdsLocked compares the sample's severity with the previous
// one and emits an alert only on the edge.
func (r *Resource) evaluateThresholdsLocked(state models.BatteryState) {
	next := severityNone

	switch {
	case state.Level <= r.config.CriticalBatteryThreshold:
		next = severityCritical
	case state.Level <= r.config.LowBatteryThreshold:
		next = severityLow
	}

	prev := r.severity
	if next == prev {
		return
	}

	r.severity = next

	alert := models.BatteryAlert{
		AlertID:  uuid.New().String(),
		Level:    state.Level,
		RaisedAt: state.SampledAt,
	}

	switch next {
	case severityCritical:
		alert.Kind = models.BatteryAlertCritical
		alert.Threshold = r.config.CriticalBatteryThreshold
	case severityLow:
		alert.Kind = models.BatteryAlertLow
		alert.Threshold = r.config.LowBatteryThreshold
	case severityNone:
		alert.Kind = models.BatteryAlertRecover
		alert.Threshold = r.config.LowBatteryThreshold
	}

	r.publishAlertLocked(alert)

	r.logger.Warn().
		Str("kind", string(alert.Kind)).
		Float64("level", alert.Level).
		Float64("threshold", alert.Threshold).
		Msg("Battery alert")
}

func (r *Resource) publishLocked(kind string, state models.BatteryState) {
	if r.events == nil {
		return
	}

	r.events.Publish(models.CapabilityEvent{
		EventID:    uuid.New().String(),
		Capability: CapabilityName,
		Kind:       kind,
		Timestamp:  r.now(),
		Data:       state,
	})
}

func (r *Resource) publishAlertLocked(alert models.BatteryAlert) {
	if r.events == nil {
		return
	}

	r.events.Publish(models.CapabilityEvent{
		EventID:    uuid.New().String(),
		Capability: CapabilityName,
		Kind:       "battery." + string(alert.Kind),
		Timestamp:  r.now(),
		Data:       alert,
	})
}
