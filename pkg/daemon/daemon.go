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

// Package daemon assembles the capability wrappers into one process: it
// activates the capabilities, merges their event streams, samples their
// metrics, and bridges events to NATS and WebSocket clients.
package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/capability/battery"
	"github.com/quaylabs/peripheral/pkg/capability/camera"
	"github.com/quaylabs/peripheral/pkg/capability/continuity"
	"github.com/quaylabs/peripheral/pkg/capability/intents"
	"github.com/quaylabs/peripheral/pkg/capability/sharing"
	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/feed"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/metrics"
	"github.com/quaylabs/peripheral/pkg/models"
	"github.com/quaylabs/peripheral/pkg/natsutil"
)

const bridgeBuffer = 128

// eventSource is any capability exposing an event bus; all five do.
type eventSource interface {
	Events() (*eventbus.Bus[models.CapabilityEvent], error)
}

// Daemon owns the capability set and the plumbing between them and the
// outside world. It implements lifecycle.Service.
type Daemon struct {
	config Config
	log    logger.Logger
	logger zerolog.Logger

	capabilities []capability.Capability
	manager      *metrics.Manager
	merged       *eventbus.Bus[models.CapabilityEvent]

	feedSrv   *feed.Server
	natsConn  *nats.Conn
	publisher *natsutil.EventPublisher

	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds the daemon and its five capabilities. Per-capability overrides
// are merged over defaults, then adjusted for the configured environment.
func New(cfg Config, log logger.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	env := cfg.Environment

	sharingCap, err := sharing.New(
		sharing.DefaultConfig().Merged(cfg.Capabilities.Sharing).AdjustedFor(env), log)
	if err != nil {
		return nil, err
	}

	batteryCap, err := battery.New(
		battery.DefaultConfig().Merged(cfg.Capabilities.Battery).AdjustedFor(env), log)
	if err != nil {
		return nil, err
	}

	cameraCap, err := camera.New(
		camera.DefaultConfig().Merged(cfg.Capabilities.Camera).AdjustedFor(env), log)
	if err != nil {
		return nil, err
	}

	continuityCap, err := continuity.New(
		continuity.DefaultConfig().Merged(cfg.Capabilities.Continuity).AdjustedFor(env), log)
	if err != nil {
		return nil, err
	}

	intentsCap, err := intents.New(
		intents.DefaultConfig().Merged(cfg.Capabilities.Intents).AdjustedFor(env), log)
	if err != nil {
		return nil, err
	}

	return &Daemon{
		config: cfg,
		log:    log,
		logger: log.WithComponent("daemon"),
		capabilities: []capability.Capability{
			sharingCap, batteryCap, cameraCap, continuityCap, intentsCap,
		},
		manager: metrics.NewManager(cfg.Metrics),
	}, nil
}

// Capabilities returns the daemon's capability set.
func (d *Daemon) Capabilities() []capability.Capability {
	return d.capabilities
}

// Events returns the merged event bus. It is non-nil only while the daemon
// is running.
func (d *Daemon) Events() *eventbus.Bus[models.CapabilityEvent] {
	return d.merged
}

// MetricsManager exposes the retained metrics windows.
func (d *Daemon) MetricsManager() *metrics.Manager {
	return d.manager
}

// Start activates the capabilities and wires the event and metrics
// plumbing. A capability that fails to activate stays unavailable and is
// logged; it does not abort the daemon.
func (d *Daemon) Start(ctx context.Context) error {
	d.stop = make(chan struct{})
	d.merged = eventbus.New[models.CapabilityEvent]()

	for _, c := range d.capabilities {
		if err := c.Activate(ctx); err != nil {
			d.logger.Error().
				Err(err).
				Str("capability", c.Name()).
				Msg("Capability activation failed")

			continue
		}

		d.bridgeEvents(c)

		d.logger.Info().Str("capability", c.Name()).Msg("Capability activated")
	}

	if err := d.startNATS(ctx); err != nil {
		// The bridge is best effort: the daemon serves local clients
		// even when the broker is unreachable.
		d.logger.Error().Err(err).Msg("NATS bridge unavailable")
	}

	if d.config.Feed != nil {
		d.feedSrv = feed.NewServer(*d.config.Feed, d.merged, d.logger)

		if err := d.feedSrv.Start(ctx); err != nil {
			return err
		}
	}

	if d.config.Metrics.Enabled {
		d.wg.Add(1)

		go d.collectMetrics()
	}

	return nil
}

// Stop tears everything down in reverse order: external surfaces first,
// then the capabilities.
func (d *Daemon) Stop(ctx context.Context) error {
	if d.feedSrv != nil {
		if err := d.feedSrv.Stop(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Feed shutdown failed")
		}
	}

	if d.stop != nil {
		close(d.stop)
	}

	d.wg.Wait()

	for i := len(d.capabilities) - 1; i >= 0; i-- {
		c := d.capabilities[i]

		if !c.IsAvailable() {
			continue
		}

		if err := c.Deactivate(ctx); err != nil {
			d.logger.Error().
				Err(err).
				Str("capability", c.Name()).
				Msg("Capability deactivation failed")
		}
	}

	if d.natsConn != nil {
		d.natsConn.Close()
		d.natsConn = nil
	}

	if d.merged != nil {
		_ = d.merged.Close()
	}

	return nil
}

// Snapshots reports the current state of every capability together with its
// latest metrics.
func (d *Daemon) Snapshots() []models.CapabilitySnapshot {
	out := make([]models.CapabilitySnapshot, 0, len(d.capabilities))
	now := time.Now()

	for _, c := range d.capabilities {
		snap := models.CapabilitySnapshot{
			Capability:  c.Name(),
			State:       c.State(),
			Enabled:     c.IsAvailable(),
			LastChecked: now,
		}

		if latest, ok := d.manager.Latest(c.Name()); ok {
			snap.Metrics = latest
		}

		out = append(out, snap)
	}

	return out
}

// bridgeEvents forwards one capability's events onto the merged bus and, if
// configured, to NATS.
func (d *Daemon) bridgeEvents(c capability.Capability) {
	src, ok := c.(eventSource)
	if !ok {
		return
	}

	bus, err := src.Events()
	if err != nil || bus == nil {
		return
	}

	ch, err := bus.Subscribe("daemon-"+c.Name(), bridgeBuffer)
	if err != nil {
		d.logger.Error().Err(err).Str("capability", c.Name()).Msg("Event bridge subscription failed")
		return
	}

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		for {
			select {
			case <-d.stop:
				return
			case ev, open := <-ch:
				if !open {
					return
				}

				d.merged.Publish(ev)
				d.publishNATS(ev)
			}
		}
	}()
}

func (d *Daemon) startNATS(ctx context.Context) error {
	if d.config.NATS == nil {
		return nil
	}

	nc, err := natsutil.ConnectWithSecurity(ctx, d.config.NATS.URL, d.config.NATS.Security, d.logger)
	if err != nil {
		return err
	}

	pub, err := natsutil.CreateEventPublisherWithDomain(
		ctx, nc, d.config.NATS.Domain, d.config.NATS.Stream, d.config.NATS.Subjects, d.logger)
	if err != nil {
		nc.Close()
		return err
	}

	d.natsConn = nc
	d.publisher = pub

	return nil
}

func (d *Daemon) publishNATS(ev models.CapabilityEvent) {
	if d.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := d.publisher.PublishCapabilityEvent(ctx, ev); err != nil {
		d.logger.Warn().Err(err).Str("event_id", ev.EventID).Msg("NATS publish failed")
	}
}

// collectMetrics periodically folds each capability's metrics snapshot into
// the retention window.
func (d *Daemon) collectMetrics() {
	defer d.wg.Done()

	interval := time.Duration(d.config.MetricsInterval)
	ticker := time.NewTicker(interval)

	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.observeAll()
		}
	}
}

type metricsSource interface {
	Metrics() (models.MetricsSnapshot, error)
}

func (d *Daemon) observeAll() {
	for _, c := range d.capabilities {
		src, ok := c.(metricsSource)
		if !ok || !c.IsAvailable() {
			continue
		}

		snap, err := src.Metrics()
		if err != nil {
			continue
		}

		d.manager.Observe(snap)
	}
}
