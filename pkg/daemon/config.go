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

package daemon

import (
	"time"

	"github.com/quaylabs/peripheral/pkg/capability/battery"
	"github.com/quaylabs/peripheral/pkg/capability/camera"
	"github.com/quaylabs/peripheral/pkg/capability/continuity"
	"github.com/quaylabs/peripheral/pkg/capability/intents"
	"github.com/quaylabs/peripheral/pkg/capability/sharing"
	"github.com/quaylabs/peripheral/pkg/feed"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/metrics"
	"github.com/quaylabs/peripheral/pkg/models"
)

// NATSConfig wires the daemon's event bridge to a JetStream deployment.
type NATSConfig struct {
	URL      string                 `json:"url"`
	Domain   string                 `json:"domain,omitempty"`
	Stream   string                 `json:"stream,omitempty"`
	Subjects []string               `json:"subjects,omitempty"`
	Security *models.SecurityConfig `json:"security,omitempty"`
}

// CapabilityConfigs carries per-capability overrides. Nil entries keep the
// capability's defaults.
type CapabilityConfigs struct {
	Sharing    *sharing.Config    `json:"sharing,omitempty"`
	Battery    *battery.Config    `json:"battery,omitempty"`
	Camera     *camera.Config     `json:"camera,omitempty"`
	Continuity *continuity.Config `json:"continuity,omitempty"`
	Intents    *intents.Config    `json:"intents,omitempty"`
}

// Config is the daemon's top-level configuration, loaded from JSON with
// environment overlays.
type Config struct {
	Logging      *logger.Config     `json:"logging,omitempty"`
	Environment  models.Environment `json:"environment"`
	Capabilities CapabilityConfigs  `json:"capabilities"`
	Metrics      metrics.Config     `json:"metrics"`

	// MetricsInterval is how often per-capability metrics snapshots are
	// collected into the retention window.
	MetricsInterval models.Duration `json:"metrics_interval"`

	NATS *NATSConfig  `json:"nats,omitempty"`
	Feed *feed.Config `json:"feed,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Metrics: metrics.Config{
			Enabled:         true,
			MaxCapabilities: 16,
			Retention:       100,
			RetentionAge:    models.Duration(time.Hour),
		},
		MetricsInterval: models.Duration(15 * time.Second),
	}
}

// Validate checks the pieces the daemon assembles itself; capability
// configurations validate when the capabilities are constructed.
func (c *Config) Validate() error {
	if c.MetricsInterval <= 0 {
		c.MetricsInterval = DefaultConfig().MetricsInterval
	}

	if c.Metrics.MaxCapabilities <= 0 {
		c.Metrics = DefaultConfig().Metrics
	}

	return nil
}
