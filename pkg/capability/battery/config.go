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
	"fmt"
	"time"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Config describes the battery telemetry capability. Thresholds are
// normalized battery levels in (0,1].
type Config struct {
	Enabled                  bool            `json:"enabled"`
	LowBatteryThreshold      float64         `json:"low_battery_threshold"`
	CriticalBatteryThreshold float64         `json:"critical_battery_threshold"`
	SampleInterval           models.Duration `json:"sample_interval"`
	HistoryLimit             int             `json:"history_limit"`
	HistoryMaxAge            models.Duration `json:"history_max_age"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:                  true,
		LowBatteryThreshold:      0.20,
		CriticalBatteryThreshold: 0.05,
		SampleInterval:           models.Duration(30 * time.Second),
		HistoryLimit:             240,
		HistoryMaxAge:            models.Duration(2 * time.Hour),
	}
}

func (c Config) Validate() error {
	switch {
	case c.LowBatteryThreshold <= 0 || c.LowBatteryThreshold > 1:
		return fmt.Errorf("%w: low_battery_threshold must be in (0,1]", capability.ErrInvalidConfiguration)
	case c.CriticalBatteryThreshold <= 0 || c.CriticalBatteryThreshold > 1:
		return fmt.Errorf("%w: critical_battery_threshold must be in (0,1]", capability.ErrInvalidConfiguration)
	case c.CriticalBatteryThreshold >= c.LowBatteryThreshold:
		return fmt.Errorf("%w: critical_battery_threshold must be below low_battery_threshold",
			capability.ErrInvalidConfiguration)
	case c.SampleInterval <= 0:
		return fmt.Errorf("%w: sample_interval must be positive", capability.ErrInvalidConfiguration)
	case c.HistoryLimit <= 0:
		return fmt.Errorf("%w: history_limit must be positive", capability.ErrInvalidConfiguration)
	case c.HistoryMaxAge <= 0:
		return fmt.Errorf("%w: history_max_age must be positive", capability.ErrInvalidConfiguration)
	default:
		return nil
	}
}

// Merged returns a right-biased override: every field of other replaces the
// receiver. A nil other leaves the receiver unchanged.
func (c Config) Merged(other *Config) Config {
	if other == nil {
		return c
	}

	return *other
}

// AdjustedFor lowers the sampling rate under low-power mode and shortens
// retention in debug mode. Thresholds are left alone: alerting still has to
// fire when the battery is draining.
func (c Config) AdjustedFor(env models.Environment) Config {
	out := c

	if env.LowPowerMode {
		out.SampleInterval = models.Duration(2 * time.Duration(c.SampleInterval))
	}

	if env.DebugMode {
		out.HistoryMaxAge = models.Duration(max(time.Minute, time.Duration(c.HistoryMaxAge)/2))
	}

	return out
}
