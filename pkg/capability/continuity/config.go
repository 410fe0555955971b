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
	"fmt"
	"time"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Config describes the cross-device continuity (handoff) capability.
type Config struct {
	Enabled       bool            `json:"enabled"`
	MaxActivities int             `json:"max_activities"`
	SyncTimeout   models.Duration `json:"sync_timeout"`
	ActivityTTL   models.Duration `json:"activity_ttl"`
	HistoryLimit  int             `json:"history_limit"`
	HistoryMaxAge models.Duration `json:"history_max_age"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		MaxActivities: 10,
		SyncTimeout:   models.Duration(5 * time.Second),
		ActivityTTL:   models.Duration(30 * time.Minute),
		HistoryLimit:  100,
		HistoryMaxAge: models.Duration(24 * time.Hour),
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxActivities <= 0:
		return fmt.Errorf("%w: max_activities must be positive", capability.ErrInvalidConfiguration)
	case c.SyncTimeout <= 0:
		return fmt.Errorf("%w: sync_timeout must be positive", capability.ErrInvalidConfiguration)
	case c.ActivityTTL <= 0:
		return fmt.Errorf("%w: activity_ttl must be positive", capability.ErrInvalidConfiguration)
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

// AdjustedFor tightens activity limits under low-power mode and shortens
// retention in debug mode.
func (c Config) AdjustedFor(env models.Environment) Config {
	out := c

	if env.LowPowerMode {
		out.MaxActivities = max(1, c.MaxActivities/2)

		if d := time.Duration(c.ActivityTTL) / 2; d > 0 {
			out.ActivityTTL = models.Duration(d)
		}
	}

	if env.DebugMode {
		out.HistoryMaxAge = models.Duration(max(time.Minute, time.Duration(c.HistoryMaxAge)/2))
	}

	return out
}
