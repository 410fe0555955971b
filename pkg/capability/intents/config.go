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

package intents

import (
	"fmt"
	"time"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Config describes the voice-assistant intents capability. Donation rate
// limiting mirrors the platform's own throttling of prediction donations.
type Config struct {
	Enabled               bool            `json:"enabled"`
	MaxRegisteredIntents  int             `json:"max_registered_intents"`
	DonationRatePerMinute int             `json:"donation_rate_per_minute"`
	DonationBurst         int             `json:"donation_burst"`
	SuggestionLimit       int             `json:"suggestion_limit"`
	HistoryLimit          int             `json:"history_limit"`
	HistoryMaxAge         models.Duration `json:"history_max_age"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:               true,
		MaxRegisteredIntents:  50,
		DonationRatePerMinute: 60,
		DonationBurst:         10,
		SuggestionLimit:       5,
		HistoryLimit:          200,
		HistoryMaxAge:         models.Duration(24 * time.Hour),
	}
}

func (c Config) Validate() error {
	switch {
	case c.MaxRegisteredIntents <= 0:
		return fmt.Errorf("%w: max_registered_intents must be positive", capability.ErrInvalidConfiguration)
	case c.DonationRatePerMinute <= 0:
		return fmt.Errorf("%w: donation_rate_per_minute must be positive", capability.ErrInvalidConfiguration)
	case c.DonationBurst <= 0:
		return fmt.Errorf("%w: donation_burst must be positive", capability.ErrInvalidConfiguration)
	case c.SuggestionLimit <= 0:
		return fmt.Errorf("%w: suggestion_limit must be positive", capability.ErrInvalidConfiguration)
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

// AdjustedFor lowers the donation rate under low-power mode and shortens
// retention in debug mode.
func (c Config) AdjustedFor(env models.Environment) Config {
	out := c

	if env.LowPowerMode {
		out.DonationRatePerMinute = max(1, c.DonationRatePerMinute/2)
		out.DonationBurst = max(1, c.DonationBurst/2)
	}

	if env.DebugMode {
		out.HistoryMaxAge = models.Duration(max(time.Minute, time.Duration(c.HistoryMaxAge)/2))
	}

	return out
}
