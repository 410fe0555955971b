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
	"fmt"
	"time"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Config describes the camera capture capability. PhotoQuality is a
// normalized compression quality in (0,1].
type Config struct {
	Enabled          bool              `json:"enabled"`
	PhotoResolution  models.Resolution `json:"photo_resolution"`
	VideoResolution  models.Resolution `json:"video_resolution"`
	FrameRate        int               `json:"frame_rate"`
	PhotoQuality     float64           `json:"photo_quality"`
	MaxVideoDuration models.Duration   `json:"max_video_duration"`
	HistoryLimit     int               `json:"history_limit"`
	HistoryMaxAge    models.Duration   `json:"history_max_age"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		PhotoResolution:  models.ResolutionHigh,
		VideoResolution:  models.ResolutionHigh,
		FrameRate:        30,
		PhotoQuality:     0.85,
		MaxVideoDuration: models.Duration(10 * time.Minute),
		HistoryLimit:     50,
		HistoryMaxAge:    models.Duration(24 * time.Hour),
	}
}

func (c Config) Validate() error {
	switch {
	case c.PhotoResolution < models.ResolutionLow || c.PhotoResolution > models.ResolutionUltra:
		return fmt.Errorf("%w: unknown photo_resolution %d", capability.ErrInvalidConfiguration, c.PhotoResolution)
	case c.VideoResolution < models.ResolutionLow || c.VideoResolution > models.ResolutionUltra:
		return fmt.Errorf("%w: unknown video_resolution %d", capability.ErrInvalidConfiguration, c.VideoResolution)
	case c.FrameRate <= 0:
		return fmt.Errorf("%w: frame_rate must be positive", capability.ErrInvalidConfiguration)
	case c.PhotoQuality <= 0 || c.PhotoQuality > 1:
		return fmt.Errorf("%w: photo_quality must be in (0,1]", capability.ErrInvalidConfiguration)
	case c.MaxVideoDuration <= 0:
		return fmt.Errorf("%w: max_video_duration must be positive", capability.ErrInvalidConfiguration)
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

// AdjustedFor lowers resolution, frame rate, and quality under constrained
// environments. Resolution never drops below the low tier and quality never
// below 0.5.
func (c Config) AdjustedFor(env models.Environment) Config {
	out := c

	if env.LowPowerMode || env.ThermalState >= models.ThermalStateSerious {
		out.PhotoResolution = lowerTier(c.PhotoResolution)
		out.VideoResolution = lowerTier(c.VideoResolution)
		out.FrameRate = max(15, c.FrameRate/2)
		out.PhotoQuality = max(0.5, c.PhotoQuality-0.2)

		if d := time.Duration(c.MaxVideoDuration) / 2; d > 0 {
			out.MaxVideoDuration = models.Duration(d)
		}
	}

	if env.DebugMode {
		out.HistoryLimit = max(10, c.HistoryLimit/2)
	}

	return out
}

func lowerTier(r models.Resolution) models.Resolution {
	if r > models.ResolutionLow {
		return r - 1
	}

	return r
}
