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

package models

import "time"

// Resolution is an ordered enum: comparisons against it express "at most" /
// "at least" semantics when configurations are adjusted for the environment.
type Resolution int32

const (
	ResolutionLow Resolution = iota
	ResolutionMedium
	ResolutionHigh
	ResolutionUltra
)

func (r Resolution) String() string {
	switch r {
	case ResolutionLow:
		return "low"
	case ResolutionMedium:
		return "medium"
	case ResolutionHigh:
		return "high"
	case ResolutionUltra:
		return "ultra"
	default:
		return "unknown"
	}
}

// Pixels returns the nominal pixel count of the resolution tier.
func (r Resolution) Pixels() int64 {
	switch r {
	case ResolutionLow:
		return 640 * 480
	case ResolutionMedium:
		return 1280 * 720
	case ResolutionHigh:
		return 1920 * 1080
	case ResolutionUltra:
		return 3840 * 2160
	default:
		return 0
	}
}

type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

// CaptureResult records one completed photo or video capture.
type CaptureResult struct {
	CaptureID  string        `json:"capture_id"`
	Media      MediaType     `json:"media"`
	Resolution Resolution    `json:"resolution"`
	SizeBytes  int64         `json:"size_bytes"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	CapturedAt time.Time     `json:"captured_at"`
}
