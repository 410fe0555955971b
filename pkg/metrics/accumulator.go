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

// Package metrics tracks per-capability operation counters.
package metrics

import (
	"sync"
	"time"

	"github.com/quaylabs/peripheral/pkg/models"
)

// Accumulator keeps incremental counters for one capability. Derived values
// (success rate, average latency) are computed at snapshot time from the raw
// counters; they are never stored.
type Accumulator struct {
	mu           sync.Mutex
	capability   string
	total        int64
	successes    int64
	failures     int64
	totalLatency time.Duration
	perCategory  map[string]int64
	lastUpdated  time.Time
}

func NewAccumulator(capability string) *Accumulator {
	return &Accumulator{
		capability:  capability,
		perCategory: make(map[string]int64),
	}
}

// Record counts one operation outcome under the given category.
func (a *Accumulator) Record(category string, latency time.Duration, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++

	if err != nil {
		a.failures++
	} else {
		a.successes++
	}

	a.totalLatency += latency

	if category != "" {
		a.perCategory[category]++
	}

	a.lastUpdated = time.Now()
}

// Snapshot returns an immutable view. SuccessRate is 0 when no operations
// have been recorded.
func (a *Accumulator) Snapshot() models.MetricsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := models.MetricsSnapshot{
		Capability:   a.capability,
		TotalCount:   a.total,
		SuccessCount: a.successes,
		FailureCount: a.failures,
		LastUpdated:  a.lastUpdated,
	}

	if a.total > 0 {
		snap.SuccessRate = float64(a.successes) / float64(a.total)
		snap.AvgLatency = a.totalLatency / time.Duration(a.total)
	}

	if len(a.perCategory) > 0 {
		snap.PerCategory = make(map[string]int64, len(a.perCategory))
		for k, v := range a.perCategory {
			snap.PerCategory[k] = v
		}
	}

	return snap
}

// Reset zeroes every counter. Used when a resource is released.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total = 0
	a.successes = 0
	a.failures = 0
	a.totalLatency = 0
	a.perCategory = make(map[string]int64)
	a.lastUpdated = time.Time{}
}
