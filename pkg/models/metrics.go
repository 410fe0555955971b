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

// MetricsSnapshot is an immutable view of a capability's operation counters.
// SuccessRate is always derived from the raw counters at snapshot time; it is
// never stored independently.
type MetricsSnapshot struct {
	Capability   string           `json:"capability"`
	TotalCount   int64            `json:"total_count"`
	SuccessCount int64            `json:"success_count"`
	FailureCount int64            `json:"failure_count"`
	SuccessRate  float64          `json:"success_rate"`
	AvgLatency   time.Duration    `json:"avg_latency_ns"`
	PerCategory  map[string]int64 `json:"per_category,omitempty"`
	LastUpdated  time.Time        `json:"last_updated"`
}
