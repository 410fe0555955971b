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

type ActivityStatus string

const (
	ActivityStatusActive      ActivityStatus = "active"
	ActivityStatusSynced      ActivityStatus = "synced"
	ActivityStatusInvalidated ActivityStatus = "invalidated"
	ActivityStatusExpired     ActivityStatus = "expired"
)

// Activity is a continuity (handoff) record describing user-facing state
// that can resume on another device.
type Activity struct {
	ActivityID   string         `json:"activity_id"`
	ActivityType string         `json:"activity_type"`
	Title        string         `json:"title"`
	Payload      map[string]any `json:"payload,omitempty"`
	Status       ActivityStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	SyncedAt     *time.Time     `json:"synced_at,omitempty"`
}
