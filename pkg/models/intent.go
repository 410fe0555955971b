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

type IntentCategory string

const (
	IntentCategoryMessaging IntentCategory = "messaging"
	IntentCategoryMedia     IntentCategory = "media"
	IntentCategoryWorkout   IntentCategory = "workout"
	IntentCategoryPayments  IntentCategory = "payments"
	IntentCategoryShortcut  IntentCategory = "shortcut"
)

// KnownIntentCategory reports whether the category is one the framework
// accepts for registration.
func KnownIntentCategory(c IntentCategory) bool {
	switch c {
	case IntentCategoryMessaging, IntentCategoryMedia, IntentCategoryWorkout,
		IntentCategoryPayments, IntentCategoryShortcut:
		return true
	default:
		return false
	}
}

// Intent is a registered assistant intent definition.
type Intent struct {
	IntentID     string         `json:"intent_id"`
	Name         string         `json:"name"`
	Category     IntentCategory `json:"category"`
	Phrase       string         `json:"phrase,omitempty"`
	RegisteredAt time.Time      `json:"registered_at"`
}

// IntentDonation records one usage donation made to the platform's
// prediction system.
type IntentDonation struct {
	DonationID string         `json:"donation_id"`
	IntentID   string         `json:"intent_id"`
	Parameters map[string]any `json:"parameters,omitempty"`
	DonatedAt  time.Time      `json:"donated_at"`
}

// IntentPrediction ranks an intent by observed donation volume.
type IntentPrediction struct {
	IntentID   string    `json:"intent_id"`
	Name       string    `json:"name"`
	Score      float64   `json:"score"`
	Donations  int64     `json:"donations"`
	LastUsedAt time.Time `json:"last_used_at"`
}
