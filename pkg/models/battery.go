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

type PowerSource string

const (
	PowerSourceBattery  PowerSource = "battery"
	PowerSourceExternal PowerSource = "external"
	PowerSourceUnknown  PowerSource = "unknown"
)

// BatteryState is a single telemetry sample. Level is normalized to [0,1].
type BatteryState struct {
	SampleID     string      `json:"sample_id"`
	Level        float64     `json:"level"`
	Source       PowerSource `json:"source"`
	Charging     bool        `json:"charging"`
	TemperatureC float64     `json:"temperature_c,omitempty"`
	LoadAvg      float64     `json:"load_avg,omitempty"`
	HostUptime   uint64      `json:"host_uptime_s,omitempty"`
	SampledAt    time.Time   `json:"sampled_at"`
}

type BatteryAlertKind string

const (
	BatteryAlertLow      BatteryAlertKind = "low"
	BatteryAlertCritical BatteryAlertKind = "critical"
	BatteryAlertRecover  BatteryAlertKind = "recovered"
)

// BatteryAlert is emitted on threshold crossings. Crossings are
// edge-triggered: staying below a threshold does not repeat the alert.
type BatteryAlert struct {
	AlertID   string           `json:"alert_id"`
	Kind      BatteryAlertKind `json:"kind"`
	Level     float64          `json:"level"`
	Threshold float64          `json:"threshold"`
	RaisedAt  time.Time        `json:"raised_at"`
}
