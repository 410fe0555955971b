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

// CapabilityState describes where a capability sits in its lifecycle.
// Transitions are linear and loop-free, driven only by Activate/Deactivate.
type CapabilityState int32

const (
	CapabilityStateUnknown CapabilityState = iota
	CapabilityStateInitializing
	CapabilityStateAvailable
	CapabilityStateUnavailable
	CapabilityStateTerminating
)

func (s CapabilityState) String() string {
	switch s {
	case CapabilityStateInitializing:
		return "initializing"
	case CapabilityStateAvailable:
		return "available"
	case CapabilityStateUnavailable:
		return "unavailable"
	case CapabilityStateTerminating:
		return "terminating"
	case CapabilityStateUnknown:
		return "unknown"
	default:
		return "unknown"
	}
}

// ThermalState mirrors the host's reported thermal pressure.
type ThermalState int32

const (
	ThermalStateNominal ThermalState = iota
	ThermalStateFair
	ThermalStateSerious
	ThermalStateCritical
)

// Environment captures the host conditions a configuration may be adjusted
// for. It is a plain value: AdjustedFor implementations must be pure.
type Environment struct {
	LowPowerMode bool         `json:"low_power_mode"`
	DebugMode    bool         `json:"debug_mode"`
	ThermalState ThermalState `json:"thermal_state"`
}

// CapabilityEvent is the envelope every capability pushes onto its event bus.
// Kind is capability-specific ("transfer.completed", "battery.critical", ...);
// Data carries the immutable domain record the event is about.
type CapabilityEvent struct {
	EventID    string         `json:"event_id"`
	Capability string         `json:"capability"`
	Kind       string         `json:"kind"`
	State      string         `json:"state,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       any            `json:"data,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// CapabilitySnapshot reflects the most recent observed state of a capability,
// as reported by the daemon's status surface.
type CapabilitySnapshot struct {
	Capability  string          `json:"capability"`
	State       CapabilityState `json:"state"`
	Enabled     bool            `json:"enabled"`
	LastChecked time.Time       `json:"last_checked"`
	LastSuccess *time.Time      `json:"last_success,omitempty"`
	LastFailure *time.Time      `json:"last_failure,omitempty"`
	Metrics     MetricsSnapshot `json:"metrics"`
}

// CloudEvent is the CloudEvents 1.0 envelope used when bridging capability
// events onto a JetStream subject.
type CloudEvent struct {
	SpecVersion     string     `json:"specversion"`
	ID              string     `json:"id"`
	Source          string     `json:"source"`
	Type            string     `json:"type"`
	DataContentType string     `json:"datacontenttype"`
	Subject         string     `json:"subject"`
	Time            *time.Time `json:"time,omitempty"`
	Data            any        `json:"data,omitempty"`
}

// SecurityConfig carries the TLS material used for NATS connections.
type SecurityConfig struct {
	Mode       string    `json:"mode"`
	ServerName string    `json:"server_name,omitempty"`
	TLS        TLSConfig `json:"tls"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
	CAFile   string `json:"ca_file,omitempty"`
}
