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

// Peer is a device discovered for peer-to-peer sharing.
type Peer struct {
	PeerID       string    `json:"peer_id"`
	Name         string    `json:"name"`
	DeviceModel  string    `json:"device_model,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

type TransferStatus string

const (
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusActive    TransferStatus = "active"
	TransferStatusCompleted TransferStatus = "completed"
	TransferStatusFailed    TransferStatus = "failed"
	TransferStatusCanceled  TransferStatus = "canceled"
	TransferStatusTimedOut  TransferStatus = "timed_out"
)

// terminal reports whether the status admits no further transitions.
func (s TransferStatus) Terminal() bool {
	switch s {
	case TransferStatusCompleted, TransferStatusFailed, TransferStatusCanceled, TransferStatusTimedOut:
		return true
	case TransferStatusPending, TransferStatusActive:
		return false
	default:
		return false
	}
}

type TransferDirection string

const (
	TransferDirectionOutgoing TransferDirection = "outgoing"
	TransferDirectionIncoming TransferDirection = "incoming"
)

// Transfer is an immutable snapshot of a single file transfer. The sharing
// resource replaces the stored value wholesale on every status change.
type Transfer struct {
	TransferID string            `json:"transfer_id"`
	PeerID     string            `json:"peer_id"`
	FileName   string            `json:"file_name"`
	SizeBytes  int64             `json:"size_bytes"`
	SentBytes  int64             `json:"sent_bytes"`
	Direction  TransferDirection `json:"direction"`
	Status     TransferStatus    `json:"status"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
}
