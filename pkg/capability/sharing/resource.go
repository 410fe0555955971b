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

package sharing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/history"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/metrics"
	"github.com/quaylabs/peripheral/pkg/models"
)

const CapabilityName = "sharing"

var (
	ErrFileTooLarge       = errors.New("file exceeds maximum transfer size")
	ErrInvalidFileSize    = errors.New("file size must be positive")
	ErrTransferFinished   = errors.New("transfer already finished")
	errResourceNotStarted = errors.New("sharing resource not started")
)

// DiscoverFunc locates nearby peers. The default implementation simulates
// discovery; production builds inject the platform browser.
type DiscoverFunc func(ctx context.Context) ([]models.Peer, error)

// Resource owns the live state of the sharing capability: known peers,
// in-flight transfers and their timeout timers, the transfer history ring,
// metrics, and the event bus. All mutation happens under mu.
type Resource struct {
	mu       sync.RWMutex
	config   Config
	logger   zerolog.Logger
	discover DiscoverFunc
	started  bool

	peers     map[string]models.Peer
	transfers map[string]models.Transfer
	timers    map[string]*time.Timer

	history *history.Ring[models.Transfer]
	metrics *metrics.Accumulator
	events  *eventbus.Bus[models.CapabilityEvent]

	now func() time.Time
}

func NewResource(cfg Config, log logger.Logger) (*Resource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Resource{
		config:   cfg,
		logger:   log.WithComponent(CapabilityName),
		discover: simulatedDiscovery,
		now:      time.Now,
	}, nil
}

// SetDiscoverFunc replaces the peer discovery implementation. It must be
// called before Allocate.
func (r *Resource) SetDiscoverFunc(fn DiscoverFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.discover = fn
}

func (r *Resource) Allocate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.peers = make(map[string]models.Peer)
	r.transfers = make(map[string]models.Transfer)
	r.timers = make(map[string]*time.Timer)
	r.history = history.NewRing[models.Transfer](r.config.HistoryLimit, time.Duration(r.config.HistoryMaxAge))
	r.metrics = metrics.NewAccumulator(CapabilityName)
	r.events = eventbus.New[models.CapabilityEvent]()
	r.started = true

	r.logger.Info().
		Int("max_concurrent", r.config.MaxConcurrentTransfers).
		Int64("max_file_size", r.config.MaxFileSizeBytes).
		Msg("Sharing resource allocated")

	return nil
}

func (r *Resource) Release(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	for id, t := range r.transfers {
		if t.Status.Terminal() {
			continue
		}

		r.finishLocked(id, models.TransferStatusCanceled, "resource released")
	}

	for _, timer := range r.timers {
		timer.Stop()
	}

	_ = r.events.Close()

	r.peers = nil
	r.transfers = nil
	r.timers = nil
	r.started = false

	r.logger.Info().Msg("Sharing resource released")

	return nil
}

// DiscoverPeers scans for nearby devices, bounded by the configured
// discovery timeout. Discovered peers are remembered so transfers can be
// addressed to them.
func (r *Resource) DiscoverPeers(ctx context.Context) ([]models.Peer, error) {
	r.mu.RLock()

	if !r.started {
		r.mu.RUnlock()
		return nil, errResourceNotStarted
	}

	discover := r.discover
	timeout := time.Duration(r.config.DiscoveryTimeout)
	r.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()

	peers, err := discover(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil, errResourceNotStarted
	}

	r.metrics.Record("discovery", r.now().Sub(start), err)

	if err != nil {
		return nil, fmt.Errorf("peer discovery failed: %w", err)
	}

	for _, p := range peers {
		r.peers[p.PeerID] = p
	}

	r.logger.Debug().Int("peers", len(peers)).Msg("Peer discovery completed")

	return peers, nil
}

// SendFile starts an outgoing transfer to a previously discovered peer.
// The transfer is subject to the configured concurrency limit, maximum file
// size, and transfer timeout.
func (r *Resource) SendFile(_ context.Context, peerID, fileName string, sizeBytes int64) (models.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return models.Transfer{}, errResourceNotStarted
	}

	if !r.config.Enabled {
		return models.Transfer{}, fmt.Errorf("%w: sharing", capability.ErrFeatureDisabled)
	}

	if sizeBytes <= 0 {
		return models.Transfer{}, ErrInvalidFileSize
	}

	if sizeBytes > r.config.MaxFileSizeBytes {
		return models.Transfer{}, fmt.Errorf("%w: %d bytes exceeds limit of %d",
			ErrFileTooLarge, sizeBytes, r.config.MaxFileSizeBytes)
	}

	if _, ok := r.peers[peerID]; !ok {
		return models.Transfer{}, fmt.Errorf("%w: peer %q", capability.ErrNotFound, peerID)
	}

	if active := r.activeCountLocked(); active >= r.config.MaxConcurrentTransfers {
		return models.Transfer{}, &capability.LimitError{
			Resource: "transfers",
			Limit:    r.config.MaxConcurrentTransfers,
		}
	}

	t := models.Transfer{
		TransferID: uuid.New().String(),
		PeerID:     peerID,
		FileName:   fileName,
		SizeBytes:  sizeBytes,
		Direction:  models.TransferDirectionOutgoing,
		Status:     models.TransferStatusActive,
		StartedAt:  r.now(),
	}

	r.transfers[t.TransferID] = t
	r.armTimeoutLocked(t.TransferID)
	r.publishLocked("transfer.started", t)

	r.logger.Info().
		Str("transfer_id", t.TransferID).
		Str("peer_id", peerID).
		Str("file", fileName).
		Int64("size", sizeBytes).
		Msg("Transfer started")

	return t, nil
}

// UpdateProgress records bytes sent for an active transfer. Reaching the
// file size completes the transfer.
func (r *Resource) UpdateProgress(transferID string, sentBytes int64) (models.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.activeTransferLocked(transferID)
	if err != nil {
		return models.Transfer{}, err
	}

	if sentBytes < t.SentBytes {
		sentBytes = t.SentBytes
	}

	if sentBytes >= t.SizeBytes {
		return r.finishLocked(transferID, models.TransferStatusCompleted, ""), nil
	}

	t.SentBytes = sentBytes
	r.transfers[transferID] = t

	return t, nil
}

// CompleteTransfer marks an active transfer as completed.
func (r *Resource) CompleteTransfer(transferID string) (models.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.activeTransferLocked(transferID); err != nil {
		return models.Transfer{}, err
	}

	return r.finishLocked(transferID, models.TransferStatusCompleted, ""), nil
}

// CancelTransfer aborts an in-flight transfer. Canceling a transfer that
// already reached a terminal status is an error.
func (r *Resource) CancelTransfer(transferID string) (models.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.activeTransferLocked(transferID); err != nil {
		return models.Transfer{}, err
	}

	return r.finishLocked(transferID, models.TransferStatusCanceled, "canceled by caller"), nil
}

// FailTransfer marks an in-flight transfer as failed with the given reason.
func (r *Resource) FailTransfer(transferID, reason string) (models.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.activeTransferLocked(transferID); err != nil {
		return models.Transfer{}, err
	}

	return r.finishLocked(transferID, models.TransferStatusFailed, reason), nil
}

// Transfer returns the current snapshot of a transfer, live or historical.
func (r *Resource) Transfer(transferID string) (models.Transfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started {
		return models.Transfer{}, errResourceNotStarted
	}

	t, ok := r.transfers[transferID]
	if !ok {
		return models.Transfer{}, fmt.Errorf("%w: transfer %q", capability.ErrNotFound, transferID)
	}

	return t, nil
}

// ActiveTransfers lists non-terminal transfers ordered by start time.
func (r *Resource) ActiveTransfers() []models.Transfer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started {
		return nil
	}

	out := make([]models.Transfer, 0, len(r.transfers))

	for _, t := range r.transfers {
		if !t.Status.Terminal() {
			out = append(out, t)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })

	return out
}

// Peers lists the peers discovered so far, ordered by discovery time.
func (r *Resource) Peers() []models.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started {
		return nil
	}

	out := make([]models.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DiscoveredAt.Before(out[j].DiscoveredAt) })

	return out
}

// History returns finished transfers, oldest first, bounded by the
// configured count and age limits.
func (r *Resource) History() []models.Transfer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started || r.history == nil {
		return nil
	}

	return r.history.Items()
}

func (r *Resource) Metrics() models.MetricsSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.started || r.metrics == nil {
		return models.MetricsSnapshot{Capability: CapabilityName}
	}

	return r.metrics.Snapshot()
}

// Events exposes the capability's event bus for subscription.
func (r *Resource) Events() *eventbus.Bus[models.CapabilityEvent] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.events
}

// Configuration returns the active configuration value.
func (r *Resource) Configuration() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.config
}

// UpdateConfiguration swaps in a new validated configuration. In-flight
// transfers keep the timeout they were armed with.
func (r *Resource) UpdateConfiguration(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = cfg

	return nil
}

// activeTransferLocked fetches a transfer and rejects terminal ones.
func (r *Resource) activeTransferLocked(transferID string) (models.Transfer, error) {
	if !r.started {
		return models.Transfer{}, errResourceNotStarted
	}

	t, ok := r.transfers[transferID]
	if !ok {
		return models.Transfer{}, fmt.Errorf("%w: transfer %q", capability.ErrNotFound, transferID)
	}

	if t.Status.Terminal() {
		return models.Transfer{}, fmt.Errorf("%w: %s is %s", ErrTransferFinished, transferID, t.Status)
	}

	return t, nil
}

func (r *Resource) activeCountLocked() int {
	n := 0

	for _, t := range r.transfers {
		if !t.Status.Terminal() {
			n++
		}
	}

	return n
}

// armTimeoutLocked schedules the transfer timeout. The timer fires outside
// the lock; onTimeout re-checks the status before acting.
func (r *Resource) armTimeoutLocked(transferID string) {
	timeout := time.Duration(r.config.TransferTimeout)
	r.timers[transferID] = time.AfterFunc(timeout, func() {
		r.onTimeout(transferID)
	})
}

func (r *Resource) onTimeout(transferID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return
	}

	t, ok := r.transfers[transferID]
	if !ok || t.Status.Terminal() {
		return
	}

	r.finishLocked(transferID, models.TransferStatusTimedOut, "transfer timeout exceeded")

	r.logger.Warn().
		Str("transfer_id", transferID).
		Str("peer_id", t.PeerID).
		Msg("Transfer timed out")
}

// finishLocked transitions a transfer to a terminal status, stops its
// timer, records history and metrics, and publishes the matching event.
func (r *Resource) finishLocked(transferID string, status models.TransferStatus, reason string) models.Transfer {
	t := r.transfers[transferID]
	now := r.now()

	t.Status = status
	t.Error = reason
	t.FinishedAt = &now

	if status == models.TransferStatusCompleted {
		t.SentBytes = t.SizeBytes
	}

	r.transfers[transferID] = t

	if timer, ok := r.timers[transferID]; ok {
		timer.Stop()
		delete(r.timers, transferID)
	}

	if r.history != nil {
		r.history.AppendAt(t, now)
	}

	if r.metrics != nil {
		var err error
		if status != models.TransferStatusCompleted {
			err = fmt.Errorf("transfer %s", status)
		}

		r.metrics.Record("transfer", now.Sub(t.StartedAt), err)
	}

	r.publishLocked("transfer."+string(status), t)

	return t
}

func (r *Resource) publishLocked(kind string, t models.Transfer) {
	if r.events == nil {
		return
	}

	r.events.Publish(models.CapabilityEvent{
		EventID:    uuid.New().String(),
		Capability: CapabilityName,
		Kind:       kind,
		Timestamp:  r.now(),
		Data:       t,
	})
}

// simulatedDiscovery is the default DiscoverFunc. It fabricates a small,
// stable set of nearby devices so the capability is usable without platform
// bindings.
func simulatedDiscovery(ctx context.Context) ([]models.Peer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	now := time.Now()

	return []models.Peer{
		{PeerID: "peer-macbook-pro", Name: "Ava's MacBook Pro", DeviceModel: "MacBookPro18,3", DiscoveredAt: now},
		{PeerID: "peer-studio-imac", Name: "Studio iMac", DeviceModel: "iMac21,1", DiscoveredAt: now},
		{PeerID: "peer-kai-iphone", Name: "Kai's iPhone", DeviceModel: "iPhone16,2", DiscoveredAt: now},
	}, nil
}
