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

// Package sharing implements peer-to-peer file transfer: peer discovery,
// bounded concurrent transfers with enforced timeouts, transfer history,
// and a transfer event stream.
package sharing

import (
	"context"
	"encoding/json"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Capability gates every sharing operation behind the lifecycle state
// machine: operations succeed only while the capability is available.
type Capability struct {
	*capability.Base
	res *Resource
}

func New(cfg Config, log logger.Logger) (*Capability, error) {
	res, err := NewResource(cfg, log)
	if err != nil {
		return nil, err
	}

	return &Capability{
		Base: capability.NewBase(CapabilityName, res, log),
		res:  res,
	}, nil
}

// NewFromJSON is the registry factory. An empty configuration block yields
// the defaults.
func NewFromJSON(_ context.Context, _ string, raw json.RawMessage, log logger.Logger) (capability.Capability, error) {
	cfg := DefaultConfig()

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	return New(cfg, log)
}

func (c *Capability) DiscoverPeers(ctx context.Context) ([]models.Peer, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.DiscoverPeers(ctx)
}

func (c *Capability) SendFile(ctx context.Context, peerID, fileName string, sizeBytes int64) (models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return models.Transfer{}, err
	}

	return c.res.SendFile(ctx, peerID, fileName, sizeBytes)
}

func (c *Capability) UpdateProgress(transferID string, sentBytes int64) (models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return models.Transfer{}, err
	}

	return c.res.UpdateProgress(transferID, sentBytes)
}

func (c *Capability) CompleteTransfer(transferID string) (models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return models.Transfer{}, err
	}

	return c.res.CompleteTransfer(transferID)
}

func (c *Capability) CancelTransfer(transferID string) (models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return models.Transfer{}, err
	}

	return c.res.CancelTransfer(transferID)
}

func (c *Capability) FailTransfer(transferID, reason string) (models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return models.Transfer{}, err
	}

	return c.res.FailTransfer(transferID, reason)
}

func (c *Capability) Transfer(transferID string) (models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return models.Transfer{}, err
	}

	return c.res.Transfer(transferID)
}

func (c *Capability) ActiveTransfers() ([]models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.ActiveTransfers(), nil
}

func (c *Capability) Peers() ([]models.Peer, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.Peers(), nil
}

func (c *Capability) History() ([]models.Transfer, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.History(), nil
}

func (c *Capability) Metrics() (models.MetricsSnapshot, error) {
	if err := c.Guard(); err != nil {
		return models.MetricsSnapshot{}, err
	}

	return c.res.Metrics(), nil
}

func (c *Capability) Events() (*eventbus.Bus[models.CapabilityEvent], error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.Events(), nil
}

func (c *Capability) Configuration() Config {
	return c.res.Configuration()
}

func (c *Capability) UpdateConfiguration(cfg Config) error {
	if err := c.Guard(); err != nil {
		return err
	}

	return c.res.UpdateConfiguration(cfg)
}
