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

// Package continuity implements cross-device handoff: a bounded set of live
// activities, deadline-bounded syncing to paired devices, TTL expiry, and an
// activity event stream.
package continuity

import (
	"context"
	"encoding/json"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/models"
)

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

func (c *Capability) CreateActivity(activityType, title string, payload map[string]any) (models.Activity, error) {
	if err := c.Guard(); err != nil {
		return models.Activity{}, err
	}

	return c.res.CreateActivity(activityType, title, payload)
}

func (c *Capability) UpdateActivity(activityID, title string, payload map[string]any) (models.Activity, error) {
	if err := c.Guard(); err != nil {
		return models.Activity{}, err
	}

	return c.res.UpdateActivity(activityID, title, payload)
}

func (c *Capability) InvalidateActivity(activityID string) (models.Activity, error) {
	if err := c.Guard(); err != nil {
		return models.Activity{}, err
	}

	return c.res.InvalidateActivity(activityID)
}

func (c *Capability) CurrentActivity() (models.Activity, error) {
	if err := c.Guard(); err != nil {
		return models.Activity{}, err
	}

	return c.res.CurrentActivity()
}

func (c *Capability) SyncActivity(ctx context.Context, activityID string) (models.Activity, error) {
	if err := c.Guard(); err != nil {
		return models.Activity{}, err
	}

	return c.res.SyncActivity(ctx, activityID)
}

func (c *Capability) ExpireStale() (int, error) {
	if err := c.Guard(); err != nil {
		return 0, err
	}

	return c.res.ExpireStale(), nil
}

func (c *Capability) Activities() ([]models.Activity, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.Activities(), nil
}

func (c *Capability) History() ([]models.Activity, error) {
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
