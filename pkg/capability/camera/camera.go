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

// Package camera implements photo and video capture: a single capture
// session with preview/recording states, enforced maximum video duration,
// capture history, and a capture event stream.
package camera

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

func (c *Capability) StartPreview() error {
	if err := c.Guard(); err != nil {
		return err
	}

	return c.res.StartPreview()
}

func (c *Capability) StopPreview() error {
	if err := c.Guard(); err != nil {
		return err
	}

	return c.res.StopPreview()
}

func (c *Capability) CapturePhoto(ctx context.Context) (models.CaptureResult, error) {
	if err := c.Guard(); err != nil {
		return models.CaptureResult{}, err
	}

	return c.res.CapturePhoto(ctx)
}

func (c *Capability) StartRecording() error {
	if err := c.Guard(); err != nil {
		return err
	}

	return c.res.StartRecording()
}

func (c *Capability) StopRecording() (models.CaptureResult, error) {
	if err := c.Guard(); err != nil {
		return models.CaptureResult{}, err
	}

	return c.res.StopRecording()
}

func (c *Capability) SessionState() (SessionState, error) {
	if err := c.Guard(); err != nil {
		return SessionIdle, err
	}

	return c.res.SessionState(), nil
}

func (c *Capability) History() ([]models.CaptureResult, error) {
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
