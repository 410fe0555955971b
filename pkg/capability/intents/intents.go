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

// Package intents implements voice-assistant intents: registration with
// execution handlers, rate-limited usage donations, and donation-ranked
// predictions.
package intents

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

func (c *Capability) RegisterIntent(name string, category models.IntentCategory, phrase string, handler Handler) (models.Intent, error) {
	if err := c.Guard(); err != nil {
		return models.Intent{}, err
	}

	return c.res.RegisterIntent(name, category, phrase, handler)
}

func (c *Capability) UnregisterIntent(intentID string) error {
	if err := c.Guard(); err != nil {
		return err
	}

	return c.res.UnregisterIntent(intentID)
}

func (c *Capability) Donate(intentID string, params map[string]any) (models.IntentDonation, error) {
	if err := c.Guard(); err != nil {
		return models.IntentDonation{}, err
	}

	return c.res.Donate(intentID, params)
}

func (c *Capability) Predictions(n int) ([]models.IntentPrediction, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.Predictions(n), nil
}

func (c *Capability) ExecuteIntent(ctx context.Context, intentID string, params map[string]any) (any, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.ExecuteIntent(ctx, intentID, params)
}

func (c *Capability) RegisteredIntents() ([]models.Intent, error) {
	if err := c.Guard(); err != nil {
		return nil, err
	}

	return c.res.RegisteredIntents(), nil
}

func (c *Capability) History() ([]models.IntentDonation, error) {
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
