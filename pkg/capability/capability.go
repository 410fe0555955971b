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

// Package capability implements the lifecycle shared by every capability:
// a resource owning live platform state, a linear state machine
// (unknown → initializing → available/unavailable → terminating), and an
// availability gate in front of every domain operation.
package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Resource owns the live platform object graph behind a capability. Allocate
// and Release bracket its lifetime; everything in between is capability
// specific.
type Resource interface {
	Allocate(ctx context.Context) error
	Release(ctx context.Context) error
}

// Capability is the public lifecycle surface each capability exposes.
type Capability interface {
	Name() string
	Activate(ctx context.Context) error
	Deactivate(ctx context.Context) error
	State() models.CapabilityState
	IsAvailable() bool
}

// Base provides the lifecycle state machine once; concrete capabilities embed
// it and add their domain operations, each of which must call Guard first.
type Base struct {
	name string
	res  Resource
	log  logger.Logger

	mu    sync.RWMutex
	state models.CapabilityState
}

func NewBase(name string, res Resource, log logger.Logger) *Base {
	return &Base{
		name:  name,
		res:   res,
		log:   log,
		state: models.CapabilityStateUnknown,
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) State() models.CapabilityState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.state
}

func (b *Base) IsAvailable() bool {
	return b.State() == models.CapabilityStateAvailable
}

// Guard is the availability gate. Every domain operation calls it before
// touching the resource.
func (b *Base) Guard() error {
	if !b.IsAvailable() {
		return fmt.Errorf("%w: %s", ErrNotAvailable, b.name)
	}

	return nil
}

// Activate allocates the resource. Allowed only from the unknown and
// unavailable states. A failed allocation leaves the capability unavailable
// and rethrows the allocation error; there is no retry.
func (b *Base) Activate(ctx context.Context) error {
	b.mu.Lock()

	switch b.state {
	case models.CapabilityStateUnknown, models.CapabilityStateUnavailable:
	case models.CapabilityStateAvailable, models.CapabilityStateInitializing, models.CapabilityStateTerminating:
		state := b.state
		b.mu.Unlock()

		return fmt.Errorf("%w: cannot activate %s from %s", ErrInvalidStateTransition, b.name, state)
	}

	b.state = models.CapabilityStateInitializing
	b.mu.Unlock()

	b.log.Info().Str("capability", b.name).Msg("Activating capability")

	if err := b.res.Allocate(ctx); err != nil {
		b.setState(models.CapabilityStateUnavailable)
		b.log.Error().Err(err).Str("capability", b.name).Msg("Capability activation failed")

		return fmt.Errorf("failed to activate %s: %w", b.name, err)
	}

	b.setState(models.CapabilityStateAvailable)
	b.log.Info().Str("capability", b.name).Msg("Capability available")

	return nil
}

// Deactivate releases the resource. Allowed only from the available state.
func (b *Base) Deactivate(ctx context.Context) error {
	b.mu.Lock()

	if b.state != models.CapabilityStateAvailable {
		state := b.state
		b.mu.Unlock()

		return fmt.Errorf("%w: cannot deactivate %s from %s", ErrInvalidStateTransition, b.name, state)
	}

	b.state = models.CapabilityStateTerminating
	b.mu.Unlock()

	b.log.Info().Str("capability", b.name).Msg("Deactivating capability")

	err := b.res.Release(ctx)

	b.setState(models.CapabilityStateUnavailable)

	if err != nil {
		return fmt.Errorf("failed to release %s: %w", b.name, err)
	}

	return nil
}

func (b *Base) setState(s models.CapabilityState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = s
}
