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

package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/quaylabs/peripheral/pkg/logger"
)

var errNoCapability = fmt.Errorf("no capability registered")

// Creator builds a capability from its raw JSON configuration block.
type Creator func(ctx context.Context, name string, cfg json.RawMessage, log logger.Logger) (Capability, error)

// Registry stores capability factories by type.
type Registry interface {
	Register(capType string, creator Creator)
	Get(ctx context.Context, capType, name string, cfg json.RawMessage, log logger.Logger) (Capability, error)
	Types() []string
}

type capabilityRegistry struct {
	mu        sync.RWMutex
	factories map[string]Creator
}

// NewRegistry creates an empty in-memory registry.
func NewRegistry() Registry {
	return &capabilityRegistry{
		factories: make(map[string]Creator),
	}
}

func (r *capabilityRegistry) Register(capType string, creator Creator) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[capType] = creator
}

func (r *capabilityRegistry) Get(
	ctx context.Context,
	capType, name string,
	cfg json.RawMessage,
	log logger.Logger,
) (Capability, error) {
	r.mu.RLock()
	f, ok := r.factories[capType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", errNoCapability, capType)
	}

	return f(ctx, name, cfg, log)
}

func (r *capabilityRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}

	sort.Strings(types)

	return types
}
