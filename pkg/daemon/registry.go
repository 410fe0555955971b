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

package daemon

import (
	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/capability/battery"
	"github.com/quaylabs/peripheral/pkg/capability/camera"
	"github.com/quaylabs/peripheral/pkg/capability/continuity"
	"github.com/quaylabs/peripheral/pkg/capability/intents"
	"github.com/quaylabs/peripheral/pkg/capability/sharing"
)

// DefaultRegistry returns a registry with every built-in capability factory
// registered under its canonical name. Callers embedding the framework can
// register their own factories on top.
func DefaultRegistry() capability.Registry {
	reg := capability.NewRegistry()

	reg.Register(sharing.CapabilityName, sharing.NewFromJSON)
	reg.Register(battery.CapabilityName, battery.NewFromJSON)
	reg.Register(camera.CapabilityName, camera.NewFromJSON)
	reg.Register(continuity.CapabilityName, continuity.NewFromJSON)
	reg.Register(intents.CapabilityName, intents.NewFromJSON)

	return reg
}
