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

package metrics

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quaylabs/peripheral/pkg/history"
	"github.com/quaylabs/peripheral/pkg/models"
)

// Config bounds the manager's snapshot retention.
type Config struct {
	Enabled         bool            `json:"enabled"`
	MaxCapabilities int             `json:"max_capabilities"`
	Retention       int             `json:"retention"`
	RetentionAge    models.Duration `json:"retention_age"`
}

const defaultMaxCapabilities = 64

// Manager retains a bounded window of metrics snapshots per capability so a
// status surface can show trends. Least-recently-updated capabilities are
// evicted once MaxCapabilities is reached.
type Manager struct {
	stores      sync.Map // capability name -> *history.Ring[models.MetricsSnapshot]
	config      Config
	activeCount atomic.Int64
	evictList   *list.List
	evictMap    sync.Map // capability name -> *list.Element
	mu          sync.Mutex
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxCapabilities == 0 {
		cfg.MaxCapabilities = defaultMaxCapabilities
	}

	return &Manager{
		config:    cfg,
		evictList: list.New(),
	}
}

// Observe records a snapshot for the capability it names.
func (m *Manager) Observe(snap models.MetricsSnapshot) {
	if !m.config.Enabled {
		return
	}

	m.touchLRU(snap.Capability)

	// Evict only when this observation would add a capability.
	if _, known := m.stores.Load(snap.Capability); !known &&
		m.activeCount.Load() >= int64(m.config.MaxCapabilities) {
		m.evictOldest()
	}

	store, loaded := m.stores.LoadOrStore(snap.Capability,
		history.NewRing[models.MetricsSnapshot](m.config.Retention, time.Duration(m.config.RetentionAge)))
	if !loaded {
		m.activeCount.Add(1)
	}

	store.(*history.Ring[models.MetricsSnapshot]).Append(snap)
}

// Snapshots returns the retained window for one capability, oldest first.
func (m *Manager) Snapshots(capability string) []models.MetricsSnapshot {
	store, ok := m.stores.Load(capability)
	if !ok {
		return nil
	}

	return store.(*history.Ring[models.MetricsSnapshot]).Items()
}

// Latest returns the most recent snapshot for one capability.
func (m *Manager) Latest(capability string) (models.MetricsSnapshot, bool) {
	store, ok := m.stores.Load(capability)
	if !ok {
		return models.MetricsSnapshot{}, false
	}

	return store.(*history.Ring[models.MetricsSnapshot]).Last()
}

// ActiveCapabilities reports how many capabilities currently retain data.
func (m *Manager) ActiveCapabilities() int64 {
	return m.activeCount.Load()
}

// CleanupStale drops capabilities whose latest snapshot is older than the
// given duration.
func (m *Manager) CleanupStale(staleDuration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	threshold := time.Now().Add(-staleDuration)

	m.stores.Range(func(key, value interface{}) bool {
		name := key.(string)
		store := value.(*history.Ring[models.MetricsSnapshot])

		last, ok := store.Last()
		if ok && last.LastUpdated.Before(threshold) {
			if _, found := m.stores.LoadAndDelete(name); found {
				m.activeCount.Add(-1)
			}

			if element, found := m.evictMap.Load(name); found {
				m.evictList.Remove(element.(*list.Element))
				m.evictMap.Delete(name)
			}
		}

		return true
	})
}

func (m *Manager) touchLRU(capability string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if element, ok := m.evictMap.Load(capability); ok {
		m.evictList.MoveToFront(element.(*list.Element))
		return
	}

	element := m.evictList.PushFront(capability)
	m.evictMap.Store(capability, element)
}

func (m *Manager) evictOldest() {
	m.mu.Lock()
	defer m.mu.Unlock()

	element := m.evictList.Back()
	if element == nil {
		return
	}

	name := element.Value.(string)

	// Never evict the entry that was just touched.
	if m.evictList.Len() == 1 {
		return
	}

	m.evictList.Remove(element)
	m.evictMap.Delete(name)

	if _, ok := m.stores.LoadAndDelete(name); ok {
		m.activeCount.Add(-1)
	}
}
