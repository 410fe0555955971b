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

package continuity

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

const CapabilityName = "continuity"

var (
	ErrNoCurrentActivity  = errors.New("no current activity")
	errResourceNotStarted = errors.New("continuity resource not started")
)

// SyncFunc pushes an activity to paired devices. The default simulates the
// handoff broadcast; platform bindings inject the real one. The context
// carries the configured sync deadline.
type SyncFunc func(ctx context.Context, activity models.Activity) error

// Resource owns continuity state: live activities, the current activity
// pointer, finished-activity history, metrics, and the activity event bus.
type Resource struct {
	mu      sync.Mutex
	config  Config
	logger  zerolog.Logger
	sync    SyncFunc
	started bool

	activities map[string]models.Activity
	currentID  string

	history *history.Ring[models.Activity]
	metrics *metrics.Accumulator
	events  *eventbus.Bus[models.CapabilityEvent]

	now func() time.Time
}

func NewResource(cfg Config, log logger.Logger) (*Resource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Resource{
		config: cfg,
		logger: log.WithComponent(CapabilityName),
		sync:   simulatedSync,
		now:    time.Now,
	}, nil
}

// SetSyncFunc replaces the handoff transport. It must be called before
// Allocate.
func (r *Resource) SetSyncFunc(fn SyncFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sync = fn
}

func (r *Resource) Allocate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.activities = make(map[string]models.Activity)
	r.currentID = ""
	r.history = history.NewRing[models.Activity](r.config.HistoryLimit, time.Duration(r.config.HistoryMaxAge))
	r.metrics = metrics.NewAccumulator(CapabilityName)
	r.events = eventbus.New[models.CapabilityEvent]()
	r.started = true

	r.logger.Info().
		Int("max_activities", r.config.MaxActivities).
		Str("ttl", time.Duration(r.config.ActivityTTL).String()).
		Msg("Continuity resource allocated")

	return nil
}

func (r *Resource) Release(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	for id := range r.activities {
		r.retireLocked(id, models.ActivityStatusInvalidated)
	}

	_ = r.events.Close()

	r.activities = nil
	r.currentID = ""
	r.started = false

	r.logger.Info().Msg("Continuity resource released")

	return nil
}

// CreateActivity registers a new handoff activity and makes it current.
// Stale activities are expired first so they do not hold slots.
func (r *Resource) CreateActivity(activityType, title string, payload map[string]any) (models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.Activity{}, err
	}

	r.expireStaleLocked()

	if len(r.activities) >= r.config.MaxActivities {
		return models.Activity{}, &capability.LimitError{
			Resource: "activities",
			Limit:    r.config.MaxActivities,
		}
	}

	now := r.now()
	a := models.Activity{
		ActivityID:   uuid.New().String(),
		ActivityType: activityType,
		Title:        title,
		Payload:      payload,
		Status:       models.ActivityStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	r.activities[a.ActivityID] = a
	r.currentID = a.ActivityID
	r.publishLocked("activity.created", a)

	r.logger.Debug().
		Str("activity_id", a.ActivityID).
		Str("type", activityType).
		Msg("Activity created")

	return a, nil
}

// UpdateActivity refreshes an activity's title and payload. An updated
// activity becomes current and needs syncing again.
func (r *Resource) UpdateActivity(activityID, title string, payload map[string]any) (models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.Activity{}, err
	}

	a, ok := r.activities[activityID]
	if !ok {
		return models.Activity{}, fmt.Errorf("%w: activity %q", capability.ErrNotFound, activityID)
	}

	a.Title = title
	a.Payload = payload
	a.Status = models.ActivityStatusActive
	a.UpdatedAt = r.now()
	a.SyncedAt = nil

	r.activities[activityID] = a
	r.currentID = activityID
	r.publishLocked("activity.updated", a)

	return a, nil
}

// InvalidateActivity retires an activity so it no longer offers handoff.
func (r *Resource) InvalidateActivity(activityID string) (models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.Activity{}, err
	}

	if _, ok := r.activities[activityID]; !ok {
		return models.Activity{}, fmt.Errorf("%w: activity %q", capability.ErrNotFound, activityID)
	}

	return r.retireLocked(activityID, models.ActivityStatusInvalidated), nil
}

// CurrentActivity returns the most recently created or updated live
// activity.
func (r *Resource) CurrentActivity() (models.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.Activity{}, err
	}

	a, ok := r.activities[r.currentID]
	if !ok {
		return models.Activity{}, ErrNoCurrentActivity
	}

	return a, nil
}

// SyncActivity pushes an activity to paired devices, bounded by the
// configured sync timeout. A sync that misses the deadline fails.
func (r *Resource) SyncActivity(ctx context.Context, activityID string) (models.Activity, error) {
	r.mu.Lock()

	if err := r.readyLocked(); err != nil {
		r.mu.Unlock()
		return models.Activity{}, err
	}

	a, ok := r.activities[activityID]
	if !ok {
		r.mu.Unlock()
		return models.Activity{}, fmt.Errorf("%w: activity %q", capability.ErrNotFound, activityID)
	}

	syncFn := r.sync
	timeout := time.Duration(r.config.SyncTimeout)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()

	err := syncFn(ctx, a)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return models.Activity{}, errResourceNotStarted
	}

	r.metrics.Record("sync", r.now().Sub(start), err)

	if err != nil {
		return models.Activity{}, fmt.Errorf("activity sync failed: %w", err)
	}

	// The activity may have changed or been retired while unlocked.
	a, ok = r.activities[activityID]
	if !ok {
		return models.Activity{}, fmt.Errorf("%w: activity %q", capability.ErrNotFound, activityID)
	}

	now := r.now()
	a.Status = models.ActivityStatusSynced
	a.SyncedAt = &now
	a.UpdatedAt = now

	r.activities[activityID] = a
	r.publishLocked("activity.synced", a)

	return a, nil
}

// ExpireStale retires activities that have gone unused longer than the
// activity TTL. It returns the number retired.
func (r *Resource) ExpireStale() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return 0
	}

	return r.expireStaleLocked()
}

// Activities lists live activities ordered by last update, newest first.
func (r *Resource) Activities() []models.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	out := make([]models.Activity, 0, len(r.activities))
	for _, a := range r.activities {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })

	return out
}

// History returns retired activities, oldest first.
func (r *Resource) History() []models.Activity {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.history == nil {
		return nil
	}

	return r.history.Items()
}

func (r *Resource) Metrics() models.MetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started || r.metrics == nil {
		return models.MetricsSnapshot{Capability: CapabilityName}
	}

	return r.metrics.Snapshot()
}

func (r *Resource) Events() *eventbus.Bus[models.CapabilityEvent] {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.events
}

func (r *Resource) Configuration() Config {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.config
}

func (r *Resource) UpdateConfiguration(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = cfg

	return nil
}

func (r *Resource) readyLocked() error {
	if !r.started {
		return errResourceNotStarted
	}

	if !r.config.Enabled {
		return fmt.Errorf("%w: continuity", capability.ErrFeatureDisabled)
	}

	return nil
}

func (r *Resource) expireStaleLocked() int {
	cutoff := r.now().Add(-time.Duration(r.config.ActivityTTL))
	n := 0

	for id, a := range r.activities {
		if a.UpdatedAt.Before(cutoff) {
			r.retireLocked(id, models.ActivityStatusExpired)

			n++
		}
	}

	if n > 0 {
		r.logger.Debug().Int("expired", n).Msg("Stale activities retired")
	}

	return n
}

// retireLocked moves a live activity into history with a terminal status.
func (r *Resource) retireLocked(activityID string, status models.ActivityStatus) models.Activity {
	a := r.activities[activityID]
	a.Status = status
	a.UpdatedAt = r.now()

	delete(r.activities, activityID)

	if r.currentID == activityID {
		r.currentID = ""
	}

	if r.history != nil {
		r.history.AppendAt(a, a.UpdatedAt)
	}

	r.publishLocked("activity."+string(status), a)

	return a
}

func (r *Resource) publishLocked(kind string, a models.Activity) {
	if r.events == nil {
		return
	}

	r.events.Publish(models.CapabilityEvent{
		EventID:    uuid.New().String(),
		Capability: CapabilityName,
		Kind:       kind,
		Timestamp:  r.now(),
		Data:       a,
	})
}

// simulatedSync stands in for the handoff broadcast: it completes
// immediately unless the deadline has already passed.
func simulatedSync(ctx context.Context, _ models.Activity) error {
	return ctx.Err()
}
