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

package intents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/quaylabs/peripheral/pkg/capability"
	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/history"
	"github.com/quaylabs/peripheral/pkg/logger"
	"github.com/quaylabs/peripheral/pkg/metrics"
	"github.com/quaylabs/peripheral/pkg/models"
)

const CapabilityName = "intents"

var (
	ErrNoHandler          = errors.New("intent has no execution handler")
	errResourceNotStarted = errors.New("intents resource not started")
)

// Handler executes a registered intent when the assistant resolves it.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Resource owns assistant intent state: registered intents and their
// handlers, per-intent donation tallies, the rate limiter that throttles
// donations, donation history, metrics, and the intent event bus.
type Resource struct {
	mu      sync.Mutex
	config  Config
	logger  zerolog.Logger
	started bool

	registered map[string]models.Intent
	handlers   map[string]Handler
	donations  map[string]int64
	lastUsed   map[string]time.Time
	limiter    *rate.Limiter

	history *history.Ring[models.IntentDonation]
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
		now:    time.Now,
	}, nil
}

func (r *Resource) Allocate(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	r.registered = make(map[string]models.Intent)
	r.handlers = make(map[string]Handler)
	r.donations = make(map[string]int64)
	r.lastUsed = make(map[string]time.Time)
	r.limiter = rate.NewLimiter(rate.Limit(r.config.DonationRatePerMinute)/60, r.config.DonationBurst)
	r.history = history.NewRing[models.IntentDonation](r.config.HistoryLimit, time.Duration(r.config.HistoryMaxAge))
	r.metrics = metrics.NewAccumulator(CapabilityName)
	r.events = eventbus.New[models.CapabilityEvent]()
	r.started = true

	r.logger.Info().
		Int("max_intents", r.config.MaxRegisteredIntents).
		Int("donation_rate_per_minute", r.config.DonationRatePerMinute).
		Msg("Intents resource allocated")

	return nil
}

func (r *Resource) Release(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	_ = r.events.Close()

	r.registered = nil
	r.handlers = nil
	r.donations = nil
	r.lastUsed = nil
	r.limiter = nil
	r.started = false

	r.logger.Info().Msg("Intents resource released")

	return nil
}

// RegisterIntent adds an intent definition with an optional execution
// handler. Unknown categories are rejected.
func (r *Resource) RegisterIntent(name string, category models.IntentCategory, phrase string, handler Handler) (models.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.Intent{}, err
	}

	if !models.KnownIntentCategory(category) {
		return models.Intent{}, fmt.Errorf("%w: intent category %q", capability.ErrUnsupported, category)
	}

	if len(r.registered) >= r.config.MaxRegisteredIntents {
		return models.Intent{}, &capability.LimitError{
			Resource: "intents",
			Limit:    r.config.MaxRegisteredIntents,
		}
	}

	in := models.Intent{
		IntentID:     uuid.New().String(),
		Name:         name,
		Category:     category,
		Phrase:       phrase,
		RegisteredAt: r.now(),
	}

	r.registered[in.IntentID] = in

	if handler != nil {
		r.handlers[in.IntentID] = handler
	}

	r.publishLocked("intent.registered", in)

	r.logger.Debug().
		Str("intent_id", in.IntentID).
		Str("name", name).
		Str("category", string(category)).
		Msg("Intent registered")

	return in, nil
}

// UnregisterIntent removes an intent, its handler, and its donation tally.
func (r *Resource) UnregisterIntent(intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return err
	}

	in, ok := r.registered[intentID]
	if !ok {
		return fmt.Errorf("%w: intent %q", capability.ErrNotFound, intentID)
	}

	delete(r.registered, intentID)
	delete(r.handlers, intentID)
	delete(r.donations, intentID)
	delete(r.lastUsed, intentID)

	r.publishLocked("intent.unregistered", in)

	return nil
}

// Donate records one usage of an intent for the prediction system.
// Donations are throttled by the configured per-minute rate.
func (r *Resource) Donate(intentID string, params map[string]any) (models.IntentDonation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.readyLocked(); err != nil {
		return models.IntentDonation{}, err
	}

	if _, ok := r.registered[intentID]; !ok {
		return models.IntentDonation{}, fmt.Errorf("%w: intent %q", capability.ErrNotFound, intentID)
	}

	if !r.limiter.Allow() {
		r.metrics.Record("donation", 0, errors.New("donation rate exceeded"))

		return models.IntentDonation{}, &capability.LimitError{
			Resource: "donations per minute",
			Limit:    r.config.DonationRatePerMinute,
		}
	}

	now := r.now()
	d := models.IntentDonation{
		DonationID: uuid.New().String(),
		IntentID:   intentID,
		Parameters: params,
		DonatedAt:  now,
	}

	r.donations[intentID]++
	r.lastUsed[intentID] = now
	r.history.AppendAt(d, now)
	r.metrics.Record("donation", 0, nil)
	r.publishLocked("intent.donated", d)

	return d, nil
}

// Predictions ranks registered intents by donation volume, most donated
// first, recency breaking ties. A non-positive n falls back to the
// configured suggestion limit.
func (r *Resource) Predictions(n int) []models.IntentPrediction {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	if n <= 0 {
		n = r.config.SuggestionLimit
	}

	var total int64
	for _, count := range r.donations {
		total += count
	}

	out := make([]models.IntentPrediction, 0, len(r.donations))

	for id, count := range r.donations {
		in, ok := r.registered[id]
		if !ok || count == 0 {
			continue
		}

		p := models.IntentPrediction{
			IntentID:   id,
			Name:       in.Name,
			Donations:  count,
			LastUsedAt: r.lastUsed[id],
		}

		if total > 0 {
			p.Score = float64(count) / float64(total)
		}

		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Donations != out[j].Donations {
			return out[i].Donations > out[j].Donations
		}

		return out[i].LastUsedAt.After(out[j].LastUsedAt)
	})

	if len(out) > n {
		out = out[:n]
	}

	return out
}

// ExecuteIntent runs the registered handler for an intent.
func (r *Resource) ExecuteIntent(ctx context.Context, intentID string, params map[string]any) (any, error) {
	r.mu.Lock()

	if err := r.readyLocked(); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	in, ok := r.registered[intentID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: intent %q", capability.ErrNotFound, intentID)
	}

	handler, ok := r.handlers[intentID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, in.Name)
	}

	r.mu.Unlock()

	start := r.now()

	result, err := handler(ctx, params)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil, errResourceNotStarted
	}

	r.metrics.Record("execute", r.now().Sub(start), err)

	if err != nil {
		return nil, fmt.Errorf("intent execution failed: %w", err)
	}

	r.publishLocked("intent.executed", in)

	return result, nil
}

// RegisteredIntents lists registrations ordered by registration time.
func (r *Resource) RegisteredIntents() []models.Intent {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return nil
	}

	out := make([]models.Intent, 0, len(r.registered))
	for _, in := range r.registered {
		out = append(out, in)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.Before(out[j].RegisteredAt) })

	return out
}

// History returns recorded donations, oldest first.
func (r *Resource) History() []models.IntentDonation {
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

// UpdateConfiguration swaps in a new validated configuration and re-arms
// the donation limiter with the new rate.
func (r *Resource) UpdateConfiguration(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = cfg

	if r.started {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.DonationRatePerMinute)/60, cfg.DonationBurst)
	}

	return nil
}

func (r *Resource) readyLocked() error {
	if !r.started {
		return errResourceNotStarted
	}

	if !r.config.Enabled {
		return fmt.Errorf("%w: intents", capability.ErrFeatureDisabled)
	}

	return nil
}

func (r *Resource) publishLocked(kind string, data any) {
	if r.events == nil {
		return
	}

	r.events.Publish(models.CapabilityEvent{
		EventID:    uuid.New().String(),
		Capability: CapabilityName,
		Kind:       kind,
		Timestamp:  r.now(),
		Data:       data,
	})
}
