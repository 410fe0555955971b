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

package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu       sync.Mutex
	name     string
	startErr error
	started  bool
	stopped  bool
	order    *[]string
}

func (s *fakeService) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startErr != nil {
		return s.startErr
	}

	s.started = true

	return nil
}

func (s *fakeService) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true

	if s.order != nil {
		*s.order = append(*s.order, s.name)
	}

	return nil
}

func TestRunStopsServicesInReverseOrder(t *testing.T) {
	t.Parallel()

	var order []string

	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- Run(ctx, Options{ServiceName: "test", Services: []Service{a, b}})
	}()

	// Give the services a moment to start, then trigger shutdown.
	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return a.started
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err, "canceled context is a clean shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}

	assert.Equal(t, []string{"b", "a"}, order)
}

func TestRunStartFailureStopsStartedServices(t *testing.T) {
	t.Parallel()

	boom := errors.New("start failed")

	a := &fakeService{name: "a"}
	b := &fakeService{name: "b", startErr: boom}

	err := Run(context.Background(), Options{ServiceName: "test", Services: []Service{a, b}})
	require.ErrorIs(t, err, boom)

	a.mu.Lock()
	defer a.mu.Unlock()
	assert.True(t, a.stopped, "already-started services must be stopped on failure")
}
