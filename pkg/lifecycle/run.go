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

// Package lifecycle runs daemon services: logger setup, signal-driven
// shutdown, and ordered service stop.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quaylabs/peripheral/pkg/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Service is anything the daemon starts and stops: capability actors, the
// event feed, the NATS bridge.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Options configures a daemon run.
type Options struct {
	ServiceName     string
	Services        []Service
	Logger          logger.Logger
	ShutdownTimeout time.Duration
}

// Run starts every service, blocks until the context is canceled or a
// signal arrives, then stops the services in reverse start order.
func Run(ctx context.Context, opts Options) error {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	log := opts.Logger
	if log == nil {
		log = NewNopLogger()
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	started := make([]Service, 0, len(opts.Services))

	for _, svc := range opts.Services {
		if err := svc.Start(gctx); err != nil {
			stopServices(started, opts.ShutdownTimeout, log)
			return fmt.Errorf("failed to start %s service: %w", opts.ServiceName, err)
		}

		started = append(started, svc)
	}

	log.Info().Str("service", opts.ServiceName).Int("services", len(started)).Msg("Daemon running")

	g.Go(func() error {
		<-gctx.Done()
		return gctx.Err()
	})

	err := g.Wait()

	log.Info().Str("service", opts.ServiceName).Msg("Shutting down")

	stopServices(started, opts.ShutdownTimeout, log)

	if err != nil && !isShutdownErr(err) {
		return err
	}

	return nil
}

// stopServices stops in reverse start order so dependents go first.
func stopServices(services []Service, timeout time.Duration, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i := len(services) - 1; i >= 0; i-- {
		if err := services[i].Stop(ctx); err != nil {
			log.Error().Err(err).Msg("Service stop failed")
		}
	}
}

func isShutdownErr(err error) bool {
	return errors.Is(err, context.Canceled)
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() logger.Logger {
	return logger.NewTestLogger()
}
