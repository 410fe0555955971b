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

// Package natsutil bridges capability events onto NATS JetStream as
// CloudEvents.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"github.com/quaylabs/peripheral/pkg/models"
)

const (
	eventSource      = "quaylabs/capd"
	eventTypePrefix  = "com.quaylabs.peripheral."
	subjectPrefix    = "events.capability."
	defaultStream    = "capability-events"
	defaultSubjspec  = subjectPrefix + ">"
	dataContentsJSON = "application/json"
)

// EventPublisher publishes capability events to NATS JetStream wrapped in
// CloudEvents 1.0 envelopes.
type EventPublisher struct {
	js     jetstream.JetStream
	stream string
	logger zerolog.Logger
}

// NewEventPublisher creates an EventPublisher for the specified stream.
func NewEventPublisher(js jetstream.JetStream, streamName string, log zerolog.Logger) *EventPublisher {
	return &EventPublisher{
		js:     js,
		stream: streamName,
		logger: log,
	}
}

// PublishCapabilityEvent wraps a capability event in a CloudEvent and
// publishes it to events.capability.<capability>.<kind>.
func (p *EventPublisher) PublishCapabilityEvent(ctx context.Context, ev models.CapabilityEvent) error {
	subject := subjectPrefix + ev.Capability + "." + ev.Kind

	cloudEvent := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              ev.EventID,
		Source:          eventSource,
		Type:            eventTypePrefix + ev.Kind,
		DataContentType: dataContentsJSON,
		Subject:         subject,
		Time:            &ev.Timestamp,
		Data:            ev,
	}

	eventBytes, err := json.Marshal(cloudEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal capability event: %w", err)
	}

	ack, err := p.js.Publish(ctx, subject, eventBytes)
	if err != nil {
		return fmt.Errorf("failed to publish capability event: %w", err)
	}

	p.logger.Debug().
		Str("event_id", ev.EventID).
		Str("subject", subject).
		Uint64("seq", ack.Sequence).
		Msg("Published capability event")

	return nil
}

// ConnectWithSecurity creates a NATS connection, applying mTLS when a
// security configuration is present.
func ConnectWithSecurity(_ context.Context, natsURL string, security *models.SecurityConfig, log zerolog.Logger, extraOpts ...nats.Option) (*nats.Conn, error) {
	var opts []nats.Option

	if security != nil {
		tlsConf, err := TLSConfig(security)
		if err != nil {
			return nil, fmt.Errorf("failed to build NATS TLS config: %w", err)
		}

		opts = append(opts,
			nats.Secure(tlsConf),
			nats.RootCAs(security.TLS.CAFile),
			nats.ClientCert(security.TLS.CertFile, security.TLS.KeyFile),
		)
	}

	opts = append(opts,
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
		nats.ConnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("Connected to NATS")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)

	opts = append(opts, extraOpts...)

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return nc, nil
}

// CreateEventPublisher creates an EventPublisher on an existing connection,
// ensuring the capability event stream exists.
func CreateEventPublisher(ctx context.Context, nc *nats.Conn, streamName string, subjects []string, log zerolog.Logger) (*EventPublisher, error) {
	return CreateEventPublisherWithDomain(ctx, nc, "", streamName, subjects, log)
}

// CreateEventPublisherWithDomain creates an EventPublisher with optional
// NATS domain support.
func CreateEventPublisherWithDomain(ctx context.Context, nc *nats.Conn, domain, streamName string, subjects []string, log zerolog.Logger) (*EventPublisher, error) {
	var js jetstream.JetStream

	var err error

	if domain != "" {
		js, err = jetstream.NewWithDomain(nc, domain)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context with domain %s: %w", domain, err)
		}
	} else {
		js, err = jetstream.New(nc)
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
	}

	if streamName == "" {
		streamName = defaultStream
	}

	_, err = js.Stream(ctx, streamName)
	if err != nil {
		if len(subjects) == 0 {
			subjects = []string{defaultSubjspec}
		}

		streamConfig := jetstream.StreamConfig{
			Name:     streamName,
			Subjects: subjects,
		}

		_, err = js.CreateOrUpdateStream(ctx, streamConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create or get stream %s: %w", streamName, err)
		}

		log.Info().Str("stream", streamName).Msg("Created NATS JetStream stream")
	}

	return NewEventPublisher(js, streamName, log), nil
}
