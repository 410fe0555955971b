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

// Package feed serves capability events to WebSocket clients. Each client
// gets its own bounded event bus subscription; clients that cannot keep up
// lose the oldest events rather than stalling publishers.
package feed

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/quaylabs/peripheral/pkg/eventbus"
	"github.com/quaylabs/peripheral/pkg/models"
)

const (
	defaultPingInterval     = 30 * time.Second
	defaultWriteTimeout     = 10 * time.Second
	defaultSubscriberBuffer = 64
	readLimitBytes          = 1024
)

// Config controls the event feed server.
type Config struct {
	ListenAddr       string          `json:"listen_addr"`
	PingInterval     models.Duration `json:"ping_interval"`
	WriteTimeout     models.Duration `json:"write_timeout"`
	SubscriberBuffer int             `json:"subscriber_buffer"`
}

// StreamMessage is one frame sent to a feed client.
type StreamMessage struct {
	Type      string                  `json:"type"` // "event", "ping"
	Event     *models.CapabilityEvent `json:"event,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// Server exposes the daemon's merged capability event stream over
// WebSockets at GET /events.
type Server struct {
	config   Config
	bus      *eventbus.Bus[models.CapabilityEvent]
	logger   zerolog.Logger
	httpSrv  *http.Server
	upgrader websocket.Upgrader
}

func NewServer(cfg Config, bus *eventbus.Bus[models.CapabilityEvent], log zerolog.Logger) *Server {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = models.Duration(defaultPingInterval)
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = models.Duration(defaultWriteTimeout)
	}

	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}

	s := &Server{
		config: cfg,
		bus:    bus,
		logger: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)

	s.httpSrv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start begins serving in the background.
func (s *Server) Start(_ context.Context) error {
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Event feed server failed")
		}
	}()

	s.logger.Info().Str("addr", s.config.ListenAddr).Msg("Event feed listening")

	return nil
}

// Stop shuts the server down, closing client connections.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Handler exposes the feed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("capability")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("Failed to upgrade to WebSocket")

		return
	}

	defer conn.Close()

	clientID := "feed-" + uuid.New().String()

	ch, err := s.bus.Subscribe(clientID, s.config.SubscriberBuffer)
	if err != nil {
		s.logger.Error().Err(err).Msg("Feed subscription failed")
		return
	}

	defer func() { _ = s.bus.Unsubscribe(clientID) }()

	s.logger.Info().
		Str("client", clientID).
		Str("remote_addr", r.RemoteAddr).
		Str("filter", filter).
		Msg("Feed client connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader goroutine: its only job is to notice the client going away.
	go func() {
		defer cancel()

		conn.SetReadLimit(readLimitBytes)

		for {
			if _, _, rerr := conn.ReadMessage(); rerr != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(time.Duration(s.config.PingInterval))
	defer ping.Stop()

	writeTimeout := time.Duration(s.config.WriteTimeout)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-ch:
			if !ok {
				return
			}

			if filter != "" && ev.Capability != filter {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			msg := StreamMessage{Type: "event", Event: &ev, Timestamp: time.Now()}
			if werr := conn.WriteJSON(msg); werr != nil {
				s.logger.Debug().Err(werr).Str("client", clientID).Msg("Feed client dropped")
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))

			msg := StreamMessage{Type: "ping", Timestamp: time.Now()}
			if werr := conn.WriteJSON(msg); werr != nil {
				return
			}
		}
	}
}
