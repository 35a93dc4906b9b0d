// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package livechannel is a reconnecting, JSON framed WebSocket client. Socket is protocol
// agnostic and reports through a Handlers record; DiagramChannel speaks the thermolink
// telemetry protocol on top of it.
package livechannel

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

var ErrNotConnected = errors.New("live channel is not connected")

// Config controls where the socket connects and how it recovers from unexpected closes.
type Config struct {
	URL    string
	Header http.Header

	AutoReconnect        bool
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
}

// DefaultConfig reconnects every 5 seconds, at most 5 times in a row.
func DefaultConfig(url string) Config {
	return Config{
		URL:                  url,
		AutoReconnect:        true,
		ReconnectInterval:    constants.DefaultReconnectInterval,
		MaxReconnectAttempts: constants.DefaultMaxReconnectAttempts,
	}
}

// Handlers are invoked from the socket's goroutines, never while it holds its lock. Nil
// handlers are skipped.
type Handlers struct {
	OnConnected    func()
	OnDisconnected func(intentional bool)
	OnError        func(err error)
	OnMessage      func(msg models.ChannelMessage)
	// OnExhausted is called once the reconnect attempts are used up.
	OnExhausted func(attempts int)
}

// Socket is a single WebSocket connection that re-dials after unexpected closes.
type Socket struct {
	cfg      Config
	handlers Handlers
	dialer   *websocket.Dialer
	log      *zap.SugaredLogger

	mu          sync.Mutex
	conn        *websocket.Conn
	connecting  bool
	intentional bool
	retries     backoff.BackOff
	attempts    int
	timer       *time.Timer

	writeMu sync.Mutex
}

func NewSocket(cfg Config, handlers Handlers, log *zap.SugaredLogger) *Socket {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = constants.DefaultReconnectInterval
	}

	return &Socket{
		cfg:      cfg,
		handlers: handlers,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: constants.DialTimeout,
		},
		log:     log,
		retries: newRetryPolicy(cfg),
	}
}

func newRetryPolicy(cfg Config) backoff.BackOff {
	if !cfg.AutoReconnect || cfg.MaxReconnectAttempts <= 0 {
		return &backoff.StopBackOff{}
	}

	return backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.ReconnectInterval), uint64(cfg.MaxReconnectAttempts))
}

// Connect opens the connection. It is a no-op while a connection is open or being opened. A
// manual connect restarts the reconnect budget.
func (s *Socket) Connect(ctx context.Context) error {
	return s.connect(ctx, true)
}

func (s *Socket) connect(ctx context.Context, manual bool) error {
	s.mu.Lock()
	if s.conn != nil || s.connecting {
		s.mu.Unlock()

		return nil
	}
	if manual {
		s.intentional = false
		s.stopTimerLocked()
		s.retries.Reset()
		s.attempts = 0
	} else if s.intentional {
		s.mu.Unlock()

		return nil
	}
	s.connecting = true
	s.mu.Unlock()

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.URL, s.cfg.Header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	s.mu.Lock()
	s.connecting = false
	if err != nil {
		s.mu.Unlock()

		s.log.Warnf("Failed to connect to %s: %s", s.cfg.URL, err)
		s.emitError(err)
		s.scheduleReconnect()

		return err
	}
	if s.intentional {
		// Disconnect was called while dialing.
		s.mu.Unlock()
		_ = conn.Close()

		return nil
	}
	s.conn = conn
	s.retries.Reset()
	s.attempts = 0
	s.mu.Unlock()

	s.log.Infof("Connected to %s", s.cfg.URL)
	metrics.SetChannelConnected(true)

	go s.readLoop(conn)

	if s.handlers.OnConnected != nil {
		s.handlers.OnConnected()
	}

	return nil
}

// Disconnect closes the connection on purpose: no alert, no reconnect. A pending reconnect is
// cancelled.
func (s *Socket) Disconnect() {
	s.mu.Lock()
	s.intentional = true
	s.stopTimerLocked()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return
	}

	s.writeMu.Lock()
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	s.writeMu.Unlock()
	_ = conn.Close()

	s.log.Infof("Disconnected from %s", s.cfg.URL)
	metrics.SetChannelConnected(false)
	if s.handlers.OnDisconnected != nil {
		s.handlers.OnDisconnected(true)
	}
}

// Send encodes v as JSON and writes it. Nothing is queued: when the socket is closed the
// message is dropped and ErrNotConnected returned.
func (s *Socket) Send(v any) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		s.log.Errorf("Cannot send message: %s", ErrNotConnected)

		return ErrNotConnected
	}

	payload, err := safejson.Marshal(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(constants.WriteTimeout)); err != nil {
		return err
	}

	return conn.WriteMessage(websocket.TextMessage, payload)
}

// IsConnected reports whether a connection is open.
func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil
}

// Attempts is the number of automatic reconnects since the last successful connect.
func (s *Socket) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.attempts
}

func (s *Socket) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.handleClosed(conn, err)

			return
		}

		var msg models.ChannelMessage
		if err := safejson.Unmarshal(data, &msg); err != nil {
			s.log.Warnf("Dropping unparsable message: %s", err)

			continue
		}

		if s.handlers.OnMessage != nil {
			s.handlers.OnMessage(msg)
		}
	}
}

func (s *Socket) handleClosed(conn *websocket.Conn, err error) {
	s.mu.Lock()
	if s.conn != conn {
		// Replaced or closed by Disconnect.
		s.mu.Unlock()

		return
	}
	s.conn = nil
	intentional := s.intentional
	s.mu.Unlock()

	_ = conn.Close()
	metrics.SetChannelConnected(false)

	s.log.Warnf("Connection to %s closed: %s", s.cfg.URL, err)
	if s.handlers.OnDisconnected != nil {
		s.handlers.OnDisconnected(intentional)
	}
	if !intentional {
		s.scheduleReconnect()
	}
}

// scheduleReconnect arms the single reconnect timer if the budget allows it.
func (s *Socket) scheduleReconnect() {
	s.mu.Lock()

	if s.intentional || s.timer != nil || s.conn != nil || !s.cfg.AutoReconnect {
		s.mu.Unlock()

		return
	}

	next := s.retries.NextBackOff()
	if next == backoff.Stop {
		attempts := s.attempts
		s.mu.Unlock()

		s.log.Warnf("Giving up reconnecting to %s after %d attempts", s.cfg.URL, attempts)
		if s.handlers.OnExhausted != nil {
			s.handlers.OnExhausted(attempts)
		}

		return
	}

	s.attempts++
	attempt := s.attempts
	s.timer = time.AfterFunc(next, func() {
		s.mu.Lock()
		s.timer = nil
		skip := s.intentional || s.conn != nil
		s.mu.Unlock()
		if skip {
			return
		}

		s.log.Infof("Reconnecting to %s (attempt %d/%d)", s.cfg.URL, attempt, s.cfg.MaxReconnectAttempts)
		metrics.IncReconnectAttempt()

		ctx, cancel := context.WithTimeout(context.Background(), constants.DialTimeout)
		defer cancel()
		_ = s.connect(ctx, false)
	})

	s.mu.Unlock()
}

func (s *Socket) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Socket) emitError(err error) {
	if s.handlers.OnError != nil {
		s.handlers.OnError(err)
	}
}
