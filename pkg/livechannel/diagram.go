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

package livechannel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/alert"
	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/safejson"
	"github.com/JustDevDev/thermolink/pkg/sentry"
)

// TelemetryHandler receives every decoded telemetry frame.
type TelemetryHandler func(frame models.TelemetryFrame)

// DiagramChannel authenticates with the user's email on every connect and routes "diagram"
// frames to the telemetry handler.
type DiagramChannel struct {
	socket      *Socket
	email       string
	onTelemetry TelemetryHandler
	alerter     alert.Alerter
	log         *zap.SugaredLogger
}

func NewDiagramChannel(cfg Config, email string, onTelemetry TelemetryHandler, alerter alert.Alerter, log *zap.SugaredLogger) *DiagramChannel {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	c := &DiagramChannel{
		email:       email,
		onTelemetry: onTelemetry,
		alerter:     alerter,
		log:         log,
	}
	c.socket = NewSocket(cfg, Handlers{
		OnConnected:    c.onConnected,
		OnDisconnected: c.onDisconnected,
		OnError:        c.onError,
		OnMessage:      c.onMessage,
		OnExhausted:    c.onExhausted,
	}, log)

	return c
}

func (c *DiagramChannel) Connect(ctx context.Context) error {
	return c.socket.Connect(ctx)
}

func (c *DiagramChannel) Disconnect() {
	c.socket.Disconnect()
}

func (c *DiagramChannel) Send(v any) error {
	return c.socket.Send(v)
}

func (c *DiagramChannel) IsConnected() bool {
	return c.socket.IsConnected()
}

func (c *DiagramChannel) onConnected() {
	if err := c.socket.Send(models.NewAuthMessage(c.email)); err != nil {
		c.log.Errorf("Failed to send auth message: %s", err)
	}
}

func (c *DiagramChannel) onDisconnected(intentional bool) {
	if intentional {
		return
	}
	if c.alerter != nil {
		c.alerter.Error(constants.AlertChannelLost)
	}
}

func (c *DiagramChannel) onError(err error) {
	c.log.Debugf("Live channel error: %s", err)
}

func (c *DiagramChannel) onExhausted(attempts int) {
	sentry.ReportIssueWithContext(
		fmt.Errorf("live channel gave up after %d reconnect attempts", attempts),
		sentry.IssueTypeWarning,
		c.log,
		map[string]interface{}{"operation": "reconnect", "attempts": attempts},
	)
}

func (c *DiagramChannel) onMessage(msg models.ChannelMessage) {
	switch msg.Type {
	case models.MessageTypeDiagram:
		var frame models.TelemetryFrame
		if err := safejson.Unmarshal(msg.Message, &frame); err != nil {
			c.log.Warnf("Dropping malformed telemetry frame: %s", err)

			return
		}
		if c.onTelemetry != nil {
			c.onTelemetry(frame)
		}
	case models.MessageTypeAuth:
		c.log.Debugf("Ignoring auth echo")
	default:
		c.log.Debugf("Ignoring message of type %q", msg.Type)
	}
}
