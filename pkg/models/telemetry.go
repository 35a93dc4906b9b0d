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

package models

import "github.com/goccy/go-json"

// TelemetryEntry carries the current readings of one sensor. A reading that is null or missing
// in the frame stays nil.
type TelemetryEntry struct {
	ID                 string   `json:"id"`
	Temperature        *float64 `json:"temperature"`
	AverageTemperature *float64 `json:"averageTemperature"`
	Condition          *string  `json:"condition"`
}

// TelemetryFrame is the payload of a "diagram" channel message.
type TelemetryFrame struct {
	Content []TelemetryEntry `json:"content"`
}

// MessageType discriminates channel messages.
type MessageType string

const (
	MessageTypeAuth    MessageType = "auth"
	MessageTypeDiagram MessageType = "diagram"
)

// ChannelMessage is the envelope of every frame on the live channel. Outbound frames use Data,
// inbound frames use Message.
type ChannelMessage struct {
	Type    MessageType     `json:"type"`
	Data    any             `json:"data,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// AuthPayload is sent right after the channel opens.
type AuthPayload struct {
	Email string `json:"email"`
}

// NewAuthMessage builds the handshake frame for the given user.
func NewAuthMessage(email string) ChannelMessage {
	return ChannelMessage{Type: MessageTypeAuth, Data: AuthPayload{Email: email}}
}
