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

package graphstore

type EventType string

const (
	EventNodesChanged    EventType = "nodes"
	EventEdgesChanged    EventType = "edges"
	EventTelemetry       EventType = "telemetry"
	EventEditModeChanged EventType = "editMode"
	EventHydrated        EventType = "hydrated"
)

// Event tells observers what part of the graph changed. IDs is empty when the change is not
// limited to specific nodes or edges.
type Event struct {
	Type EventType `json:"type"`
	IDs  []string  `json:"ids,omitempty"`
}

// observerBuffer is the per subscriber queue; events are dropped for subscribers that fall behind.
const observerBuffer = 64
