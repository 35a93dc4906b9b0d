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

import (
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
)

// ApplyTelemetry patches the live readings of the sensors named in the frame. Only the three
// live fields change and a null reading clears its field; entries for unknown nodes or PLCs are
// dropped. Returns the number of entries applied.
func (s *Store) ApplyTelemetry(frame models.TelemetryFrame) int {
	if len(frame.Content) == 0 {
		return 0
	}

	s.mu.Lock()

	applied := make([]string, 0, len(frame.Content))
	for _, entry := range frame.Content {
		idx := s.indexOfLocked(entry.ID)
		if idx < 0 {
			metrics.IncTelemetryDropped(metrics.DropUnknownNode)

			continue
		}

		switch data := s.nodes[idx].Data.(type) {
		case *models.SensorData:
			data.Temperature = copyReading(entry.Temperature)
			data.AverageTemperature = copyReading(entry.AverageTemperature)
			data.Condition = copyReading(entry.Condition)
			applied = append(applied, entry.ID)
			metrics.IncTelemetryApplied()
		default:
			metrics.IncTelemetryDropped(metrics.DropNotSensor)
		}
	}

	s.mu.Unlock()

	if len(applied) > 0 {
		s.observers.Publish(Event{Type: EventTelemetry, IDs: applied})
	}

	return len(applied)
}

// copyReading keeps the store from aliasing the decoded frame.
func copyReading[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v

	return &c
}
