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

package persistence

import "github.com/JustDevDev/thermolink/pkg/models"

// DeriveTopology builds the relational form of the graph: every sensor with its place and
// outgoing connections, and every PLC with its name. Malformed port handles map to port 0.
func DeriveTopology(graph models.Graph) models.Topology {
	topology := models.Topology{
		Sensors: []models.SensorRecord{},
		PLCs:    []models.PLCRecord{},
	}

	for _, node := range graph.Nodes {
		switch node.Kind {
		case models.KindSensor:
			record := models.SensorRecord{
				ID:          node.ID,
				Connections: []models.Connection{},
			}
			if data, ok := node.Sensor(); ok {
				record.Place = data.PlaceLabel()
			}
			for _, edge := range graph.Edges {
				if edge.Source != node.ID {
					continue
				}
				record.Connections = append(record.Connections, models.Connection{
					PLCID: edge.Target,
					Port:  models.ParsePort(edge.TargetHandle),
				})
			}
			topology.Sensors = append(topology.Sensors, record)
		case models.KindPLC:
			record := models.PLCRecord{ID: node.ID}
			if data, ok := node.PLC(); ok {
				record.Name = data.Name
			}
			topology.PLCs = append(topology.PLCs, record)
		}
	}

	return topology
}
