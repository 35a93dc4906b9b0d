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

// Connection is one wire of a sensor in the relational topology.
type Connection struct {
	PLCID string `json:"PLCId"`
	Port  int    `json:"port"`
}

// SensorRecord is a sensor in the relational topology.
type SensorRecord struct {
	ID          string       `json:"id"`
	Place       string       `json:"place"`
	Connections []Connection `json:"connections"`
}

// PLCRecord is a PLC in the relational topology.
type PLCRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Topology is the request body of the diagram data endpoint. It is derived from the graph on
// every save and never patched.
type Topology struct {
	Sensors []SensorRecord `json:"sensors"`
	PLCs    []PLCRecord    `json:"PLCs"`
}

// DiagramSource is the request and response body of the diagram source endpoint.
type DiagramSource struct {
	Diagram string `json:"diagram"`
}

// PlaceSuggestion is one hit of the place search endpoint.
type PlaceSuggestion struct {
	ID    string `json:"id"`
	Place string `json:"place"`
}

// ToPlace maps the wire suggestion to the graph representation.
func (p PlaceSuggestion) ToPlace() Place {
	return Place{ID: p.ID, City: p.Place}
}

// PlacesFromSuggestions maps a whole search result.
func PlacesFromSuggestions(in []PlaceSuggestion) []Place {
	out := make([]Place, 0, len(in))
	for _, s := range in {
		out = append(out, s.ToPlace())
	}

	return out
}
