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

package persistence_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/persistence"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

var _ = Describe("DeriveTopology", func() {
	It("should derive sensors with their connections and PLCs with their names", func() {
		graph := models.Graph{
			Nodes: []models.Node{
				{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{Location: &models.Place{ID: "p", City: "Prague"}}},
				{ID: "p1", Kind: models.KindPLC, Data: &models.PLCData{Name: "PLC-A"}},
			},
			Edges: []models.Edge{
				{ID: "e1", Source: "s1", Target: "p1", TargetHandle: "port-2"},
			},
		}

		Expect(persistence.DeriveTopology(graph)).To(Equal(models.Topology{
			Sensors: []models.SensorRecord{{
				ID:          "s1",
				Place:       "Prague",
				Connections: []models.Connection{{PLCID: "p1", Port: 2}},
			}},
			PLCs: []models.PLCRecord{{ID: "p1", Name: "PLC-A"}},
		}))
	})

	It("should give an unwired sensor an empty connection list and an unset place", func() {
		graph := models.Graph{Nodes: []models.Node{
			{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{}},
		}}

		topology := persistence.DeriveTopology(graph)
		Expect(topology.Sensors).To(HaveLen(1))
		Expect(topology.Sensors[0].Place).To(BeEmpty())
		Expect(topology.Sensors[0].Connections).ToNot(BeNil())
		Expect(topology.Sensors[0].Connections).To(BeEmpty())
		Expect(topology.PLCs).ToNot(BeNil())
		Expect(topology.PLCs).To(BeEmpty())
	})

	It("should map a malformed port handle to port 0", func() {
		graph := models.Graph{
			Nodes: []models.Node{
				{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{}},
				{ID: "p1", Kind: models.KindPLC, Data: &models.PLCData{}},
			},
			Edges: []models.Edge{{ID: "e1", Source: "s1", Target: "p1", TargetHandle: "input-3"}},
		}

		topology := persistence.DeriveTopology(graph)
		Expect(topology.Sensors[0].Connections).To(Equal([]models.Connection{{PLCID: "p1", Port: 0}}))
	})

	It("should encode with the keys the backend expects", func() {
		topology := persistence.DeriveTopology(models.Graph{
			Nodes: []models.Node{
				{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{}},
				{ID: "p1", Kind: models.KindPLC, Data: &models.PLCData{Name: "A"}},
			},
			Edges: []models.Edge{{ID: "e1", Source: "s1", Target: "p1", TargetHandle: "port-1"}},
		})

		encoded, err := safejson.Marshal(topology)
		Expect(err).ToNot(HaveOccurred())
		Expect(encoded).To(MatchJSON(`{
			"sensors": [{"id": "s1", "place": "", "connections": [{"PLCId": "p1", "port": 1}]}],
			"PLCs": [{"id": "p1", "name": "A"}]
		}`))
	})
})
