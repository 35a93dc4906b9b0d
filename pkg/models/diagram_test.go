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

package models_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

var _ = Describe("Node kinds", func() {
	It("accepts the two wire kinds only", func() {
		kind, err := models.ParseNodeKind("sensorNode")
		Expect(err).ToNot(HaveOccurred())
		Expect(kind).To(Equal(models.KindSensor))

		_, err = models.ParseNodeKind("robotNode")
		Expect(err).To(MatchError(models.ErrUnknownNodeKind))
	})
})

var _ = Describe("Port handles", func() {
	DescribeTable("validity",
		func(handle string, valid bool, port int) {
			h := models.PortHandle(handle)
			Expect(h.Valid()).To(Equal(valid))
			Expect(models.ParsePort(h)).To(Equal(port))
		},
		Entry("first port", "port-0", true, 0),
		Entry("last port", "port-3", true, 3),
		Entry("past the last port", "port-4", false, 4),
		Entry("garbage suffix", "port-x", false, 0),
		Entry("missing prefix", "3", false, 0),
	)

	It("builds handles from indexes", func() {
		Expect(models.PortHandleFor(2)).To(Equal(models.PortHandle("port-2")))
	})
})

var _ = Describe("Node wire format", func() {
	It("writes sensors with the city object", func() {
		node := models.Node{
			ID:       "s1",
			Kind:     models.KindSensor,
			Position: models.Position{X: 1, Y: 2},
			Data:     &models.SensorData{Name: "Hall", Location: &models.Place{ID: "ChIJ", City: "Brno"}},
		}

		data, err := safejson.Marshal(node)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(MatchJSON(`{
			"id":"s1","type":"sensorNode","position":{"x":1,"y":2},
			"data":{"name":"Hall","city":{"id":"ChIJ","city":"Brno"},"temperature":null,"averageTemperature":null,"condition":null,"editMode":false}
		}`))
	})

	It("emits an empty city for unplaced sensors", func() {
		data, err := safejson.Marshal(models.Node{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{}})
		Expect(err).ToNot(HaveOccurred())
		Expect(string(data)).To(ContainSubstring(`"city":{"id":"","city":""}`))
	})

	It("reads a PLC", func() {
		var node models.Node
		Expect(safejson.Unmarshal([]byte(`{"id":"p1","type":"plcNode","position":{"x":0,"y":0},"data":{"name":"A"}}`), &node)).To(Succeed())

		plc, ok := node.PLC()
		Expect(ok).To(BeTrue())
		Expect(plc.Name).To(Equal("A"))
		_, ok = node.Sensor()
		Expect(ok).To(BeFalse())
	})

	It("reads an empty city as no location", func() {
		var node models.Node
		Expect(safejson.Unmarshal([]byte(`{"id":"s1","type":"sensorNode","position":{"x":0,"y":0},"data":{"city":{"id":"","city":""}}}`), &node)).To(Succeed())

		sensor, ok := node.Sensor()
		Expect(ok).To(BeTrue())
		Expect(sensor.Location).To(BeNil())
		Expect(sensor.PlaceLabel()).To(BeEmpty())
	})

	It("copies the payload on clone", func() {
		temperature := 20.0
		node := models.Node{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{Temperature: &temperature}}

		clone := node.Clone()
		sensor, _ := clone.Sensor()
		*sensor.Temperature = 30

		original, _ := node.Sensor()
		Expect(*original.Temperature).To(Equal(20.0))
	})
})

var _ = Describe("Place suggestions", func() {
	It("maps the place label onto the city", func() {
		places := models.PlacesFromSuggestions([]models.PlaceSuggestion{{ID: "a", Place: "Brno"}})
		Expect(places).To(Equal([]models.Place{{ID: "a", City: "Brno"}}))
	})
})
