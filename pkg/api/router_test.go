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

package api_test

import (
	"bufio"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/h2non/gock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/JustDevDev/thermolink/pkg/api"
	"github.com/JustDevDev/thermolink/pkg/livechannel"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/providers/location"
	"github.com/JustDevDev/thermolink/pkg/providers/portmetrics"
	"github.com/JustDevDev/thermolink/pkg/safejson"
	"github.com/JustDevDev/thermolink/pkg/session"
)

const (
	apiURL        = "http://backend.thermolink.test"
	locatedSensor = `{"type":"sensorNode","data":{"city":{"id":"ChIJ","city":"Brno"}}}`
)

var _ = Describe("Router", func() {
	var (
		s      *session.Session
		router *gin.Engine
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, api.BasePath+path, nil)
		} else {
			req = httptest.NewRequest(method, api.BasePath+path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(safejson.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	addNode := func(body string) models.Node {
		rec := do(http.MethodPost, "/nodes", body)
		Expect(rec.Code).To(Equal(http.StatusCreated), rec.Body.String())
		var node models.Node
		decode(rec, &node)

		return node
	}

	BeforeEach(func() {
		channel := livechannel.DefaultConfig("ws://127.0.0.1:1")
		channel.AutoReconnect = false
		s = session.New(session.Config{
			APIURL:   apiURL,
			Channel:  channel,
			Location: location.DefaultConfig(),
			PortMetrics: portmetrics.Options{
				MinInterval: time.Hour,
				MaxInterval: time.Hour,
			},
		}, nil)
		gock.InterceptClient(s.HTTPClient().HTTPClient())
		gock.New(apiURL).Get("/api/diagram/source").Reply(404)
		Expect(s.Mount(context.Background())).To(Succeed())

		router = api.NewRouter(s)
	})

	AfterEach(func() {
		s.Unmount()
		gock.OffAll()
	})

	It("answers the root health probe", func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(Equal("online"))
	})

	It("serves the graph snapshot", func() {
		rec := do(http.MethodGet, "/graph", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		var graph models.Graph
		decode(rec, &graph)
		Expect(graph.Nodes).To(BeEmpty())
		Expect(graph.Edges).To(BeEmpty())
		Expect(graph.EditMode).To(BeFalse())
	})

	It("refuses structural edits outside edit mode", func() {
		Expect(do(http.MethodPost, "/nodes", `{"type":"sensorNode"}`).Code).To(Equal(http.StatusConflict))
		Expect(do(http.MethodDelete, "/nodes/x", "").Code).To(Equal(http.StatusConflict))
		Expect(do(http.MethodDelete, "/edges/x", "").Code).To(Equal(http.StatusConflict))
		Expect(do(http.MethodPut, "/nodes/x/name", `{"name":"A"}`).Code).To(Equal(http.StatusConflict))
	})

	Context("with a wired diagram in live mode", func() {
		BeforeEach(func() {
			s.Store().Hydrate(models.Diagram{
				Nodes: []models.Node{
					{ID: "s1", Kind: models.KindSensor, Data: &models.SensorData{Location: &models.Place{ID: "ChIJ", City: "Brno"}}},
					{ID: "p1", Kind: models.KindPLC, Data: &models.PLCData{Name: "PLC-A"}},
				},
				Edges: []models.Edge{{ID: "e1", Source: "s1", Target: "p1", TargetHandle: "port-0"}},
			})
		})

		It("refuses to replace the edges", func() {
			Expect(do(http.MethodPut, "/edges", `[]`).Code).To(Equal(http.StatusConflict))
			Expect(s.Store().Snapshot().Edges).To(HaveLen(1))
		})

		It("refuses a node list that drops a node", func() {
			nodes := s.Store().Snapshot().Nodes
			body, err := safejson.Marshal(nodes[:1])
			Expect(err).ToNot(HaveOccurred())

			Expect(do(http.MethodPut, "/nodes", string(body)).Code).To(Equal(http.StatusConflict))
			graph := s.Store().Snapshot()
			Expect(graph.Nodes).To(HaveLen(2))
			Expect(graph.Edges).To(HaveLen(1))
		})

		It("still moves nodes", func() {
			nodes := s.Store().Snapshot().Nodes
			nodes[1].Position = models.Position{X: 300, Y: 40}
			body, err := safejson.Marshal(nodes)
			Expect(err).ToNot(HaveOccurred())

			Expect(do(http.MethodPut, "/nodes", string(body)).Code).To(Equal(http.StatusOK))
			node, _ := s.Store().Node("p1")
			Expect(node.Position).To(Equal(models.Position{X: 300, Y: 40}))
			Expect(s.Store().Snapshot().Edges).To(HaveLen(1))
		})
	})

	Context("in edit mode", func() {
		BeforeEach(func() {
			rec := do(http.MethodPost, "/edit-mode/toggle", "")
			Expect(rec.Body.String()).To(MatchJSON(`{"editMode":true}`))
		})

		It("adds nodes at the default position", func() {
			node := addNode(`{"type":"sensorNode"}`)

			Expect(node.Kind).To(Equal(models.KindSensor))
			Expect(node.Position).To(Equal(models.DefaultPosition))
			sensor, ok := node.Sensor()
			Expect(ok).To(BeTrue())
			Expect(sensor.EditMode).To(BeTrue())
		})

		It("keeps the data of a new node", func() {
			node := addNode(`{"type":"plcNode","position":{"x":10,"y":20},"data":{"name":"PLC-A"}}`)

			plc, ok := node.PLC()
			Expect(ok).To(BeTrue())
			Expect(plc.Name).To(Equal("PLC-A"))
			Expect(node.Position).To(Equal(models.Position{X: 10, Y: 20}))
		})

		It("rejects unknown node types", func() {
			Expect(do(http.MethodPost, "/nodes", `{"type":"robotNode"}`).Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodPost, "/nodes", `{nope`).Code).To(Equal(http.StatusBadRequest))
		})

		It("wires a sensor to a free port only", func() {
			sensor := addNode(locatedSensor)
			other := addNode(locatedSensor)
			plc := addNode(`{"type":"plcNode"}`)

			rec := do(http.MethodPost, "/edges", `{"source":"`+sensor.ID+`","target":"`+plc.ID+`","targetHandle":"port-1"}`)
			Expect(rec.Code).To(Equal(http.StatusCreated))
			var edge models.Edge
			decode(rec, &edge)
			Expect(edge.Animated).To(BeFalse())

			rec = do(http.MethodPost, "/edges", `{"source":"`+other.ID+`","target":"`+plc.ID+`","targetHandle":"port-1"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))

			rec = do(http.MethodGet, "/connections?source="+other.ID+"&target="+plc.ID+"&targetHandle=port-1", "")
			Expect(rec.Body.String()).To(MatchJSON(`{"canConnect":false}`))
			rec = do(http.MethodGet, "/plcs/"+plc.ID+"/ports/2", "")
			Expect(rec.Body.String()).To(MatchJSON(`{"available":true}`))
			rec = do(http.MethodGet, "/nodes/"+sensor.ID+"/connected", "")
			Expect(rec.Body.String()).To(MatchJSON(`{"connected":true}`))
		})

		It("refuses to wire a sensor without a location", func() {
			sensor := addNode(`{"type":"sensorNode"}`)
			plc := addNode(`{"type":"plcNode"}`)

			rec := do(http.MethodGet, "/connections?source="+sensor.ID+"&target="+plc.ID+"&targetHandle=port-0", "")
			Expect(rec.Body.String()).To(MatchJSON(`{"canConnect":false}`))
			rec = do(http.MethodPost, "/edges", `{"source":"`+sensor.ID+`","target":"`+plc.ID+`","targetHandle":"port-0"}`)
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("no location"))
			Expect(s.Store().Snapshot().Edges).To(BeEmpty())
		})

		It("replaces the edge list", func() {
			sensor := addNode(locatedSensor)
			plc := addNode(`{"type":"plcNode"}`)

			rec := do(http.MethodPut, "/edges", `[{"id":"e1","source":"`+sensor.ID+`","target":"`+plc.ID+`","targetHandle":"port-2"}]`)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"dropped":0`))
			Expect(s.Store().Snapshot().Edges).To(HaveLen(1))
		})

		It("removes a node with its edges", func() {
			sensor := addNode(locatedSensor)
			plc := addNode(`{"type":"plcNode"}`)
			Expect(do(http.MethodPost, "/edges", `{"source":"`+sensor.ID+`","target":"`+plc.ID+`","targetHandle":"port-0"}`).Code).To(Equal(http.StatusCreated))

			Expect(do(http.MethodDelete, "/nodes/"+plc.ID, "").Code).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodDelete, "/nodes/"+plc.ID, "").Code).To(Equal(http.StatusNotFound))
			Expect(s.Store().Snapshot().Edges).To(BeEmpty())
		})

		It("renames PLCs", func() {
			plc := addNode(`{"type":"plcNode"}`)

			Expect(do(http.MethodPut, "/nodes/"+plc.ID+"/name", `{"name":"Boiler"}`).Code).To(Equal(http.StatusNoContent))
			node, _ := s.Store().Node(plc.ID)
			data, _ := node.PLC()
			Expect(data.Name).To(Equal("Boiler"))
		})

		It("stores a selected place on a sensor", func() {
			sensor := addNode(`{"type":"sensorNode"}`)

			rec := do(http.MethodPut, "/nodes/"+sensor.ID+"/location", `{"id":"ChIJ","city":"Brno"}`)
			Expect(rec.Code).To(Equal(http.StatusNoContent))
			node, _ := s.Store().Node(sensor.ID)
			data, _ := node.Sensor()
			Expect(data.PlaceLabel()).To(Equal("Brno"))

			Expect(do(http.MethodPut, "/nodes/"+sensor.ID+"/location", `{"city":"Brno"}`).Code).To(Equal(http.StatusBadRequest))
		})

		It("serves the port activity of a PLC", func() {
			plc := addNode(`{"type":"plcNode"}`)

			Eventually(func() int {
				return do(http.MethodGet, "/plcs/"+plc.ID+"/metrics", "").Code
			}).Should(Equal(http.StatusOK))

			var body struct {
				Ports [][]float64 `json:"ports"`
			}
			decode(do(http.MethodGet, "/plcs/"+plc.ID+"/metrics", ""), &body)
			Expect(body.Ports).To(HaveLen(models.PortCount))
			Expect(do(http.MethodGet, "/plcs/"+plc.ID+"/ports/x", "").Code).To(Equal(http.StatusBadRequest))
		})

		It("leaves edit mode through the setter", func() {
			rec := do(http.MethodPut, "/edit-mode", `{"editMode":false}`)
			Expect(rec.Body.String()).To(MatchJSON(`{"editMode":false}`))
			Expect(do(http.MethodGet, "/edit-mode", "").Body.String()).To(MatchJSON(`{"editMode":false}`))
		})
	})

	It("accepts place searches for known nodes only", func() {
		Expect(do(http.MethodPost, "/nodes/missing/places", `{"query":"Br"}`).Code).To(Equal(http.StatusNotFound))

		do(http.MethodPost, "/edit-mode/toggle", "")
		sensor := addNode(`{"type":"sensorNode"}`)
		Expect(do(http.MethodPost, "/nodes/"+sensor.ID+"/places", `{"query":"B"}`).Code).To(Equal(http.StatusAccepted))

		rec := do(http.MethodGet, "/nodes/"+sensor.ID+"/places", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"pending":false`))
	})

	It("reports the channel state", func() {
		Expect(do(http.MethodGet, "/channel", "").Body.String()).To(MatchJSON(`{"connected":false}`))
	})

	It("streams store events", func() {
		srv := httptest.NewServer(router)
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+api.BasePath+"/events", nil)
		Expect(err).ToNot(HaveOccurred())
		resp, err := srv.Client().Do(req)
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()

		// headers are flushed after the handler subscribed
		s.Store().ToggleEditMode(context.Background())

		lines := make(chan string, 16)
		go func() {
			defer GinkgoRecover()
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()

		Eventually(lines).Should(Receive(Equal("event:editMode")))
	})
})

var _ = Describe("Health", func() {
	It("fails readiness until the session is ready", func() {
		health := api.NewHealthHandler(func() error { return errors.New("not hydrated") }, nil)

		rec := httptest.NewRecorder()
		health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))

		rec = httptest.NewRecorder()
		health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
		Expect(rec.Code).To(Equal(http.StatusOK))
	})

	It("fails readiness during shutdown", func() {
		health := api.NewHealthHandler(func() error { return nil }, func() error { return errors.New("shutting down") })

		rec := httptest.NewRecorder()
		health.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		Expect(rec.Code).To(Equal(http.StatusServiceUnavailable))
	})
})
