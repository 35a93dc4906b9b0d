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
	"fmt"

	"github.com/google/uuid"

	"github.com/JustDevDev/thermolink/pkg/models"
)

// EdgeRequest is a connection attempt from a sensor to a PLC port.
type EdgeRequest struct {
	Source       string            `json:"source"`
	Target       string            `json:"target"`
	TargetHandle models.PortHandle `json:"targetHandle"`
}

// wiring tracks the occupied ports and wired sensors of an edge set.
type wiring struct {
	ports   map[string]struct{}
	sensors map[string]struct{}
}

func newWiring() wiring {
	return wiring{
		ports:   make(map[string]struct{}),
		sensors: make(map[string]struct{}),
	}
}

func portKey(plcID string, handle models.PortHandle) string {
	return plcID + "/" + string(handle)
}

func (w wiring) add(e models.Edge) {
	w.ports[portKey(e.Target, e.TargetHandle)] = struct{}{}
	w.sensors[e.Source] = struct{}{}
}

func (w wiring) portFree(plcID string, handle models.PortHandle) bool {
	_, taken := w.ports[portKey(plcID, handle)]

	return !taken
}

func (w wiring) sensorFree(sensorID string) bool {
	_, taken := w.sensors[sensorID]

	return !taken
}

func wiringOf(edges []models.Edge) wiring {
	w := newWiring()
	for _, e := range edges {
		w.add(e)
	}

	return w
}

// AddEdge connects a sensor to a PLC port. It is only allowed while editing.
func (s *Store) AddEdge(req EdgeRequest) (models.Edge, error) {
	s.mu.Lock()

	if !s.editing {
		s.mu.Unlock()

		return models.Edge{}, ErrNotEditing
	}
	if err := s.checkConnectionLocked(req, wiringOf(s.edges)); err != nil {
		s.mu.Unlock()

		return models.Edge{}, err
	}

	edge := models.Edge{
		ID:           uuid.NewString(),
		Source:       req.Source,
		Target:       req.Target,
		TargetHandle: req.TargetHandle,
		Animated:     !s.editing,
		Type:         models.DefaultEdgeType,
	}
	s.edges = append(s.edges, edge)

	s.mu.Unlock()

	s.log.Debugf("Connected sensor %s to %s of PLC %s", req.Source, req.TargetHandle, req.Target)
	s.observers.Publish(Event{Type: EventEdgesChanged, IDs: []string{edge.ID}})

	return edge, nil
}

// RemoveEdge disconnects an edge. Unknown ids are a no-op.
func (s *Store) RemoveEdge(id string) bool {
	s.mu.Lock()

	before := len(s.edges)
	s.edges = filterEdges(s.edges, func(e models.Edge) bool { return e.ID != id })
	removed := len(s.edges) != before

	s.mu.Unlock()

	if removed {
		s.observers.Publish(Event{Type: EventEdgesChanged, IDs: []string{id}})
	}

	return removed
}

// IsPortAvailable reports whether nothing is connected to the port of the PLC.
func (s *Store) IsPortAvailable(plcID string, port int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return wiringOf(s.edges).portFree(plcID, models.PortHandleFor(port))
}

// CanConnect reports whether AddEdge would accept the request.
func (s *Store) CanConnect(req EdgeRequest) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.editing && s.checkConnectionLocked(req, wiringOf(s.edges)) == nil
}

// IsNodeConnected reports whether any edge starts or ends at the node.
func (s *Store) IsNodeConnected(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.edges {
		if e.Touches(id) {
			return true
		}
	}

	return false
}

// UpdateEdges replaces the edge list. Edges that reference unknown nodes or break the wiring
// rules are dropped, first one wins; an edge that is not yet in the graph also needs a located
// sensor. Only allowed while editing. Returns the number of dropped edges.
func (s *Store) UpdateEdges(edges []models.Edge) (int, error) {
	s.mu.Lock()

	if !s.editing {
		s.mu.Unlock()

		return 0, ErrNotEditing
	}
	existing := make(map[string]struct{}, len(s.edges))
	for _, e := range s.edges {
		existing[e.ID] = struct{}{}
	}
	s.edges = s.normalizeEdgesLocked(edges, existing)
	dropped := len(edges) - len(s.edges)

	s.mu.Unlock()

	if dropped > 0 {
		s.log.Debugf("Dropped %d invalid edges", dropped)
	}
	s.observers.Publish(Event{Type: EventEdgesChanged})

	return dropped, nil
}

// checkConnectionLocked is the gate for a new connection.
func (s *Store) checkConnectionLocked(req EdgeRequest, w wiring) error {
	if err := s.checkWiringLocked(req, w); err != nil {
		return err
	}

	return s.checkLocatedLocked(req.Source)
}

func (s *Store) checkWiringLocked(req EdgeRequest, w wiring) error {
	sourceKind, ok := s.kindOfLocked(req.Source)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, req.Source)
	}
	targetKind, ok := s.kindOfLocked(req.Target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, req.Target)
	}
	if sourceKind != models.KindSensor || targetKind != models.KindPLC {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidConnection, sourceKind, targetKind)
	}
	if !req.TargetHandle.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPort, req.TargetHandle)
	}
	if !w.portFree(req.Target, req.TargetHandle) {
		return fmt.Errorf("%w: %s of %s", ErrPortOccupied, req.TargetHandle, req.Target)
	}
	if !w.sensorFree(req.Source) {
		return fmt.Errorf("%w: %s", ErrSensorAlreadyWired, req.Source)
	}

	return nil
}

func (s *Store) checkLocatedLocked(sensorID string) error {
	idx := s.indexOfLocked(sensorID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownNode, sensorID)
	}
	if sensor, ok := s.nodes[idx].Sensor(); !ok || sensor.PlaceLabel() == "" {
		return fmt.Errorf("%w: %s", ErrSensorWithoutLocation, sensorID)
	}

	return nil
}

// normalizeEdgesLocked returns a copy of edges that satisfies the wiring rules against the
// current nodes, with the animation flag recomputed. Edges whose id is missing from existing are
// new connections and must pass the full connection gate; a nil existing skips that check, as
// stored wiring outlives a later change of the sensor's place.
func (s *Store) normalizeEdgesLocked(edges []models.Edge, existing map[string]struct{}) []models.Edge {
	out := make([]models.Edge, 0, len(edges))
	ids := make(map[string]struct{}, len(edges))
	w := newWiring()

	for _, e := range edges {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, dup := ids[e.ID]; dup {
			continue
		}
		req := EdgeRequest{Source: e.Source, Target: e.Target, TargetHandle: e.TargetHandle}
		check := s.checkWiringLocked
		if _, known := existing[e.ID]; existing != nil && !known {
			check = s.checkConnectionLocked
		}
		if err := check(req, w); err != nil {
			s.log.Debugf("Dropping edge %s: %s", e.ID, err)

			continue
		}
		if e.Type == "" {
			e.Type = models.DefaultEdgeType
		}
		e.Animated = !s.editing
		ids[e.ID] = struct{}{}
		w.add(e)
		out = append(out, e)
	}

	return out
}
