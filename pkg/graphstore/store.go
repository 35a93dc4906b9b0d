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

// Package graphstore owns the in-memory diagram: its nodes, edges and edit mode. It is the
// single writer of the graph; UI edits and live telemetry are serialised on its mutex one
// node or edge at a time.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/fanout"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
)

var (
	ErrNotEditing         = errors.New("diagram is not in edit mode")
	ErrUnknownNode        = errors.New("unknown node")
	ErrInvalidConnection  = errors.New("edges must connect a sensor to a PLC")
	ErrInvalidPort        = errors.New("invalid PLC port handle")
	ErrPortOccupied       = errors.New("PLC port is already connected")
	ErrSensorAlreadyWired = errors.New("sensor is already connected")
	ErrKindMismatch       = errors.New("node data does not match node kind")
	// ErrSensorWithoutLocation rejects wiring a sensor that has no place yet.
	ErrSensorWithoutLocation = errors.New("sensor has no location")
)

// Persister writes a finished diagram to durable storage.
type Persister interface {
	Save(ctx context.Context, graph models.Graph) error
}

// Store is the authoritative owner of one diagram session's graph.
type Store struct {
	mu    sync.RWMutex
	nodes []models.Node
	edges []models.Edge

	// editing mirrors the machine state so readers never call into the FSM.
	editing bool
	mode    *fsm.FSM

	persister Persister
	saves     sync.WaitGroup

	observers *fanout.Fanout[Event]
	log       *zap.SugaredLogger
}

// NewStore creates an empty store in live mode. persister may be nil, in which case finishing an
// edit is not persisted.
func NewStore(persister Persister, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	s := &Store{
		nodes:     []models.Node{},
		edges:     []models.Edge{},
		persister: persister,
		observers: fanout.New[Event](observerBuffer),
		log:       log,
	}
	s.mode = s.newEditModeMachine()

	return s
}

// AddNode appends a node of the given kind. A nil data gets the kind's defaults; the edit flag of
// the payload always mirrors the store.
func (s *Store) AddNode(kind models.NodeKind, position models.Position, data models.NodeData) (models.Node, error) {
	if _, err := models.ParseNodeKind(string(kind)); err != nil {
		return models.Node{}, err
	}

	s.mu.Lock()

	if data == nil {
		var err error
		if data, err = models.DefaultData(kind, s.editing); err != nil {
			s.mu.Unlock()

			return models.Node{}, err
		}
	}
	if data.Kind() != kind {
		s.mu.Unlock()

		return models.Node{}, fmt.Errorf("%w: %s carries %s data", ErrKindMismatch, kind, data.Kind())
	}

	node := models.Node{
		ID:       uuid.NewString(),
		Kind:     kind,
		Position: position,
		Data:     data,
	}
	node = node.Clone()
	node.SetEditMode(s.editing)
	s.nodes = append(s.nodes, node)
	out := node.Clone()

	s.mu.Unlock()

	s.log.Debugf("Added %s node %s", kind, node.ID)
	s.observers.Publish(Event{Type: EventNodesChanged, IDs: []string{node.ID}})

	return out, nil
}

// RemoveNode removes the node and every edge touching it. Unknown ids are a no-op. Edit mode is
// not checked here; callers gate it.
func (s *Store) RemoveNode(id string) bool {
	s.mu.Lock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()

		return false
	}

	s.nodes = append(s.nodes[:idx:idx], s.nodes[idx+1:]...)
	s.edges = filterEdges(s.edges, func(e models.Edge) bool { return !e.Touches(id) })

	s.mu.Unlock()

	s.log.Debugf("Removed node %s", id)
	s.observers.Publish(Event{Type: EventNodesChanged, IDs: []string{id}})
	s.observers.Publish(Event{Type: EventEdgesChanged})

	return true
}

// UpdateNodes replaces the node list. Ids are the identity of a node; edges whose endpoint is
// no longer present are dropped. The whole list is rejected if any node is malformed. Outside
// edit mode only positions and payloads may change: a list that adds or drops a node fails with
// ErrNotEditing.
func (s *Store) UpdateNodes(nodes []models.Node) error {
	next := make([]models.Node, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))

	for _, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrUnknownNode)
		}
		if _, err := models.ParseNodeKind(string(n.Kind)); err != nil {
			return err
		}
		if n.Data != nil && n.Data.Kind() != n.Kind {
			return fmt.Errorf("%w: node %s", ErrKindMismatch, n.ID)
		}
		if _, dup := seen[n.ID]; dup {
			s.log.Debugf("Ignoring duplicate node %s", n.ID)

			continue
		}
		seen[n.ID] = struct{}{}
		next = append(next, n.Clone())
	}

	s.mu.Lock()

	if !s.editing && !s.sameMembersLocked(next) {
		s.mu.Unlock()

		return fmt.Errorf("%w: node list adds or removes nodes", ErrNotEditing)
	}
	for i := range next {
		if next[i].Data == nil {
			next[i].Data, _ = models.DefaultData(next[i].Kind, s.editing)
		}
		next[i].SetEditMode(s.editing)
	}
	s.nodes = next
	before := len(s.edges)
	s.edges = s.normalizeEdgesLocked(s.edges, nil)
	dropped := before - len(s.edges)

	s.mu.Unlock()

	if dropped > 0 {
		s.log.Debugf("Dropped %d dangling edges after node update", dropped)
	}
	s.observers.Publish(Event{Type: EventNodesChanged})
	if dropped > 0 {
		s.observers.Publish(Event{Type: EventEdgesChanged})
	}

	return nil
}

// UpdateNodeLocation sets the location of a sensor node. Only allowed while editing.
func (s *Store) UpdateNodeLocation(id string, place *models.Place) error {
	s.mu.Lock()

	if !s.editing {
		s.mu.Unlock()

		return ErrNotEditing
	}
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	sensor, ok := s.nodes[idx].Sensor()
	if !ok {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s is not a sensor", ErrKindMismatch, id)
	}
	if place == nil {
		sensor.Location = nil
	} else {
		loc := *place
		sensor.Location = &loc
	}

	s.mu.Unlock()

	s.observers.Publish(Event{Type: EventNodesChanged, IDs: []string{id}})

	return nil
}

// RenamePLC sets the display name of a PLC node. Only allowed while editing.
func (s *Store) RenamePLC(id string, name string) error {
	s.mu.Lock()

	if !s.editing {
		s.mu.Unlock()

		return ErrNotEditing
	}
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	plc, ok := s.nodes[idx].PLC()
	if !ok {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s is not a PLC", ErrKindMismatch, id)
	}
	plc.Name = name

	s.mu.Unlock()

	s.observers.Publish(Event{Type: EventNodesChanged, IDs: []string{id}})

	return nil
}

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (models.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := s.indexOfLocked(id)
	if idx < 0 {
		return models.Node{}, false
	}

	return s.nodes[idx].Clone(), true
}

// EditMode reports whether the diagram is being edited.
func (s *Store) EditMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.editing
}

// Snapshot returns a deep copy of the graph.
func (s *Store) Snapshot() models.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.Graph {
	nodes := make([]models.Node, len(s.nodes))
	for i, n := range s.nodes {
		nodes[i] = n.Clone()
	}

	edges := make([]models.Edge, 0, len(s.edges))
	if err := deepcopy.Copy(&edges, &s.edges); err != nil {
		// Edge is a flat struct; fall back to a plain copy.
		edges = append(edges[:0], s.edges...)
	}

	return models.Graph{Nodes: nodes, Edges: edges, EditMode: s.editing}
}

// Hydrate replaces the whole graph with a loaded diagram. Flags are normalised to the current
// mode and edges that violate the wiring rules are dropped.
func (s *Store) Hydrate(diagram models.Diagram) {
	nodes := make([]models.Node, 0, len(diagram.Nodes))
	seen := make(map[string]struct{}, len(diagram.Nodes))

	for _, n := range diagram.Nodes {
		if _, dup := seen[n.ID]; dup || n.ID == "" {
			continue
		}
		seen[n.ID] = struct{}{}
		nodes = append(nodes, n.Clone())
	}

	s.mu.Lock()

	for i := range nodes {
		if nodes[i].Data == nil || nodes[i].Data.Kind() != nodes[i].Kind {
			nodes[i].Data, _ = models.DefaultData(nodes[i].Kind, s.editing)
		}
		nodes[i].SetEditMode(s.editing)
	}
	s.nodes = nodes
	s.edges = s.normalizeEdgesLocked(diagram.Edges, nil)
	nodeCount, edgeCount := len(s.nodes), len(s.edges)

	s.mu.Unlock()

	s.log.Infof("Hydrated diagram with %d nodes and %d edges", nodeCount, edgeCount)
	s.observers.Publish(Event{Type: EventHydrated})
}

// Wait blocks until all in-flight saves have finished.
func (s *Store) Wait() {
	s.saves.Wait()
}

// Subscribe returns a channel of change events and a function that cancels the subscription.
func (s *Store) Subscribe() (<-chan Event, func()) {
	return s.observers.Subscribe()
}

func (s *Store) indexOfLocked(id string) int {
	for i := range s.nodes {
		if s.nodes[i].ID == id {
			return i
		}
	}

	return -1
}

// sameMembersLocked reports whether nodes holds exactly the ids of the current graph.
func (s *Store) sameMembersLocked(nodes []models.Node) bool {
	if len(nodes) != len(s.nodes) {
		return false
	}
	for _, n := range nodes {
		if s.indexOfLocked(n.ID) < 0 {
			return false
		}
	}

	return true
}

func (s *Store) kindOfLocked(id string) (models.NodeKind, bool) {
	idx := s.indexOfLocked(id)
	if idx < 0 {
		return "", false
	}

	return s.nodes[idx].Kind, true
}

func filterEdges(edges []models.Edge, keep func(models.Edge) bool) []models.Edge {
	out := make([]models.Edge, 0, len(edges))
	for _, e := range edges {
		if keep(e) {
			out = append(out, e)
		}
	}

	return out
}

func (s *Store) updateEditModeMetric() {
	metrics.SetEditMode(s.editing)
}
