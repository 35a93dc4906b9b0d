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
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/models"
)

const (
	// StateLive is the initial state: topology is frozen and telemetry animates the edges.
	StateLive = "live"
	// StateEditing allows topology changes.
	StateEditing = "editing"

	EventEdit   = "edit"
	EventFinish = "finish"
)

func (s *Store) newEditModeMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateLive,
		fsm.Events{
			{Name: EventEdit, Src: []string{StateLive}, Dst: StateEditing},
			{Name: EventFinish, Src: []string{StateEditing}, Dst: StateLive},
		},
		// Callbacks run while Store.mu is held by ToggleEditMode.
		fsm.Callbacks{
			"enter_" + StateEditing: func(ctx context.Context, e *fsm.Event) {
				s.applyEditModeLocked(true)
				s.log.Infof("Entered edit mode")
			},
			"enter_" + StateLive: func(ctx context.Context, e *fsm.Event) {
				s.applyEditModeLocked(false)
				s.log.Infof("Left edit mode")
				s.persistLocked(ctx)
			},
		},
	)
}

// ToggleEditMode flips between live and editing and returns the new mode. Finishing an edit
// starts a save of the graph in the background; the toggle itself never waits for it.
func (s *Store) ToggleEditMode(ctx context.Context) bool {
	s.mu.Lock()

	event := EventEdit
	if s.editing {
		event = EventFinish
	}
	if err := s.mode.Event(ctx, event); err != nil {
		s.log.Errorf("Edit mode transition %s failed: %s", event, err)
	}
	editing := s.editing

	s.mu.Unlock()

	s.observers.Publish(Event{Type: EventEditModeChanged})

	return editing
}

// SetEditMode moves to the requested mode; it is a no-op when already there.
func (s *Store) SetEditMode(ctx context.Context, editing bool) bool {
	if s.EditMode() == editing {
		return editing
	}

	return s.ToggleEditMode(ctx)
}

func (s *Store) applyEditModeLocked(editing bool) {
	s.editing = editing
	for i := range s.nodes {
		s.nodes[i].SetEditMode(editing)
	}
	for i := range s.edges {
		s.edges[i].Animated = !editing
	}
	s.updateEditModeMetric()
}

// persistLocked hands a snapshot to the persister on a tracked goroutine.
func (s *Store) persistLocked(ctx context.Context) {
	if s.persister == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	graph := s.snapshotLocked()
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.SaveTimeout)

	s.saves.Add(1)
	go func(graph models.Graph) {
		defer s.saves.Done()
		defer cancel()

		start := time.Now()
		if err := s.persister.Save(saveCtx, graph); err != nil {
			s.log.Debugf("Save of %d nodes failed after %s: %s", len(graph.Nodes), time.Since(start), err)

			return
		}
		s.log.Debugf("Saved %d nodes and %d edges in %s", len(graph.Nodes), len(graph.Edges), time.Since(start))
	}(graph)
}
