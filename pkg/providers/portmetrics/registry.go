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

package portmetrics

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/models"
)

// Registry owns one simulator per PLC node of the diagram.
type Registry struct {
	opts Options
	log  *zap.SugaredLogger

	mu     sync.Mutex
	ctx    context.Context
	sims   map[string]*Simulator
	closed bool
}

// NewRegistry creates a registry whose simulators live until ctx is cancelled or Close is called.
func NewRegistry(ctx context.Context, opts Options, log *zap.SugaredLogger) *Registry {
	return &Registry{
		opts: opts,
		log:  log,
		ctx:  ctx,
		sims: make(map[string]*Simulator),
	}
}

// Sync starts simulators for PLC nodes of the graph that have none and stops the ones whose node
// is gone.
func (r *Registry) Sync(graph models.Graph) {
	wanted := make(map[string]struct{})
	for _, n := range graph.Nodes {
		if n.Kind == models.KindPLC {
			wanted[n.ID] = struct{}{}
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return
	}

	var stale []*Simulator
	for id, sim := range r.sims {
		if _, ok := wanted[id]; !ok {
			stale = append(stale, sim)
			delete(r.sims, id)
			r.log.Debugf("Stopped port metrics of PLC %s", id)
		}
	}
	for id := range wanted {
		if _, ok := r.sims[id]; ok {
			continue
		}
		sim := NewSimulator(id, r.opts)
		sim.Start(r.ctx)
		r.sims[id] = sim
		r.log.Debugf("Started port metrics of PLC %s", id)
	}
	r.mu.Unlock()

	for _, sim := range stale {
		sim.Stop()
	}
}

// Series returns the four port windows of a PLC.
func (r *Registry) Series(plcID string) ([][]float64, bool) {
	r.mu.Lock()
	sim, ok := r.sims[plcID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}

	return sim.Series(), true
}

// Len returns the number of running simulators.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sims)
}

// Close stops all simulators. Later calls to Sync are ignored.
func (r *Registry) Close() {
	r.mu.Lock()
	sims := r.sims
	r.sims = make(map[string]*Simulator)
	r.closed = true
	r.mu.Unlock()

	for _, sim := range sims {
		sim.Stop()
	}
}
