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

// Package location resolves free text place queries of sensor nodes into place suggestions.
// Queries are debounced per node and only the answer to a node's latest query is kept.
package location

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/united-manufacturing-hub/expiremap/v2/pkg/expiremap"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/httpclient"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
)

const (
	sourceCache   = "cache"
	sourceBackend = "backend"
	sourceStale   = "stale"
)

// LocationWriter is the part of the graph store the resolver writes selections through.
type LocationWriter interface {
	UpdateNodeLocation(id string, place *models.Place) error
}

type Config struct {
	MinQueryLength int
	Debounce       time.Duration
	CacheTTL       time.Duration
}

func DefaultConfig() Config {
	return Config{
		MinQueryLength: constants.PlaceMinQueryLength,
		Debounce:       constants.PlaceDebounce,
		CacheTTL:       constants.PlaceCacheTTL,
	}
}

// Result is the published state of a node's lookup.
type Result struct {
	NodeID string         `json:"nodeId"`
	Query  string         `json:"query"`
	Places []models.Place `json:"places"`
	Error  string         `json:"error,omitempty"`
}

type lookup struct {
	generation uint64
	timer      *time.Timer
	result     Result
	pending    bool
}

// Resolver holds the per node lookup state of one session.
type Resolver struct {
	client   *httpclient.Client
	store    LocationWriter
	cfg      Config
	cache    *expiremap.ExpireMap[string, []models.Place]
	onResult func(Result)
	log      *zap.SugaredLogger

	mu      sync.Mutex
	lookups map[string]*lookup
	closed  bool
}

// NewResolver creates a resolver. onResult, if set, is called with every published result.
func NewResolver(client *httpclient.Client, store LocationWriter, cfg Config, onResult func(Result), log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if cfg.MinQueryLength <= 0 {
		cfg.MinQueryLength = constants.PlaceMinQueryLength
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = constants.PlaceCacheTTL
	}

	return &Resolver{
		client:   client,
		store:    store,
		cfg:      cfg,
		cache:    expiremap.NewEx[string, []models.Place](constants.PlaceCacheCull, cfg.CacheTTL),
		onResult: onResult,
		log:      log,
		lookups:  make(map[string]*lookup),
	}
}

// Search records a keystroke. The lookup runs once the query has been stable for the debounce
// interval; every call supersedes the previous one for the node.
func (r *Resolver) Search(nodeID, query string) {
	query = strings.TrimSpace(query)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()

		return
	}

	l := r.lookupLocked(nodeID)
	l.generation++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}

	if len([]rune(query)) < r.cfg.MinQueryLength {
		l.pending = false
		l.result = Result{NodeID: nodeID, Query: query, Places: []models.Place{}}
		result := l.result
		r.mu.Unlock()

		r.publish(result)

		return
	}

	generation := l.generation
	l.pending = true
	l.timer = time.AfterFunc(r.cfg.Debounce, func() {
		r.resolve(nodeID, query, generation)
	})
	r.mu.Unlock()
}

// Suggestions returns the latest published result for the node and whether a lookup is still
// outstanding.
func (r *Resolver) Suggestions(nodeID string) (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.lookups[nodeID]
	if !ok {
		return Result{NodeID: nodeID, Places: []models.Place{}}, false
	}

	return l.result, l.pending
}

// Select stores the chosen place on the sensor node. The store rejects it outside edit mode.
func (r *Resolver) Select(nodeID string, place models.Place) error {
	if err := r.store.UpdateNodeLocation(nodeID, &place); err != nil {
		return err
	}

	r.Forget(nodeID)

	return nil
}

// Forget drops the lookup state of a node, e.g. after it was removed.
func (r *Resolver) Forget(nodeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.lookups[nodeID]; ok {
		if l.timer != nil {
			l.timer.Stop()
		}
		delete(r.lookups, nodeID)
	}
}

// Close cancels every pending lookup.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	for id, l := range r.lookups {
		if l.timer != nil {
			l.timer.Stop()
		}
		delete(r.lookups, id)
	}
}

func (r *Resolver) lookupLocked(nodeID string) *lookup {
	l, ok := r.lookups[nodeID]
	if !ok {
		l = &lookup{}
		r.lookups[nodeID] = l
	}

	return l
}

func (r *Resolver) resolve(nodeID, query string, generation uint64) {
	key := strings.ToLower(query)

	if cached, ok := r.cache.Load(key); ok {
		metrics.IncPlaceLookup(sourceCache)
		r.finish(nodeID, generation, Result{NodeID: nodeID, Query: query, Places: *cached})

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), constants.PlaceLookupTimeout)
	defer cancel()

	suggestions, err, _ := httpclient.GetRequest[[]models.PlaceSuggestion](ctx, r.client, constants.PlaceSearchEndpoint, url.Values{"place": {query}})
	if err != nil {
		r.log.Warnf("Place lookup for %q failed: %s", query, err)
		r.finish(nodeID, generation, Result{NodeID: nodeID, Query: query, Places: []models.Place{}, Error: err.Error()})

		return
	}

	places := []models.Place{}
	if suggestions != nil {
		places = models.PlacesFromSuggestions(*suggestions)
	}
	r.cache.Set(key, places)
	metrics.IncPlaceLookup(sourceBackend)

	r.finish(nodeID, generation, Result{NodeID: nodeID, Query: query, Places: places})
}

// finish publishes the result unless a newer query for the node superseded it.
func (r *Resolver) finish(nodeID string, generation uint64, result Result) {
	r.mu.Lock()
	l, ok := r.lookups[nodeID]
	if !ok || l.generation != generation {
		r.mu.Unlock()
		metrics.IncPlaceLookup(sourceStale)
		r.log.Debugf("Discarding stale place result for %q", result.Query)

		return
	}
	l.timer = nil
	l.pending = false
	l.result = result
	r.mu.Unlock()

	r.publish(result)
}

func (r *Resolver) publish(result Result) {
	if r.onResult != nil {
		r.onResult(result)
	}
}
