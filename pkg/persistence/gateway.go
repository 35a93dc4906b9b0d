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

// Package persistence round-trips the diagram with the thermolink backend. A save writes the
// visual blob first and the derived relational topology second.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/httpclient"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

var (
	// ErrSaveVisual marks a failed write of the visual blob. Nothing was written.
	ErrSaveVisual = errors.New("failed to save diagram layout")
	// ErrSaveTopology marks a failed write of the topology. The blob of the same save is already
	// stored.
	ErrSaveTopology = errors.New("failed to save diagram topology")
)

// DeserializationError is returned by Load when a stored blob cannot be decoded.
type DeserializationError struct {
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("malformed diagram blob: %s", e.Err)
}

func (e *DeserializationError) Unwrap() error {
	return e.Err
}

// Gateway talks to the diagram endpoints of the backend.
type Gateway struct {
	client *httpclient.Client
	log    *zap.SugaredLogger

	lastFingerprint atomic.Uint64
}

func NewGateway(client *httpclient.Client, log *zap.SugaredLogger) *Gateway {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Gateway{client: client, log: log}
}

// Load fetches the stored diagram. A missing or empty blob is an empty diagram; a blob that does
// not decode is returned as *DeserializationError.
func (g *Gateway) Load(ctx context.Context) (models.Diagram, error) {
	result, err, status := httpclient.GetRequest[models.DiagramSource](ctx, g.client, constants.DiagramSourceEndpoint, nil)
	if err != nil {
		if status == http.StatusNotFound {
			g.log.Debugf("No diagram stored yet")
			metrics.IncLoad(metrics.ResultEmpty)

			return EmptyDiagram(), nil
		}
		metrics.IncLoad(metrics.ResultError)

		return models.Diagram{}, fmt.Errorf("failed to load diagram: %w", err)
	}

	if result == nil || strings.TrimSpace(result.Diagram) == "" {
		metrics.IncLoad(metrics.ResultEmpty)

		return EmptyDiagram(), nil
	}

	diagram, err := Decode(result.Diagram)
	if err != nil {
		metrics.IncLoad(metrics.ResultCorrupt)

		return models.Diagram{}, err
	}

	metrics.IncLoad(metrics.ResultOK)
	g.log.Debugf("Loaded diagram with %d nodes and %d edges (fingerprint %x)", len(diagram.Nodes), len(diagram.Edges), Fingerprint(result.Diagram))

	return diagram, nil
}

// Save writes the blob and then the derived topology. Either failure fails the save; the two
// writes are not transactional.
func (g *Gateway) Save(ctx context.Context, graph models.Graph) (err error) {
	start := time.Now()
	defer func() {
		result := metrics.ResultOK
		if err != nil {
			result = metrics.ResultError
		}
		metrics.ObserveSave(result, time.Since(start))
	}()

	blob, err := Encode(graph.Diagram())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveVisual, err)
	}

	fingerprint := Fingerprint(blob)
	source := models.DiagramSource{Diagram: blob}
	if _, err, _ := httpclient.PostRequest[models.DiagramSource](ctx, g.client, constants.DiagramSourceEndpoint, &source); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveVisual, err)
	}
	g.lastFingerprint.Store(fingerprint)

	topology := DeriveTopology(graph)
	if _, err, _ := httpclient.PostRequest[models.Topology](ctx, g.client, constants.DiagramDataEndpoint, &topology); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveTopology, err)
	}

	g.log.Infof("Saved diagram with %d nodes and %d edges (fingerprint %x)", len(graph.Nodes), len(graph.Edges), fingerprint)

	return nil
}

// LastFingerprint is the xxhash of the last blob the backend accepted, 0 before the first save.
func (g *Gateway) LastFingerprint() uint64 {
	return g.lastFingerprint.Load()
}

// Fingerprint hashes a serialized blob.
func Fingerprint(blob string) uint64 {
	return xxhash.Sum64String(blob)
}

// EmptyDiagram has non nil slices so it encodes as empty arrays.
func EmptyDiagram() models.Diagram {
	return models.Diagram{Nodes: []models.Node{}, Edges: []models.Edge{}}
}

// Encode serializes the diagram into the blob format.
func Encode(diagram models.Diagram) (string, error) {
	if diagram.Nodes == nil {
		diagram.Nodes = []models.Node{}
	}
	if diagram.Edges == nil {
		diagram.Edges = []models.Edge{}
	}

	b, err := safejson.Marshal(diagram)
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// Decode parses a blob.
func Decode(blob string) (models.Diagram, error) {
	var diagram models.Diagram
	if err := safejson.Unmarshal([]byte(blob), &diagram); err != nil {
		return models.Diagram{}, &DeserializationError{Err: err}
	}
	if diagram.Nodes == nil {
		diagram.Nodes = []models.Node{}
	}
	if diagram.Edges == nil {
		diagram.Edges = []models.Edge{}
	}

	return diagram, nil
}
