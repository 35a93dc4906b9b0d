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

// Package session wires the diagram components for one dashboard view: it loads the stored
// diagram, keeps it live through the telemetry channel and saves it when editing ends.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/alert"
	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/fanout"
	"github.com/JustDevDev/thermolink/pkg/graphstore"
	"github.com/JustDevDev/thermolink/pkg/httpclient"
	"github.com/JustDevDev/thermolink/pkg/livechannel"
	"github.com/JustDevDev/thermolink/pkg/logger"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/persistence"
	"github.com/JustDevDev/thermolink/pkg/providers/location"
	"github.com/JustDevDev/thermolink/pkg/providers/portmetrics"
	"github.com/JustDevDev/thermolink/pkg/sentry"
)

var (
	ErrNotHydrated  = errors.New("diagram not loaded yet")
	ErrDisconnected = errors.New("live channel not connected")
	ErrUnmounted    = errors.New("session was unmounted")
)

// placeFeedBuffer is the number of lookup results buffered per UI stream.
const placeFeedBuffer = 16

type Config struct {
	APIURL      string
	Email       string
	Token       string
	InsecureTLS bool

	Channel     livechannel.Config
	Location    location.Config
	PortMetrics portmetrics.Options
}

// Session is the composition root of one diagram view.
type Session struct {
	client   *httpclient.Client
	gateway  *persistence.Gateway
	store    *graphstore.Store
	channel  *livechannel.DiagramChannel
	resolver *location.Resolver
	alerts   *alert.Sink
	places   *fanout.Fanout[location.Result]
	log      *zap.SugaredLogger

	cfg Config

	mu      sync.Mutex
	mounted bool
	closed  bool
	ports   *portmetrics.Registry
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	hydrated atomic.Bool
}

func New(cfg Config, alerts *alert.Sink) *Session {
	log := logger.For(logger.ComponentSession)
	if alerts == nil {
		alerts = alert.NewSink(logger.For(logger.ComponentAlert))
	}

	s := &Session{
		client: httpclient.NewClient(cfg.APIURL, cfg.Token, cfg.InsecureTLS, logger.For(logger.ComponentHTTPClient)),
		alerts: alerts,
		places: fanout.New[location.Result](placeFeedBuffer),
		log:    log,
		cfg:    cfg,
	}
	s.gateway = persistence.NewGateway(s.client, logger.For(logger.ComponentPersistence))
	s.store = graphstore.NewStore(&reportingPersister{gateway: s.gateway, alerts: alerts, log: log}, logger.For(logger.ComponentGraphStore))
	s.channel = livechannel.NewDiagramChannel(cfg.Channel, cfg.Email, s.onTelemetry, alerts, logger.For(logger.ComponentLiveChannel))
	s.resolver = location.NewResolver(s.client, s.store, cfg.Location, s.publishPlaces, logger.For(logger.ComponentPlaceLookup))

	return s
}

// Mount loads the stored diagram into the store, starts the port simulators and opens the live
// channel. A diagram that cannot be decoded is replaced by an empty one; a backend failure fails
// the mount. A channel that cannot be opened is retried in the background.
func (s *Session) Mount(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrUnmounted
	}
	if s.mounted {
		return nil
	}

	loadCtx, cancelLoad := context.WithTimeout(ctx, constants.LoadTimeout)
	diagram, err := s.gateway.Load(loadCtx)
	cancelLoad()

	var deserializationErr *persistence.DeserializationError
	switch {
	case errors.As(err, &deserializationErr):
		sentry.ReportIssueWithContext(err, sentry.IssueTypeWarning, s.log, map[string]interface{}{
			"component": metrics.ComponentSession,
			"operation": "load",
		})
		diagram = persistence.EmptyDiagram()
	case err != nil:
		metrics.IncErrorCountAndLog(metrics.ComponentSession, "mount", err, s.log)

		return fmt.Errorf("failed to mount diagram session: %w", err)
	}

	s.store.Hydrate(diagram)
	s.hydrated.Store(true)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.ports = portmetrics.NewRegistry(runCtx, s.cfg.PortMetrics, logger.For(logger.ComponentPortMetrics))
	s.ports.Sync(s.store.Snapshot())

	events, unsubscribe := s.store.Subscribe()
	s.wg.Add(1)
	go s.watch(runCtx, events, unsubscribe)

	if err := s.channel.Connect(runCtx); err != nil {
		s.log.Warnf("Live channel not available yet, retrying in the background: %s", err)
	}

	s.mounted = true
	s.log.Infof("Diagram session mounted with %d nodes", len(diagram.Nodes))

	return nil
}

// Unmount closes the channel, stops the providers and waits for a pending save. A session cannot
// be mounted again.
func (s *Session) Unmount() {
	s.mu.Lock()
	if !s.mounted {
		s.closed = true
		s.mu.Unlock()

		return
	}
	s.mounted = false
	s.closed = true
	cancel := s.cancel
	ports := s.ports
	s.mu.Unlock()

	s.channel.Disconnect()
	s.resolver.Close()
	cancel()
	s.wg.Wait()
	ports.Close()
	s.store.Wait()

	s.log.Info("Diagram session unmounted")
}

// watch keeps the port simulators in line with the PLC nodes of the graph.
func (s *Session) watch(ctx context.Context, events <-chan graphstore.Event, unsubscribe func()) {
	defer s.wg.Done()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case graphstore.EventNodesChanged, graphstore.EventHydrated:
				s.ports.Sync(s.store.Snapshot())
			case graphstore.EventEdgesChanged, graphstore.EventTelemetry, graphstore.EventEditModeChanged:
			}
		}
	}
}

func (s *Session) onTelemetry(frame models.TelemetryFrame) {
	applied := s.store.ApplyTelemetry(frame)
	s.log.Debugf("Applied %d of %d telemetry entries", applied, len(frame.Content))
}

// RemoveNode deletes the node with its edges and drops its pending place lookup.
func (s *Session) RemoveNode(id string) bool {
	removed := s.store.RemoveNode(id)
	if removed {
		s.resolver.Forget(id)
	}

	return removed
}

// PortSeries returns the simulated port activity of a PLC.
func (s *Session) PortSeries(plcID string) ([][]float64, bool) {
	s.mu.Lock()
	ports := s.ports
	s.mu.Unlock()
	if ports == nil {
		return nil, false
	}

	return ports.Series(plcID)
}

// Ready fails until the diagram is loaded and the live channel is open.
func (s *Session) Ready() error {
	if !s.hydrated.Load() {
		return ErrNotHydrated
	}
	if !s.channel.IsConnected() {
		return ErrDisconnected
	}

	return nil
}

func (s *Session) Store() *graphstore.Store {
	return s.store
}

func (s *Session) Resolver() *location.Resolver {
	return s.resolver
}

func (s *Session) Alerts() *alert.Sink {
	return s.alerts
}

func (s *Session) Channel() *livechannel.DiagramChannel {
	return s.channel
}

func (s *Session) Gateway() *persistence.Gateway {
	return s.gateway
}

// HTTPClient is the client used for every backend request.
func (s *Session) HTTPClient() *httpclient.Client {
	return s.client
}

// SubscribePlaces streams the published place lookup results.
func (s *Session) SubscribePlaces() (<-chan location.Result, func()) {
	return s.places.Subscribe()
}

// reportingPersister turns the outcome of a save into an alert.
type reportingPersister struct {
	gateway *persistence.Gateway
	alerts  alert.Alerter
	log     *zap.SugaredLogger
}

func (p *reportingPersister) Save(ctx context.Context, graph models.Graph) error {
	if err := p.gateway.Save(ctx, graph); err != nil {
		p.alerts.Error(constants.AlertDiagramSaveError)
		sentry.ReportOperationError(p.log, metrics.ComponentPersistence, "save", err)

		return err
	}
	p.alerts.Success(constants.AlertDiagramSaved)

	return nil
}

func (s *Session) publishPlaces(result location.Result) {
	s.places.Publish(result)
}
