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

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JustDevDev/thermolink/internal/shutdown"
	"github.com/JustDevDev/thermolink/pkg/alert"
	"github.com/JustDevDev/thermolink/pkg/api"
	"github.com/JustDevDev/thermolink/pkg/config"
	"github.com/JustDevDev/thermolink/pkg/logger"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/sentry"
	"github.com/JustDevDev/thermolink/pkg/session"
)

func main() {
	// Initialize the global logger first thing
	logger.Initialize()
	log := logger.For(logger.ComponentCore)
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to load config: %w", err)
		os.Exit(1)
	}

	sentry.InitSentry(cfg.Version, cfg.SentryDSN)
	log.Infof("Starting thermolink diagram session %s", cfg.Version)

	metricsServer := metrics.SetupMetricsEndpoint(cfg.MetricsAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	diagram := session.New(cfg.Session(), alert.NewSink(logger.For(logger.ComponentAlert)))
	if err := diagram.Mount(ctx); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "Failed to mount diagram session: %w", err)
		os.Exit(1)
	}

	baseContext := func(net.Listener) context.Context { return ctx }
	apiServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(diagram),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       baseContext,
	}
	healthServer := &http.Server{
		Addr:              cfg.HealthAddr,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       baseContext,
	}

	gs := shutdown.New(shutdown.DefaultTimeout, func(shutdownCtx context.Context) error {
		// Ends the event streams and stops the servers below.
		cancel()

		errs := []error{
			apiServer.Shutdown(shutdownCtx),
			healthServer.Shutdown(shutdownCtx),
		}
		diagram.Unmount()
		errs = append(errs, metricsServer.Shutdown(shutdownCtx))

		return errors.Join(errs...)
	})
	healthServer.Handler = api.NewHealthHandler(diagram.Ready, gs.Check)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(serve(apiServer, log))
	g.Go(serve(healthServer, log))
	g.Go(func() error {
		// A failing server takes the process down.
		<-gctx.Done()
		gs.Shutdown()

		return nil
	})

	if err := g.Wait(); err != nil {
		sentry.ReportIssuef(sentry.IssueTypeError, log, "HTTP server failed: %w", err)
	}

	if err := gs.Wait(); err != nil {
		log.Errorf("Shutdown incomplete: %s", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	log.Info("Bye")
}

func serve(server *http.Server, log *zap.SugaredLogger) func() error {
	return func() error {
		log.Infof("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	}
}
