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

// Package shutdown runs the shutdown tasks once SIGINT/SIGTERM arrives or a shutdown is
// requested programmatically.
package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/logger"
)

// DefaultTimeout matches the grace period Kubernetes gives a pod after SIGTERM.
const DefaultTimeout = 30 * time.Second

// ErrShuttingDown is returned by Check once a shutdown started.
var ErrShuttingDown = errors.New("shutting down")

type Handler interface {
	Shutdown()          // Triggers a graceful shutdown programmatically.
	ShuttingDown() bool // Quickly checks if a shutdown is in progress.
	Wait() error        // Blocks until shutdown tasks are complete.
	Check() error       // Readiness check failing during shutdown.
}

type gracefulShutdown struct {
	quit         chan os.Signal
	shuttingDown atomic.Bool
	wg           sync.WaitGroup
	err          error
	log          *zap.SugaredLogger
}

// New installs the signal handler. onShutdown, if not nil, runs once with a context that expires
// after timeout.
func New(timeout time.Duration, onShutdown func(ctx context.Context) error) Handler {
	gs := &gracefulShutdown{
		quit: make(chan os.Signal, 1),
		log:  logger.For(logger.ComponentShutdown),
	}
	signal.Notify(gs.quit, syscall.SIGINT, syscall.SIGTERM)
	gs.wg.Add(1)

	go gs.run(timeout, onShutdown)

	return gs
}

func (gs *gracefulShutdown) run(timeout time.Duration, onShutdown func(ctx context.Context) error) {
	defer gs.wg.Done()

	sig := <-gs.quit
	signal.Stop(gs.quit)
	gs.shuttingDown.Store(true)
	gs.log.Infow("Received signal, shutting down", "signal", sig.String())

	if onShutdown == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- onShutdown(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			gs.log.Errorw("Error during shutdown", "error", err)
			gs.err = err

			return
		}
		gs.log.Info("Shutdown tasks completed. Ready to exit.")
	case <-ctx.Done():
		gs.log.Errorw("Shutdown tasks did not complete in time", "timeout", timeout)
		gs.err = ctx.Err()
	}
}

func (gs *gracefulShutdown) ShuttingDown() bool {
	return gs.shuttingDown.Load()
}

func (gs *gracefulShutdown) Shutdown() {
	// Only send a signal if we are not already shutting down.
	if gs.shuttingDown.CompareAndSwap(false, true) {
		select {
		case gs.quit <- syscall.SIGTERM:
		default:
		}
	}
}

func (gs *gracefulShutdown) Wait() error {
	gs.wg.Wait()

	return gs.err
}

func (gs *gracefulShutdown) Check() error {
	if gs.ShuttingDown() {
		return ErrShuttingDown
	}

	return nil
}
