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

// Package portmetrics simulates the per port activity sparkline of PLC nodes. The values are
// decorative; they only follow a high/low alternating shape.
package portmetrics

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/models"
)

// seedSeries is the initial window of every port.
var seedSeries = [models.PortCount][constants.PortMetricsWindow]float64{
	{9, 1, 9, 0, 9, 2, 9, 1, 8, 0},
	{9, 0, 9, 1, 9, 0, 8, 9, 1, 9},
	{8, 1, 9, 0, 9, 2, 9, 0, 9, 1},
	{9, 2, 8, 1, 9, 0, 9, 1, 9, 0},
}

// highThreshold separates high from low samples.
const highThreshold = 5

// NextSample follows a high sample with an integer in [0,2] and a low one with a value in [8,9).
func NextSample(last float64, rng *rand.Rand) float64 {
	if last > highThreshold {
		return float64(rng.IntN(3))
	}

	return 8 + rng.Float64()
}

// Options tune a simulator. Zero values take the defaults.
type Options struct {
	MinInterval time.Duration
	MaxInterval time.Duration
	// Seed makes the generated series reproducible when not zero.
	Seed uint64
	// OnSample is called after every update with a copy of the port's window.
	OnSample func(plcID string, port int, series []float64)
}

func (o Options) withDefaults() Options {
	if o.MinInterval <= 0 {
		o.MinInterval = constants.PortMetricsMinInterval
	}
	if o.MaxInterval < o.MinInterval {
		o.MaxInterval = constants.PortMetricsMaxInterval
		if o.MaxInterval < o.MinInterval {
			o.MaxInterval = o.MinInterval
		}
	}

	return o
}

// Simulator keeps the rolling windows of one PLC.
type Simulator struct {
	plcID string
	opts  Options

	mu     sync.Mutex
	series [models.PortCount][]float64
	rng    *rand.Rand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSimulator(plcID string, opts Options) *Simulator {
	opts = opts.withDefaults()

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	s := &Simulator{
		plcID: plcID,
		opts:  opts,
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	for port := range s.series {
		s.series[port] = append([]float64(nil), seedSeries[port][:]...)
	}

	return s
}

// Start runs one updater per port until ctx is cancelled or Stop is called.
func (s *Simulator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for port := range models.PortCount {
		s.wg.Add(1)
		go s.run(ctx, port)
	}
}

// Stop cancels the updaters and waits for them.
func (s *Simulator) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Simulator) run(ctx context.Context, port int) {
	defer s.wg.Done()

	timer := time.NewTimer(s.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Step(port)
			timer.Reset(s.nextInterval())
		}
	}
}

func (s *Simulator) nextInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	spread := s.opts.MaxInterval - s.opts.MinInterval
	if spread <= 0 {
		return s.opts.MinInterval
	}

	return s.opts.MinInterval + time.Duration(s.rng.Int64N(int64(spread)))
}

// Step appends one sample to the port's window, dropping the oldest, and returns it.
func (s *Simulator) Step(port int) float64 {
	if port < 0 || port >= models.PortCount {
		return 0
	}

	s.mu.Lock()
	window := s.series[port]
	sample := NextSample(window[len(window)-1], s.rng)
	window = append(window[1:len(window):len(window)], sample)
	s.series[port] = window
	snapshot := append([]float64(nil), window...)
	s.mu.Unlock()

	if s.opts.OnSample != nil {
		s.opts.OnSample(s.plcID, port, snapshot)
	}

	return sample
}

// Series returns a copy of all four windows.
func (s *Simulator) Series() [][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]float64, len(s.series))
	for i, w := range s.series {
		out[i] = append([]float64(nil), w...)
	}

	return out
}
