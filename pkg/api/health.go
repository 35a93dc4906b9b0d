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

package api

import (
	"github.com/heptiolabs/healthcheck"
)

// goroutineThreshold fails liveness when the process leaks goroutines.
const goroutineThreshold = 200

// NewHealthHandler serves /live and /ready. ready reports whether the session can serve the UI;
// shuttingDown fails readiness once a shutdown started.
func NewHealthHandler(ready healthcheck.Check, shuttingDown healthcheck.Check) healthcheck.Handler {
	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(goroutineThreshold))
	health.AddReadinessCheck("session", ready)
	if shuttingDown != nil {
		health.AddReadinessCheck("shutdown", shuttingDown)
	}

	return health
}
