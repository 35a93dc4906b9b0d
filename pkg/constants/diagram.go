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

package constants

import "time"

const (
	// DefaultAppVersion is the version reported by local builds. Sentry stays disabled for it.
	DefaultAppVersion             = "0.0.0-dev"
	DefaultDevelopmentEnvironment = "development"
	DefaultProductionEnvironment  = "production"
)

// Backend endpoints, relative to the API URL.
const (
	DiagramSourceEndpoint = "api/diagram/source"
	DiagramDataEndpoint   = "api/diagram/data"
	PlaceSearchEndpoint   = "api/place"
)

// Live channel defaults.
const (
	DefaultReconnectInterval    = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
	// DialTimeout bounds a single websocket handshake.
	DialTimeout = 15 * time.Second
	// WriteTimeout bounds a single outbound frame.
	WriteTimeout = 10 * time.Second
)

// Persistence defaults.
const (
	// SaveTimeout bounds the two sequential writes of a save.
	SaveTimeout = 30 * time.Second
	LoadTimeout = 30 * time.Second
)

// Place lookup defaults.
const (
	PlaceMinQueryLength = 2
	PlaceDebounce       = 400 * time.Millisecond
	PlaceCacheTTL       = 10 * time.Minute
	PlaceCacheCull      = time.Minute
	PlaceLookupTimeout  = 10 * time.Second
)

// Port metrics simulation.
const (
	PortMetricsWindow      = 10
	PortMetricsMinInterval = 1500 * time.Millisecond
	PortMetricsMaxInterval = 3000 * time.Millisecond
)

// Alert message keys understood by the dashboard translations.
const (
	AlertDiagramSaved     = "diagram.diagramSuccessSavedMessage"
	AlertDiagramSaveError = "error.diagramErrorSavedMessage"
	AlertChannelLost      = "error.errorData"
)

// Backend session.
const (
	// JWTCookieName is the cookie the backend reads the session token from.
	JWTCookieName = "jwt"
	// RequestTimeout is applied to backend requests when the caller passes no deadline.
	RequestTimeout = 30 * time.Second
)
