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

// Package config loads the service configuration from defaults, an optional YAML file and the
// environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"gopkg.in/yaml.v3"

	"github.com/JustDevDev/thermolink/pkg/constants"
	"github.com/JustDevDev/thermolink/pkg/livechannel"
	"github.com/JustDevDev/thermolink/pkg/providers/location"
	"github.com/JustDevDev/thermolink/pkg/session"
)

// Config is the complete service configuration.
type Config struct {
	APIURL    string `yaml:"apiUrl" validate:"required,url"`
	WSURL     string `yaml:"wsUrl" validate:"required,url"`
	UserEmail string `yaml:"userEmail" validate:"omitempty,email"`
	AuthToken string `yaml:"authToken"`

	HTTPAddr    string `yaml:"httpAddr" validate:"required"`
	MetricsAddr string `yaml:"metricsAddr" validate:"required"`
	HealthAddr  string `yaml:"healthAddr" validate:"required"`

	WSAutoReconnect        bool `yaml:"wsAutoReconnect"`
	WSReconnectIntervalMs  int  `yaml:"wsReconnectIntervalMs" validate:"gt=0"`
	WSMaxReconnectAttempts int  `yaml:"wsMaxReconnectAttempts" validate:"gte=0"`

	PlaceDebounceMs  int `yaml:"placeDebounceMs" validate:"gte=0"`
	PlaceCacheTTLSec int `yaml:"placeCacheTtlSeconds" validate:"gt=0"`

	InsecureTLS bool   `yaml:"insecureTls"`
	Version     string `yaml:"version"`
	SentryDSN   string `yaml:"sentryDsn" validate:"omitempty,url"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:               ":8080",
		MetricsAddr:            ":2112",
		HealthAddr:             ":8086",
		WSAutoReconnect:        true,
		WSReconnectIntervalMs:  int(constants.DefaultReconnectInterval / time.Millisecond),
		WSMaxReconnectAttempts: constants.DefaultMaxReconnectAttempts,
		PlaceDebounceMs:        int(constants.PlaceDebounce / time.Millisecond),
		PlaceCacheTTLSec:       int(constants.PlaceCacheTTL / time.Second),
		Version:                constants.DefaultAppVersion,
	}
}

var validate = validator.New()

// Load builds the configuration: defaults, then the YAML file named by CONFIG_FILE, then the
// environment variables.
func Load() (Config, error) {
	cfg := Default()

	path, err := env.GetAsString("CONFIG_FILE", false, "")
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		if cfg, err = LoadFile(cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto base. Keys missing from the file keep their base
// value.
func LoadFile(base Config, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	str := func(key string, target *string) {
		v, err := env.GetAsString(key, false, *target)
		errs = append(errs, err)
		*target = v
	}
	num := func(key string, target *int) {
		v, err := env.GetAsInt(key, false, *target)
		errs = append(errs, err)
		*target = v
	}
	flag := func(key string, target *bool) {
		v, err := env.GetAsBool(key, false, *target)
		errs = append(errs, err)
		*target = v
	}

	str("API_URL", &cfg.APIURL)
	str("WS_URL", &cfg.WSURL)
	str("USER_EMAIL", &cfg.UserEmail)
	str("AUTH_TOKEN", &cfg.AuthToken)
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("METRICS_ADDR", &cfg.MetricsAddr)
	str("HEALTH_ADDR", &cfg.HealthAddr)
	flag("WS_AUTO_RECONNECT", &cfg.WSAutoReconnect)
	num("WS_RECONNECT_INTERVAL_MS", &cfg.WSReconnectIntervalMs)
	num("WS_MAX_RECONNECT_ATTEMPTS", &cfg.WSMaxReconnectAttempts)
	num("PLACE_DEBOUNCE_MS", &cfg.PlaceDebounceMs)
	num("PLACE_CACHE_TTL_S", &cfg.PlaceCacheTTLSec)
	flag("INSECURE_TLS", &cfg.InsecureTLS)
	str("VERSION", &cfg.Version)
	str("SENTRY_DSN", &cfg.SentryDSN)

	return errors.Join(errs...)
}

// Validate checks the struct constraints and names every offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", e.Field(), e.Tag()))
	}

	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// Session returns the diagram session settings.
func (c Config) Session() session.Config {
	channel := livechannel.DefaultConfig(c.WSURL)
	channel.AutoReconnect = c.WSAutoReconnect
	channel.ReconnectInterval = time.Duration(c.WSReconnectIntervalMs) * time.Millisecond
	channel.MaxReconnectAttempts = c.WSMaxReconnectAttempts

	place := location.DefaultConfig()
	place.Debounce = time.Duration(c.PlaceDebounceMs) * time.Millisecond
	place.CacheTTL = time.Duration(c.PlaceCacheTTLSec) * time.Second

	return session.Config{
		APIURL:      c.APIURL,
		Email:       c.UserEmail,
		Token:       c.AuthToken,
		InsecureTLS: c.InsecureTLS,
		Channel:     channel,
		Location:    place,
	}
}
