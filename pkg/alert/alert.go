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

// Package alert is the user facing notification sink. Alerts carry a translation key that the
// dashboard resolves; they are fanned out to every subscribed UI stream.
package alert

import (
	"time"

	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/fanout"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Alerter is consumed by the session and the live channel.
type Alerter interface {
	Success(key string)
	Error(key string)
}

// Alert is a single notification.
type Alert struct {
	Level Level     `json:"level"`
	Key   string    `json:"key"`
	Time  time.Time `json:"time"`
}

// subscriberBuffer is the number of alerts buffered per subscriber before new ones are dropped.
const subscriberBuffer = 16

// Sink logs alerts and broadcasts them to subscribers.
type Sink struct {
	log         *zap.SugaredLogger
	subscribers *fanout.Fanout[Alert]
}

func NewSink(log *zap.SugaredLogger) *Sink {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	return &Sink{
		log:         log,
		subscribers: fanout.New[Alert](subscriberBuffer),
	}
}

func (s *Sink) Success(key string) {
	s.log.Infof("Alert: %s", key)
	s.publish(Alert{Level: LevelSuccess, Key: key, Time: time.Now()})
}

func (s *Sink) Error(key string) {
	s.log.Warnf("Alert: %s", key)
	s.publish(Alert{Level: LevelError, Key: key, Time: time.Now()})
}

// Subscribe returns a channel of future alerts and a function that cancels the subscription.
func (s *Sink) Subscribe() (<-chan Alert, func()) {
	return s.subscribers.Subscribe()
}

func (s *Sink) publish(a Alert) {
	if dropped := s.subscribers.Publish(a); dropped > 0 {
		s.log.Debugf("Dropping alert %s for %d slow subscribers", a.Key, dropped)
	}
}
