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

package sentry

import (
	"fmt"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

type IssueType string

const (
	IssueTypeWarning IssueType = "warning"
	IssueTypeError   IssueType = "error"
)

// debounceWindow limits how often the same operation is sent to Sentry.
const debounceWindow = 2 * time.Hour

var (
	shouldDebounce = true
	lastSent       = map[string]time.Time{}
	lastSentMu     sync.Mutex
)

// EnableTestMode disables debouncing for testing.
func EnableTestMode() {
	lastSentMu.Lock()
	defer lastSentMu.Unlock()
	shouldDebounce = false
	lastSent = map[string]time.Time{}
}

// DisableTestMode restores normal debouncing behavior.
func DisableTestMode() {
	lastSentMu.Lock()
	defer lastSentMu.Unlock()
	shouldDebounce = true
}

func ReportIssue(err error, issueType IssueType, log *zap.SugaredLogger) {
	ReportIssueWithContext(err, issueType, log, nil)
}

func ReportIssuef(issueType IssueType, log *zap.SugaredLogger, template string, args ...interface{}) {
	ReportIssue(fmt.Errorf(template, args...), issueType, log)
}

// ReportIssueWithContext logs the issue and sends it to Sentry with the context as tags. Issues
// are debounced per level and operation.
func ReportIssueWithContext(err error, issueType IssueType, log *zap.SugaredLogger, context map[string]interface{}) {
	if err == nil {
		return
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	level := sentry.LevelError
	if issueType == IssueTypeWarning {
		level = sentry.LevelWarning
		log.Warnw(err.Error(), flatten(context)...)
	} else {
		log.Errorw(err.Error(), flatten(context)...)
	}

	if !allow(string(issueType), context) {
		return
	}
	sendSentryEvent(createSentryEvent(level, err, context))
}

// ReportOperationError reports a failure of a named operation of a component.
func ReportOperationError(log *zap.SugaredLogger, component string, operation string, err error) {
	ReportIssueWithContext(err, IssueTypeError, log, map[string]interface{}{
		"component": component,
		"operation": operation,
	})
}

func allow(issueType string, context map[string]interface{}) bool {
	lastSentMu.Lock()
	defer lastSentMu.Unlock()

	if !shouldDebounce {
		return true
	}

	key := issueType
	if op, ok := context["operation"]; ok {
		key = fmt.Sprintf("%s/%v", issueType, op)
	}
	if t, ok := lastSent[key]; ok && time.Since(t) < debounceWindow {
		return false
	}
	lastSent[key] = time.Now()

	return true
}

func flatten(context map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, len(context)*2)
	for k, v := range context {
		out = append(out, k, v)
	}

	return out
}
