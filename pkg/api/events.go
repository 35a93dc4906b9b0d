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
	"io"
	"time"

	"github.com/gin-gonic/gin"
)

// keepAliveInterval keeps idle event streams open through proxies.
const keepAliveInterval = 15 * time.Second

// streamEvents pushes store changes, alerts and place lookup results as server-sent events. The
// graph itself is not sent; clients refetch what the event names.
func (h *handler) streamEvents(c *gin.Context) {
	graphEvents, cancelGraph := h.session.Store().Subscribe()
	defer cancelGraph()
	alerts, cancelAlerts := h.session.Alerts().Subscribe()
	defer cancelAlerts()
	places, cancelPlaces := h.session.SubscribePlaces()
	defer cancelPlaces()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	h.log.Debugf("Event stream opened by %s", c.ClientIP())

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case e, ok := <-graphEvents:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
		case a, ok := <-alerts:
			if !ok {
				return false
			}
			c.SSEvent("alert", a)
		case r, ok := <-places:
			if !ok {
				return false
			}
			c.SSEvent("places", r)
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
		}

		return true
	})

	h.log.Debugf("Event stream closed by %s", c.ClientIP())
}
