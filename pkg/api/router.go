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

// Package api is the local HTTP surface the dashboard UI drives the diagram session through.
package api

import (
	"fmt"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/JustDevDev/thermolink/pkg/logger"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/sentry"
	"github.com/JustDevDev/thermolink/pkg/session"
)

// BasePath prefixes every diagram route.
const BasePath = "/api/v1"

type handler struct {
	session *session.Session
	log     *zap.SugaredLogger
}

// NewRouter builds the gin engine serving the session.
func NewRouter(s *session.Session) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Logs all requests, like a combined access and error log.
	router.Use(ginzap.Ginzap(logger.GetLogger(), time.RFC3339, true))

	h := &handler{session: s, log: logger.For(logger.ComponentAPI)}
	router.Use(gin.CustomRecovery(h.recover))

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	v1 := router.Group(BasePath)
	{
		v1.GET("/graph", h.getGraph)
		v1.GET("/events", h.streamEvents)

		v1.POST("/nodes", h.addNode)
		v1.PUT("/nodes", h.updateNodes)
		v1.DELETE("/nodes/:id", h.removeNode)
		v1.GET("/nodes/:id/connected", h.isNodeConnected)
		v1.PUT("/nodes/:id/name", h.renamePLC)
		v1.PUT("/nodes/:id/location", h.selectPlace)
		v1.POST("/nodes/:id/places", h.searchPlaces)
		v1.GET("/nodes/:id/places", h.getPlaces)

		v1.POST("/edges", h.addEdge)
		v1.PUT("/edges", h.updateEdges)
		v1.DELETE("/edges/:id", h.removeEdge)
		v1.GET("/connections", h.canConnect)

		v1.GET("/plcs/:id/ports/:port", h.isPortAvailable)
		v1.GET("/plcs/:id/metrics", h.getPortMetrics)

		v1.GET("/edit-mode", h.getEditMode)
		v1.PUT("/edit-mode", h.setEditMode)
		v1.POST("/edit-mode/toggle", h.toggleEditMode)

		v1.GET("/channel", h.getChannel)
	}

	return router
}

func (h *handler) recover(c *gin.Context, recovered any) {
	sentry.ReportIssueWithContext(fmt.Errorf("panic in %s %s: %v", c.Request.Method, c.FullPath(), recovered), sentry.IssueTypeError, h.log, map[string]interface{}{
		"component": metrics.ComponentAPI,
		"operation": c.FullPath(),
	})
	c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
}
