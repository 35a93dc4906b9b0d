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
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JustDevDev/thermolink/pkg/graphstore"
	"github.com/JustDevDev/thermolink/pkg/metrics"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps store errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, graphstore.ErrUnknownNode):
		return http.StatusNotFound
	case errors.Is(err, graphstore.ErrNotEditing),
		errors.Is(err, graphstore.ErrInvalidConnection),
		errors.Is(err, graphstore.ErrInvalidPort),
		errors.Is(err, graphstore.ErrPortOccupied),
		errors.Is(err, graphstore.ErrSensorAlreadyWired),
		errors.Is(err, graphstore.ErrSensorWithoutLocation):
		return http.StatusConflict
	case errors.Is(err, graphstore.ErrKindMismatch),
		errors.Is(err, models.ErrUnknownNodeKind):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		metrics.IncErrorCountAndLog(metrics.ComponentAPI, c.FullPath(), err, h.log)
	} else {
		h.log.Debugf("%s %s rejected: %s", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func (h *handler) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// bindJSON decodes the body with the same codec the diagram blob uses.
func bindJSON(c *gin.Context, v any) error {
	body, err := c.GetRawData()
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errors.New("empty request body")
	}

	return safejson.Unmarshal(body, v)
}

// requireEditing aborts with 409 outside edit mode.
func (h *handler) requireEditing(c *gin.Context) bool {
	if h.session.Store().EditMode() {
		return true
	}
	h.fail(c, graphstore.ErrNotEditing)

	return false
}
