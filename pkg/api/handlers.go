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
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/JustDevDev/thermolink/pkg/graphstore"
	"github.com/JustDevDev/thermolink/pkg/models"
	"github.com/JustDevDev/thermolink/pkg/safejson"
)

func (h *handler) getGraph(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Store().Snapshot())
}

// ---------------------- nodes ----------------------

type addNodeRequest struct {
	Type     models.NodeKind  `json:"type"`
	Position *models.Position `json:"position"`
	Data     json.RawMessage  `json:"data"`
}

func (h *handler) addNode(c *gin.Context) {
	if !h.requireEditing(c) {
		return
	}

	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, err)

		return
	}
	var req addNodeRequest
	if err := safejson.Unmarshal(body, &req); err != nil {
		h.badRequest(c, err)

		return
	}

	kind, err := models.ParseNodeKind(string(req.Type))
	if err != nil {
		h.fail(c, err)

		return
	}

	position := models.DefaultPosition
	if req.Position != nil {
		position = *req.Position
	}

	var data models.NodeData
	if len(req.Data) > 0 && string(req.Data) != "null" {
		var node models.Node
		if err := safejson.Unmarshal(body, &node); err != nil {
			h.badRequest(c, err)

			return
		}
		data = node.Data
	}

	node, err := h.session.Store().AddNode(kind, position, data)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, node)
}

// updateNodes replaces the node list. Outside edit mode the store only takes moves and payload
// changes of the current nodes.
func (h *handler) updateNodes(c *gin.Context) {
	var nodes []models.Node
	if err := bindJSON(c, &nodes); err != nil {
		h.badRequest(c, err)

		return
	}

	if err := h.session.Store().UpdateNodes(nodes); err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, h.session.Store().Snapshot())
}

func (h *handler) removeNode(c *gin.Context) {
	if !h.requireEditing(c) {
		return
	}

	if !h.session.RemoveNode(c.Param("id")) {
		h.fail(c, graphstore.ErrUnknownNode)

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) isNodeConnected(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.session.Store().Node(id); !ok {
		h.fail(c, graphstore.ErrUnknownNode)

		return
	}

	c.JSON(http.StatusOK, gin.H{"connected": h.session.Store().IsNodeConnected(id)})
}

type renameRequest struct {
	Name string `json:"name"`
}

func (h *handler) renamePLC(c *gin.Context) {
	var req renameRequest
	if err := bindJSON(c, &req); err != nil {
		h.badRequest(c, err)

		return
	}

	if err := h.session.Store().RenamePLC(c.Param("id"), req.Name); err != nil {
		h.fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// ---------------------- places ----------------------

type searchRequest struct {
	Query string `json:"query"`
}

// searchPlaces records a keystroke; the result is published on the event stream and can be
// polled from getPlaces.
func (h *handler) searchPlaces(c *gin.Context) {
	var req searchRequest
	if err := bindJSON(c, &req); err != nil {
		h.badRequest(c, err)

		return
	}

	id := c.Param("id")
	if _, ok := h.session.Store().Node(id); !ok {
		h.fail(c, graphstore.ErrUnknownNode)

		return
	}

	h.session.Resolver().Search(id, req.Query)
	c.Status(http.StatusAccepted)
}

func (h *handler) getPlaces(c *gin.Context) {
	result, pending := h.session.Resolver().Suggestions(c.Param("id"))

	c.JSON(http.StatusOK, gin.H{"result": result, "pending": pending})
}

func (h *handler) selectPlace(c *gin.Context) {
	var place models.Place
	if err := bindJSON(c, &place); err != nil {
		h.badRequest(c, err)

		return
	}
	if place.ID == "" {
		h.badRequest(c, errors.New("place id is required"))

		return
	}

	if err := h.session.Resolver().Select(c.Param("id"), place); err != nil {
		h.fail(c, err)

		return
	}

	c.Status(http.StatusNoContent)
}

// ---------------------- edges ----------------------

func (h *handler) addEdge(c *gin.Context) {
	var req graphstore.EdgeRequest
	if err := bindJSON(c, &req); err != nil {
		h.badRequest(c, err)

		return
	}

	edge, err := h.session.Store().AddEdge(req)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusCreated, edge)
}

func (h *handler) updateEdges(c *gin.Context) {
	if !h.requireEditing(c) {
		return
	}

	var edges []models.Edge
	if err := bindJSON(c, &edges); err != nil {
		h.badRequest(c, err)

		return
	}

	dropped, err := h.session.Store().UpdateEdges(edges)
	if err != nil {
		h.fail(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"dropped": dropped, "edges": h.session.Store().Snapshot().Edges})
}

func (h *handler) removeEdge(c *gin.Context) {
	if !h.requireEditing(c) {
		return
	}

	if !h.session.Store().RemoveEdge(c.Param("id")) {
		c.AbortWithStatusJSON(http.StatusNotFound, errorResponse{Error: "unknown edge"})

		return
	}

	c.Status(http.StatusNoContent)
}

func (h *handler) canConnect(c *gin.Context) {
	req := graphstore.EdgeRequest{
		Source:       c.Query("source"),
		Target:       c.Query("target"),
		TargetHandle: models.PortHandle(c.Query("targetHandle")),
	}

	c.JSON(http.StatusOK, gin.H{"canConnect": h.session.Store().CanConnect(req)})
}

// ---------------------- PLC ports ----------------------

func (h *handler) isPortAvailable(c *gin.Context) {
	port, err := strconv.Atoi(c.Param("port"))
	if err != nil {
		h.badRequest(c, err)

		return
	}

	c.JSON(http.StatusOK, gin.H{"available": h.session.Store().IsPortAvailable(c.Param("id"), port)})
}

func (h *handler) getPortMetrics(c *gin.Context) {
	series, ok := h.session.PortSeries(c.Param("id"))
	if !ok {
		h.fail(c, graphstore.ErrUnknownNode)

		return
	}

	c.JSON(http.StatusOK, gin.H{"ports": series})
}

// ---------------------- edit mode ----------------------

type editModeRequest struct {
	EditMode bool `json:"editMode"`
}

func (h *handler) getEditMode(c *gin.Context) {
	c.JSON(http.StatusOK, editModeRequest{EditMode: h.session.Store().EditMode()})
}

func (h *handler) setEditMode(c *gin.Context) {
	var req editModeRequest
	if err := bindJSON(c, &req); err != nil {
		h.badRequest(c, err)

		return
	}

	c.JSON(http.StatusOK, editModeRequest{EditMode: h.session.Store().SetEditMode(c.Request.Context(), req.EditMode)})
}

func (h *handler) toggleEditMode(c *gin.Context) {
	c.JSON(http.StatusOK, editModeRequest{EditMode: h.session.Store().ToggleEditMode(c.Request.Context())})
}

func (h *handler) getChannel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connected": h.session.Channel().IsConnected()})
}
