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

// Package models contains the diagram graph, telemetry and topology types shared by the
// store, the persistence gateway and the live channel.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// NodeKind is the discriminator of a diagram node.
type NodeKind string

const (
	KindSensor NodeKind = "sensorNode"
	KindPLC    NodeKind = "plcNode"
)

// ErrUnknownNodeKind is returned when a node carries a type that is neither a sensor nor a PLC.
var ErrUnknownNodeKind = errors.New("unknown node kind")

// ParseNodeKind validates a wire kind.
func ParseNodeKind(s string) (NodeKind, error) {
	switch NodeKind(s) {
	case KindSensor:
		return KindSensor, nil
	case KindPLC:
		return KindPLC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownNodeKind, s)
	}
}

// Position is the canvas coordinate of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultPosition is used when a node is added without coordinates.
var DefaultPosition = Position{X: 150, Y: 150}

// NodeData is the kind specific payload of a node. It is implemented by *SensorData and
// *PLCData only.
type NodeData interface {
	Kind() NodeKind
	// unexported methods keep the union closed to this package
	setEditMode(bool)
	clone() NodeData
}

// Place is a resolved location as used inside the graph.
type Place struct {
	ID   string `json:"id"`
	City string `json:"city"`
}

// SensorData is the payload of a SENSOR node.
type SensorData struct {
	Name               string   `json:"name"`
	Location           *Place   `json:"-"`
	Temperature        *float64 `json:"temperature"`
	AverageTemperature *float64 `json:"averageTemperature"`
	Condition          *string  `json:"condition"`
	EditMode           bool     `json:"editMode"`
}

func (*SensorData) Kind() NodeKind { return KindSensor }

func (d *SensorData) setEditMode(v bool) { d.EditMode = v }

func (d *SensorData) clone() NodeData {
	c := *d
	if d.Location != nil {
		loc := *d.Location
		c.Location = &loc
	}
	if d.Temperature != nil {
		v := *d.Temperature
		c.Temperature = &v
	}
	if d.AverageTemperature != nil {
		v := *d.AverageTemperature
		c.AverageTemperature = &v
	}
	if d.Condition != nil {
		v := *d.Condition
		c.Condition = &v
	}

	return &c
}

// PlaceLabel returns the human label of the location or an empty string when unset.
func (d *SensorData) PlaceLabel() string {
	if d.Location == nil {
		return ""
	}

	return d.Location.City
}

type sensorDataWire struct {
	Name               string   `json:"name"`
	City               Place    `json:"city"`
	Temperature        *float64 `json:"temperature"`
	AverageTemperature *float64 `json:"averageTemperature"`
	Condition          *string  `json:"condition"`
	EditMode           bool     `json:"editMode"`
}

// MarshalJSON writes the location under "city" and always emits the object, since the
// dashboard reads data.city.city without a nil check.
func (d SensorData) MarshalJSON() ([]byte, error) {
	w := sensorDataWire{
		Name:               d.Name,
		Temperature:        d.Temperature,
		AverageTemperature: d.AverageTemperature,
		Condition:          d.Condition,
		EditMode:           d.EditMode,
	}
	if d.Location != nil {
		w.City = *d.Location
	}

	return json.Marshal(w)
}

func (d *SensorData) UnmarshalJSON(b []byte) error {
	var w sensorDataWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*d = SensorData{
		Name:               w.Name,
		Temperature:        w.Temperature,
		AverageTemperature: w.AverageTemperature,
		Condition:          w.Condition,
		EditMode:           w.EditMode,
	}
	if w.City.ID != "" || w.City.City != "" {
		loc := w.City
		d.Location = &loc
	}

	return nil
}

// PLCData is the payload of a PLC node.
type PLCData struct {
	Name     string `json:"name"`
	EditMode bool   `json:"editMode"`
}

func (*PLCData) Kind() NodeKind { return KindPLC }

func (d *PLCData) setEditMode(v bool) { d.EditMode = v }

func (d *PLCData) clone() NodeData {
	c := *d

	return &c
}

// DefaultData returns the payload a freshly added node of the given kind starts with.
func DefaultData(kind NodeKind, editMode bool) (NodeData, error) {
	switch kind {
	case KindSensor:
		return &SensorData{EditMode: editMode}, nil
	case KindPLC:
		return &PLCData{EditMode: editMode}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeKind, kind)
	}
}

// Node is a vertex of the diagram.
type Node struct {
	ID       string
	Kind     NodeKind
	Position Position
	Data     NodeData
}

// SetEditMode mirrors the global edit flag onto the node payload.
func (n *Node) SetEditMode(v bool) {
	if n.Data != nil {
		n.Data.setEditMode(v)
	}
}

// Clone returns a copy of the node that shares no pointers with the receiver.
func (n Node) Clone() Node {
	c := n
	if n.Data != nil {
		c.Data = n.Data.clone()
	}

	return c
}

// Sensor returns the sensor payload, or false if the node is not a sensor.
func (n Node) Sensor() (*SensorData, bool) {
	d, ok := n.Data.(*SensorData)

	return d, ok
}

// PLC returns the PLC payload, or false if the node is not a PLC.
func (n Node) PLC() (*PLCData, bool) {
	d, ok := n.Data.(*PLCData)

	return d, ok
}

type nodeWire struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

func (n Node) MarshalJSON() ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch d := n.Data.(type) {
	case *SensorData:
		data, err = json.Marshal(*d)
	case *PLCData:
		data, err = json.Marshal(*d)
	case nil:
		data = []byte("{}")
	default:
		return nil, fmt.Errorf("node %s: unsupported data type %T", n.ID, n.Data)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(nodeWire{
		ID:       n.ID,
		Type:     string(n.Kind),
		Position: n.Position,
		Data:     data,
	})
}

func (n *Node) UnmarshalJSON(b []byte) error {
	var w nodeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	kind, err := ParseNodeKind(w.Type)
	if err != nil {
		return fmt.Errorf("node %s: %w", w.ID, err)
	}

	var data NodeData
	switch kind {
	case KindSensor:
		d := &SensorData{}
		if len(w.Data) > 0 && string(w.Data) != "null" {
			if err := json.Unmarshal(w.Data, d); err != nil {
				return fmt.Errorf("node %s: sensor data: %w", w.ID, err)
			}
		}
		data = d
	case KindPLC:
		d := &PLCData{}
		if len(w.Data) > 0 && string(w.Data) != "null" {
			if err := json.Unmarshal(w.Data, d); err != nil {
				return fmt.Errorf("node %s: plc data: %w", w.ID, err)
			}
		}
		data = d
	}

	*n = Node{ID: w.ID, Kind: kind, Position: w.Position, Data: data}

	return nil
}

// PortHandle names one of the physical inputs of a PLC.
type PortHandle string

const (
	portPrefix = "port-"
	// PortCount is the number of physical inputs of a PLC.
	PortCount = 4
)

// PortHandleFor returns the handle of the given port index.
func PortHandleFor(port int) PortHandle {
	return PortHandle(portPrefix + strconv.Itoa(port))
}

// Valid reports whether the handle is one of port-0..port-3.
func (h PortHandle) Valid() bool {
	if !strings.HasPrefix(string(h), portPrefix) {
		return false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(string(h), portPrefix))

	return err == nil && n >= 0 && n < PortCount
}

// ParsePort strips the "port-" prefix and returns the port index. Handles that do not parse
// map to port 0.
func ParsePort(h PortHandle) int {
	s := string(h)
	if !strings.HasPrefix(s, portPrefix) {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimPrefix(s, portPrefix))
	if err != nil {
		return 0
	}

	return n
}

// Edge is a wire from a sensor to a PLC port.
type Edge struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Target       string     `json:"target"`
	TargetHandle PortHandle `json:"targetHandle"`
	Animated     bool       `json:"animated"`
	Type         string     `json:"type,omitempty"`
}

// Touches reports whether the edge references the node as source or target.
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// DefaultEdgeType is the rendering type assigned to new edges.
const DefaultEdgeType = "default"

// Diagram is the visual blob payload.
type Diagram struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Graph is the in-memory aggregate owned by the graph store.
type Graph struct {
	Nodes    []Node `json:"nodes"`
	Edges    []Edge `json:"edges"`
	EditMode bool   `json:"editMode"`
}

// Diagram drops the edit flag.
func (g Graph) Diagram() Diagram {
	return Diagram{Nodes: g.Nodes, Edges: g.Edges}
}
