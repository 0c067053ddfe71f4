// Package canvas holds the node-graph model shared by canvas editors:
// nodes, edges and the snapshots the history manager records.
package canvas

import (
	"encoding/json"
	"time"
)

// Node is a single element on the canvas
type Node struct {
	ID       string   `json:"id" validate:"required"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	// Data is expected to hold JSON-shaped values, as decoded by
	// encoding/json. Other value types are stored in their JSON form, so
	// a saved []int comes back from history as []interface{} of float64.
	Data map[string]interface{} `json:"data,omitempty"`
}

// UnmarshalJSON decodes a node and ignores the editor's presentation fields
// (width, selected, dragging and so on), which history does not record.
func (n *Node) UnmarshalJSON(data []byte) error {
	type node Node
	return json.Unmarshal(data, (*node)(n))
}

// Edge connects two nodes
type Edge struct {
	ID     string `json:"id" validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// UnmarshalJSON decodes an edge and ignores fields history does not record,
// such as sourceHandle or animated.
func (e *Edge) UnmarshalJSON(data []byte) error {
	type edge Edge
	return json.Unmarshal(data, (*edge)(e))
}

// Snapshot is an independent copy of the canvas at one point in time.
// Timestamp is informational and never used for ordering.
type Snapshot struct {
	Nodes       []Node      `json:"nodes"`
	Edges       []Edge      `json:"edges"`
	Timestamp   time.Time   `json:"timestamp"`
	Fingerprint Fingerprint `json:"fingerprint"`
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	return Node{
		ID:       n.ID,
		Type:     n.Type,
		Position: n.Position.Clone(),
		Data:     cloneMap(n.Data),
	}
}

// Clone returns a deep copy of the snapshot
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Nodes:       CloneNodes(s.Nodes),
		Edges:       CloneEdges(s.Edges),
		Timestamp:   s.Timestamp,
		Fingerprint: s.Fingerprint,
	}
}

// CloneNodes deep copies a node slice. The result is never nil.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i := range nodes {
		out[i] = nodes[i].Clone()
	}
	return out
}

// CloneEdges copies an edge slice. The result is never nil.
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	copy(out, edges)
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies a JSON-shaped value. Values of other types go through
// a JSON round trip so the copy never aliases caller memory.
func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, string, bool, float64, float32, int, int64, int32, uint, uint64, uint32, json.Number:
		return val
	case map[string]interface{}:
		return cloneMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i := range val {
			out[i] = cloneValue(val[i])
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case map[string]string:
		out := make(map[string]string, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	default:
		raw, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		var decoded interface{}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return nil
		}
		return decoded
	}
}
