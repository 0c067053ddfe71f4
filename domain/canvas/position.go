package canvas

import (
	"bytes"
	"encoding/json"
	"math"

	pkgerrors "canvashistory/pkg/errors"
)

// Position is the 2D canvas coordinate of a node.
// A nil coordinate means the editor sent the node before laying it out.
type Position struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// NewPosition creates a fully populated position
func NewPosition(x, y float64) Position {
	return Position{X: &x, Y: &y}
}

// UnmarshalJSON accepts any position payload. A coordinate that is missing,
// null or not a JSON number decodes as nil so Valid reports false instead of
// the decode failing.
func (p *Position) UnmarshalJSON(data []byte) error {
	var raw struct {
		X json.RawMessage `json:"x"`
		Y json.RawMessage `json:"y"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		*p = Position{}
		return nil
	}
	p.X = decodeCoordinate(raw.X)
	p.Y = decodeCoordinate(raw.Y)
	return nil
}

func decodeCoordinate(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

// Valid reports whether both coordinates are present finite numbers
func (p Position) Valid() bool {
	return p.X != nil && p.Y != nil && isValidCoordinate(*p.X) && isValidCoordinate(*p.Y)
}

// Equals checks if two positions are equal
func (p Position) Equals(other Position) bool {
	return coordinateEquals(p.X, other.X) && coordinateEquals(p.Y, other.Y)
}

// Clone returns a position that shares no pointers with p
func (p Position) Clone() Position {
	var out Position
	if p.X != nil {
		x := *p.X
		out.X = &x
	}
	if p.Y != nil {
		y := *p.Y
		out.Y = &y
	}
	return out
}

// ValidatePositions checks that every node carries a numeric position.
// The returned error names the first offending node.
func ValidatePositions(nodes []Node) error {
	for i := range nodes {
		if !nodes[i].Position.Valid() {
			return pkgerrors.NewValidationError("node position must have numeric x and y").
				WithDetails(map[string]interface{}{
					"node_id": nodes[i].ID,
					"index":   i,
				})
		}
	}
	return nil
}

func coordinateEquals(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// isValidCoordinate checks if a coordinate is a valid finite number
func isValidCoordinate(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
