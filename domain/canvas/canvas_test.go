package canvas

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	pkgerrors "canvashistory/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestPosition_Valid(t *testing.T) {
	tests := []struct {
		name     string
		position Position
		want     bool
	}{
		{name: "origin", position: NewPosition(0, 0), want: true},
		{name: "negative", position: NewPosition(-100.5, -200.75), want: true},
		{name: "very large", position: NewPosition(1e10, -1e10), want: true},
		{name: "missing x", position: Position{Y: ptr(1)}, want: false},
		{name: "missing y", position: Position{X: ptr(1)}, want: false},
		{name: "zero value", position: Position{}, want: false},
		{name: "NaN x", position: Position{X: ptr(math.NaN()), Y: ptr(0)}, want: false},
		{name: "infinite y", position: Position{X: ptr(0), Y: ptr(math.Inf(-1))}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.position.Valid())
		})
	}
}

func TestPosition_UnmarshalMissingCoordinate(t *testing.T) {
	var n Node
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","type":"text","position":{"y":4}}`), &n))
	assert.Nil(t, n.Position.X)
	assert.False(t, n.Position.Valid())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","position":{"x":null,"y":4}}`), &n))
	assert.False(t, n.Position.Valid())

	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","position":{"x":3,"y":4}}`), &n))
	assert.True(t, n.Position.Valid())
	assert.True(t, n.Position.Equals(NewPosition(3, 4)))
}

func TestPosition_UnmarshalNonNumeric(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "string x", payload: `{"x":"10","y":4}`},
		{name: "bool y", payload: `{"x":10,"y":true}`},
		{name: "object x", payload: `{"x":{"v":1},"y":4}`},
		{name: "not an object", payload: `"top-left"`},
		{name: "null", payload: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n Node
			err := json.Unmarshal([]byte(`{"id":"1","position":`+tt.payload+`}`), &n)
			require.NoError(t, err)
			assert.Equal(t, "1", n.ID)
			assert.False(t, n.Position.Valid())
		})
	}
}

func TestNodeEdge_UnmarshalIgnoresEditorFields(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{
		"nodes":[{"id":"1","type":"text","position":{"x":1,"y":2},"width":150,"selected":true,"data":{"label":"a"}}],
		"edges":[{"id":"e1","source":"1","target":"2","sourceHandle":"right","animated":true}]
	}`))
	dec.DisallowUnknownFields()

	var body struct {
		Nodes []Node `json:"nodes"`
		Edges []Edge `json:"edges"`
	}
	require.NoError(t, dec.Decode(&body))
	require.Len(t, body.Nodes, 1)
	assert.True(t, body.Nodes[0].Position.Equals(NewPosition(1, 2)))
	assert.Equal(t, "a", body.Nodes[0].Data["label"])
	assert.Equal(t, Edge{ID: "e1", Source: "1", Target: "2"}, body.Edges[0])
}

func TestValidatePositions(t *testing.T) {
	nodes := []Node{
		{ID: "ok", Position: NewPosition(1, 2)},
		{ID: "bad", Position: Position{X: ptr(1)}},
	}

	err := ValidatePositions(nodes)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "bad", appErr.Details["node_id"])

	assert.NoError(t, ValidatePositions(nodes[:1]))
	assert.NoError(t, ValidatePositions(nil))
}

func TestNodeClone_Independent(t *testing.T) {
	original := Node{
		ID:       "n1",
		Type:     "card",
		Position: NewPosition(10, 20),
		Data: map[string]interface{}{
			"title":  "hello",
			"tags":   []interface{}{"a", map[string]interface{}{"deep": true}},
			"labels": []string{"x"},
			"meta":   map[string]string{"k": "v"},
		},
	}

	clone := original.Clone()
	*clone.Position.X = 99
	clone.Data["title"] = "changed"
	clone.Data["tags"].([]interface{})[1].(map[string]interface{})["deep"] = false
	clone.Data["labels"].([]string)[0] = "y"
	clone.Data["meta"].(map[string]string)["k"] = "w"

	assert.Equal(t, 10.0, *original.Position.X)
	assert.Equal(t, "hello", original.Data["title"])
	assert.Equal(t, true, original.Data["tags"].([]interface{})[1].(map[string]interface{})["deep"])
	assert.Equal(t, "x", original.Data["labels"].([]string)[0])
	assert.Equal(t, "v", original.Data["meta"].(map[string]string)["k"])
}

func TestNodeClone_NormalizesNonJSONData(t *testing.T) {
	type meta struct {
		Owner string `json:"owner"`
	}
	n := Node{ID: "1", Position: NewPosition(0, 0), Data: map[string]interface{}{
		"ints":  []int{1, 2},
		"meta":  meta{Owner: "alice"},
		"bytes": []byte("hi"),
		"tags":  []string{"x"},
	}}

	c := n.Clone()
	assert.Equal(t, []interface{}{1.0, 2.0}, c.Data["ints"])
	assert.Equal(t, map[string]interface{}{"owner": "alice"}, c.Data["meta"])
	assert.Equal(t, "aGk=", c.Data["bytes"])
	assert.Equal(t, []string{"x"}, c.Data["tags"])
}

func TestCloneSlices_NeverNil(t *testing.T) {
	assert.NotNil(t, CloneNodes(nil))
	assert.NotNil(t, CloneEdges(nil))
}

func TestCanonical_Deterministic(t *testing.T) {
	a := []Node{{ID: "1", Type: "t", Position: NewPosition(1, 2), Data: map[string]interface{}{"b": 1.0, "a": "x"}}}
	b := []Node{{ID: "1", Type: "t", Position: NewPosition(1, 2), Data: map[string]interface{}{"a": "x", "b": 1.0}}}
	edges := []Edge{{ID: "e", Source: "1", Target: "1"}}

	ca, err := Canonical(a, edges)
	require.NoError(t, err)
	cb, err := Canonical(b, edges)
	require.NoError(t, err)
	assert.Equal(t, string(ca), string(cb))
	assert.Equal(t,
		`{"nodes":[{"id":"1","type":"t","position":{"x":1,"y":2},"data":{"a":"x","b":1}}],"edges":[{"id":"e","source":"1","target":"1"}]}`,
		string(ca))
}

func TestFingerprint(t *testing.T) {
	nodes := []Node{{ID: "1", Position: NewPosition(0, 0)}}

	f1, err := ComputeFingerprint(nodes, nil)
	require.NoError(t, err)
	f2, err := ComputeFingerprint(CloneNodes(nodes), []Edge{})
	require.NoError(t, err)
	assert.True(t, f1.Equal(f2), "nil and empty edge lists encode the same")

	moved := CloneNodes(nodes)
	*moved[0].Position.X = 1
	f3, err := ComputeFingerprint(moved, nil)
	require.NoError(t, err)
	assert.False(t, f1.Equal(f3))

	text := f1.String()
	assert.NotEmpty(t, text)
	parsed, err := ParseFingerprint(text)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(f1))

	raw, err := json.Marshal(f1)
	require.NoError(t, err)
	var decoded Fingerprint
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, decoded.Equal(f1))

	var zero Fingerprint
	assert.True(t, zero.IsZero())
	assert.Equal(t, "", zero.String())
}

func TestFingerprint_Unencodable(t *testing.T) {
	nodes := []Node{{ID: "1", Position: NewPosition(0, 0), Data: map[string]interface{}{"ch": make(chan int)}}}
	_, err := ComputeFingerprint(nodes, nil)
	assert.Error(t, err)
}
