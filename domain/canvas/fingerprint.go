package canvas

import (
	"encoding/json"
	"fmt"

	gocid "github.com/ipfs/go-cid"
	"github.com/multiformats/go-multibase"
	"github.com/multiformats/go-multihash"
)

// Fingerprint is the content identifier of a graph's canonical form.
// Two graphs with equal logical content always have equal fingerprints.
type Fingerprint struct {
	cid gocid.Cid
}

// canonicalNode fixes the field order of the comparable node tuple
type canonicalNode struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Position Position               `json:"position"`
	Data     map[string]interface{} `json:"data"`
}

// canonicalEdge fixes the field order of the comparable edge tuple
type canonicalEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type canonicalGraph struct {
	Nodes []canonicalNode `json:"nodes"`
	Edges []canonicalEdge `json:"edges"`
}

// Canonical encodes the comparable parts of a graph deterministically.
// Struct fields keep declaration order and map keys are sorted by the
// encoder, so equal content yields byte-identical output.
func Canonical(nodes []Node, edges []Edge) ([]byte, error) {
	g := canonicalGraph{
		Nodes: make([]canonicalNode, len(nodes)),
		Edges: make([]canonicalEdge, len(edges)),
	}
	for i, n := range nodes {
		g.Nodes[i] = canonicalNode{ID: n.ID, Type: n.Type, Position: n.Position, Data: n.Data}
	}
	for i, e := range edges {
		g.Edges[i] = canonicalEdge{ID: e.ID, Source: e.Source, Target: e.Target}
	}

	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("canonical encoding: %w", err)
	}
	return data, nil
}

// ComputeFingerprint hashes the canonical encoding of a graph into a CIDv1
func ComputeFingerprint(nodes []Node, edges []Edge) (Fingerprint, error) {
	data, err := Canonical(nodes, edges)
	if err != nil {
		return Fingerprint{}, err
	}
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("multihash: %w", err)
	}
	return Fingerprint{cid: gocid.NewCidV1(gocid.Raw, mh)}, nil
}

// IsZero reports whether the fingerprint was never computed
func (f Fingerprint) IsZero() bool {
	return !f.cid.Defined()
}

// Equal compares two fingerprints
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.cid.Equals(other.cid)
}

// String renders the fingerprint as base32 multibase text
func (f Fingerprint) String() string {
	if f.IsZero() {
		return ""
	}
	encoded, err := multibase.Encode(multibase.Base32, f.cid.Bytes())
	if err != nil {
		return ""
	}
	return encoded
}

// ParseFingerprint decodes the text produced by String
func ParseFingerprint(s string) (Fingerprint, error) {
	if s == "" {
		return Fingerprint{}, nil
	}
	_, raw, err := multibase.Decode(s)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	c, err := gocid.Cast(raw)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("decode fingerprint: %w", err)
	}
	return Fingerprint{cid: c}, nil
}

// MarshalJSON implements json.Marshaler
func (f Fingerprint) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (f *Fingerprint) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseFingerprint(s)
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
