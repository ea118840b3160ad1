// Package topology decodes the node-link JSON served by the topology
// builder service and fetches traffic matrices. The simulator treats node
// ids as opaque keys; plane metadata is carried through untouched.
package topology

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// ErrMalformedTopology marks an undecodable or inconsistent topology
// payload. The CLI maps it to exit code 3.
var ErrMalformedTopology = errors.New("topology: malformed payload")

// Node is one vertex of the constellation graph.
type Node struct {
	ID              string
	Kind            models.NodeKind
	Plane           int // satellites only
	PositionInPlane int // satellites only
}

// Neighbor is one adjacency entry with its link length.
type Neighbor struct {
	ID     string
	Length float64 // km
}

// Topology is a directed graph; each undirected ISL/GSL from the service is
// materialized in both directions. Adjacency order is the service's link
// order, which the network builder uses for port numbering.
type Topology struct {
	Nodes []Node
	Adj   map[string][]Neighbor

	index map[string]int
}

// Node returns the node record for id.
func (t *Topology) Node(id string) (Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return Node{}, false
	}
	return t.Nodes[i], true
}

// Satellites lists satellite ids in node order.
func (t *Topology) Satellites() []string {
	var out []string
	for _, n := range t.Nodes {
		if n.Kind == models.KindLeoSatellite {
			out = append(out, n.ID)
		}
	}
	return out
}

// GroundStations lists ground-station ids in node order.
func (t *Topology) GroundStations() []string {
	var out []string
	for _, n := range t.Nodes {
		if n.Kind == models.KindGroundStation {
			out = append(out, n.ID)
		}
	}
	return out
}

// Length returns the link length between two adjacent nodes.
func (t *Topology) Length(u, v string) (float64, bool) {
	for _, nb := range t.Adj[u] {
		if nb.ID == v {
			return nb.Length, true
		}
	}
	return 0, false
}

// HasEdge reports whether v is adjacent to u.
func (t *Topology) HasEdge(u, v string) bool {
	_, ok := t.Length(u, v)
	return ok
}

// wire format ----------------------------------------------------------------

type payload struct {
	NetworkxObj *nodeLink `json:"networkx_obj"`
}

type nodeLink struct {
	Nodes []nodeJSON `json:"nodes"`
	Links []linkJSON `json:"links"`
}

type nodeJSON struct {
	ID              string          `json:"id"`
	Type            models.NodeKind `json:"type"`
	Plane           int             `json:"plane"`
	PositionInPlane int             `json:"position_in_plane"`
}

type linkJSON struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Length float64 `json:"length"`
}

// Decode parses a topology service response.
func Decode(data []byte) (*Topology, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTopology, err)
	}
	if p.NetworkxObj == nil {
		return nil, fmt.Errorf("%w: missing networkx_obj", ErrMalformedTopology)
	}

	t := &Topology{
		Adj:   make(map[string][]Neighbor),
		index: make(map[string]int),
	}
	for _, n := range p.NetworkxObj.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node without id", ErrMalformedTopology)
		}
		switch n.Type {
		case models.KindLeoSatellite, models.KindGroundStation:
		default:
			return nil, fmt.Errorf("%w: node %s has unknown type %q", ErrMalformedTopology, n.ID, n.Type)
		}
		if _, dup := t.index[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", ErrMalformedTopology, n.ID)
		}
		t.index[n.ID] = len(t.Nodes)
		t.Nodes = append(t.Nodes, Node{
			ID: n.ID, Kind: n.Type, Plane: n.Plane, PositionInPlane: n.PositionInPlane,
		})
	}
	for _, l := range p.NetworkxObj.Links {
		if _, ok := t.index[l.Source]; !ok {
			return nil, fmt.Errorf("%w: link references unknown node %s", ErrMalformedTopology, l.Source)
		}
		if _, ok := t.index[l.Target]; !ok {
			return nil, fmt.Errorf("%w: link references unknown node %s", ErrMalformedTopology, l.Target)
		}
		t.Adj[l.Source] = append(t.Adj[l.Source], Neighbor{ID: l.Target, Length: l.Length})
		t.Adj[l.Target] = append(t.Adj[l.Target], Neighbor{ID: l.Source, Length: l.Length})
	}
	return t, nil
}
