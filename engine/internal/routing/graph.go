// Package routing computes source-routing headers. A Graph is a read-only
// snapshot of the topology annotated with per-edge port indices and buffer
// occupations; strategies assign edge weights and select paths over it.
package routing

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// EdgeInfo carries the routing attributes of one directed edge. Edges
// originating at a satellite additionally know the out-port behind them and
// that port's queued bytes at snapshot time.
type EdgeInfo struct {
	LengthKm         float64
	OutPort          int
	HasPort          bool
	BufferOccupation float64 // bytes
	Weight           float64
}

type edgeKey struct{ u, v string }

// Graph is a weighted directed snapshot implementing gonum's
// graph.WeightedDirected over insertion-ordered adjacency, so traversal
// order — and therefore shortest-path tie-breaking — is deterministic.
type Graph struct {
	ids   map[string]int64
	names []string
	kinds map[string]models.NodeKind

	adj   map[string][]string // insertion order
	radj  map[string][]string
	edges map[edgeKey]*EdgeInfo

	gs   []string
	sats []string
}

func NewGraph() *Graph {
	return &Graph{
		ids:   make(map[string]int64),
		kinds: make(map[string]models.NodeKind),
		adj:   make(map[string][]string),
		radj:  make(map[string][]string),
		edges: make(map[edgeKey]*EdgeInfo),
	}
}

// AddNode registers a node; repeated adds are ignored.
func (g *Graph) AddNode(id string, kind models.NodeKind) {
	if _, ok := g.ids[id]; ok {
		return
	}
	g.ids[id] = int64(len(g.names))
	g.names = append(g.names, id)
	g.kinds[id] = kind
	switch kind {
	case models.KindGroundStation:
		g.gs = append(g.gs, id)
	case models.KindLeoSatellite:
		g.sats = append(g.sats, id)
	}
}

// AddEdge attaches a directed edge; the initial weight is the length.
func (g *Graph) AddEdge(u, v string, info EdgeInfo) {
	if _, ok := g.edges[edgeKey{u, v}]; ok {
		return
	}
	info.Weight = info.LengthKm
	g.edges[edgeKey{u, v}] = &info
	g.adj[u] = append(g.adj[u], v)
	g.radj[v] = append(g.radj[v], u)
}

// EdgeInfo returns the annotation for (u,v), nil when absent.
func (g *Graph) EdgeInfo(u, v string) *EdgeInfo { return g.edges[edgeKey{u, v}] }

// SetWeight assigns the routing weight of (u,v).
func (g *Graph) SetWeight(u, v string, w float64) {
	if info := g.edges[edgeKey{u, v}]; info != nil {
		info.Weight = w
	}
}

// Each-edge iteration in a stable order: by source insertion order, then
// adjacency order.
func (g *Graph) EachEdge(fn func(u, v string, info *EdgeInfo)) {
	for _, u := range g.names {
		for _, v := range g.adj[u] {
			fn(u, v, g.edges[edgeKey{u, v}])
		}
	}
}

// Neighbors returns the successors of u in adjacency order.
func (g *Graph) Neighbors(u string) []string { return g.adj[u] }

// GroundStations lists ground-station ids in insertion order.
func (g *Graph) GroundStations() []string { return g.gs }

// Satellites lists satellite ids in insertion order.
func (g *Graph) Satellites() []string { return g.sats }

// Kind returns the node kind for id.
func (g *Graph) Kind(id string) models.NodeKind { return g.kinds[id] }

// Name translates a gonum node id back to the topology id.
func (g *Graph) Name(id int64) string { return g.names[id] }

// ID translates a topology id into the gonum node id.
func (g *Graph) ID(name string) (int64, bool) {
	id, ok := g.ids[name]
	return id, ok
}

// gonum graph.WeightedDirected ------------------------------------------------

func (g *Graph) Node(id int64) graph.Node {
	if id < 0 || id >= int64(len(g.names)) {
		return nil
	}
	return simple.Node(id)
}

func (g *Graph) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.names))
	for i := range g.names {
		nodes[i] = simple.Node(i)
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *Graph) nodesOf(names []string) graph.Nodes {
	if len(names) == 0 {
		return graph.Empty
	}
	nodes := make([]graph.Node, len(names))
	for i, n := range names {
		nodes[i] = simple.Node(g.ids[n])
	}
	return iterator.NewOrderedNodes(nodes)
}

func (g *Graph) From(id int64) graph.Nodes { return g.nodesOf(g.adj[g.Name(id)]) }
func (g *Graph) To(id int64) graph.Nodes   { return g.nodesOf(g.radj[g.Name(id)]) }

func (g *Graph) HasEdgeFromTo(uid, vid int64) bool {
	_, ok := g.edges[edgeKey{g.Name(uid), g.Name(vid)}]
	return ok
}

func (g *Graph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

func (g *Graph) Edge(uid, vid int64) graph.Edge { return g.WeightedEdge(uid, vid) }

func (g *Graph) WeightedEdge(uid, vid int64) graph.WeightedEdge {
	info, ok := g.edges[edgeKey{g.Name(uid), g.Name(vid)}]
	if !ok {
		return nil
	}
	return simple.WeightedEdge{F: simple.Node(uid), T: simple.Node(vid), W: info.Weight}
}

func (g *Graph) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		return 0, true
	}
	if info, ok := g.edges[edgeKey{g.Name(xid), g.Name(yid)}]; ok {
		return info.Weight, true
	}
	return math.Inf(1), false
}
