package routing

import (
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// SnapshotFunc produces a fresh annotated graph from the live network. The
// network builder supplies it; the context never touches network state
// directly.
type SnapshotFunc func() *Graph

// Context owns the routing state for one network: the current graph
// snapshot, the strategy (with its EWMA and path caches), and the refresh
// throttle. It implements netem.RoutingProvider.
type Context struct {
	env        *sim.Environment
	strategy   Strategy
	snapshotFn SnapshotFunc
	updateFreq float64

	snap        *Graph
	lastRefresh float64
	fresh       bool
}

// NewContext builds a context; the first snapshot is taken lazily or on
// ForceRefresh.
func NewContext(env *sim.Environment, strategy Strategy, updateFreq float64, fn SnapshotFunc) *Context {
	return &Context{env: env, strategy: strategy, snapshotFn: fn, updateFreq: updateFreq}
}

// SetSnapshotFunc re-points the context at a rebuilt network. The snapshot
// itself is refreshed separately (ForceRefresh at the snapshot boundary).
func (c *Context) SetSnapshotFunc(fn SnapshotFunc) { c.snapshotFn = fn }

// Strategy exposes the active strategy. Test hook.
func (c *Context) Strategy() Strategy { return c.strategy }

// ForceRefresh re-snapshots the graph and recomputes weights regardless of
// the throttle. The network builder calls it after every rewire, while the
// scheduler is idle.
func (c *Context) ForceRefresh() {
	c.snap = c.snapshotFn()
	c.strategy.ComputeWeights(c.snap)
	c.lastRefresh = c.env.Now()
	c.fresh = true
}

// Refresh re-snapshots unless one was taken within updateFreq simulated
// seconds. Idempotent inside the window.
func (c *Context) Refresh() {
	if c.fresh && c.env.Now()-c.lastRefresh < c.updateFreq {
		return
	}
	c.ForceRefresh()
}

// Header returns the source-routing header for (src, dst): the node path
// reduced to (out-port, next-hop) pairs in reverse, so the tail is consumed
// first. No route yields an empty header.
func (c *Context) Header(src, dst string) []models.Hop {
	if c.snap == nil {
		c.ForceRefresh()
	}
	nodes, err := c.strategy.SelectPath(c.snap, src, dst)
	if err != nil {
		return nil
	}
	return HeaderFromPath(c.snap, nodes)
}

// HeaderFromPath converts a node path p_0..p_k into the reversed directive
// list [(port(p_{k-1}→p_k), p_k), …, (port(p_1→p_2), p_2)]. The ingress hop
// p_0→p_1 is implicit in the upstream wire and carries no directive.
func HeaderFromPath(g *Graph, nodes []string) []models.Hop {
	if len(nodes) < 2 {
		return nil
	}
	hops := make([]models.Hop, 0, len(nodes)-2)
	for i := len(nodes) - 2; i >= 1; i-- {
		info := g.EdgeInfo(nodes[i], nodes[i+1])
		if info == nil || !info.HasPort {
			return nil
		}
		hops = append(hops, models.Hop{Port: info.OutPort, NextHop: nodes[i+1]})
	}
	return hops
}
