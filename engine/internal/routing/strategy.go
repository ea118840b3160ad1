package routing

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"

	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// ErrNoRoute is reported when two ground stations are not connected under
// the current weights. The caller emits the packet with an empty header and
// lets the first satellite count the routing drop.
var ErrNoRoute = errors.New("routing: no route available")

// Strategy assigns edge weights to a snapshot and selects a path through
// it. Implementations keep their own cross-snapshot state (EWMA, path
// caches); refinement is by composition, not inheritance.
type Strategy interface {
	Name() string
	ComputeWeights(g *Graph)
	SelectPath(g *Graph, src, dst string) ([]string, error)
}

// shortestPath runs Dijkstra over the snapshot. Saturated (infinite-weight)
// edges never improve a distance, so fully saturated routes read as
// unreachable.
func shortestPath(g *Graph, src, dst string) ([]string, error) {
	uid, ok := g.ID(src)
	if !ok {
		return nil, fmt.Errorf("%w: unknown node %s", ErrNoRoute, src)
	}
	vid, ok := g.ID(dst)
	if !ok {
		return nil, fmt.Errorf("%w: unknown node %s", ErrNoRoute, dst)
	}
	sp := path.DijkstraFrom(g.Node(uid), g)
	nodes, w := sp.To(vid)
	if len(nodes) == 0 || math.IsInf(w, 1) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, src, dst)
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = g.Name(n.ID())
	}
	return out, nil
}

// pathWeight sums the current edge weights along nodes.
func pathWeight(g *Graph, nodes []string) float64 {
	var w float64
	for i := 0; i+1 < len(nodes); i++ {
		info := g.EdgeInfo(nodes[i], nodes[i+1])
		if info == nil {
			return math.Inf(1)
		}
		w += info.Weight
	}
	return w
}

// Baseline weights every edge by its length alone.
type Baseline struct{}

func NewBaseline() *Baseline { return &Baseline{} }

func (*Baseline) Name() string { return "baseline" }

func (*Baseline) ComputeWeights(g *Graph) {
	g.EachEdge(func(u, v string, info *EdgeInfo) {
		info.Weight = info.LengthKm
	})
}

func (*Baseline) SelectPath(g *Graph, src, dst string) ([]string, error) {
	return shortestPath(g, src, dst)
}

// NoSmoothing adds a congestion penalty derived from the instantaneous
// buffer occupation of the port behind each satellite edge.
type NoSmoothing struct {
	queueSize float64
}

func NewNoSmoothing(params models.Parameters) *NoSmoothing {
	return &NoSmoothing{queueSize: params.SatelliteQueueSize}
}

func (*NoSmoothing) Name() string { return "no_smoothing" }

// bufferFactor maps occupation in [0, queueSize) to a penalty in [1, +inf).
// A full or overflowing buffer, or a factor past the signed-32 range, is an
// explicit +inf so shortest-path routes around it.
func (s *NoSmoothing) bufferFactor(occupation float64) float64 {
	denom := 1 - occupation/s.queueSize
	if denom <= 0 {
		return math.Inf(1)
	}
	f := 1 / denom
	if f > math.MaxInt32 {
		return math.Inf(1)
	}
	return f
}

func (s *NoSmoothing) ComputeWeights(g *Graph) {
	g.EachEdge(func(u, v string, info *EdgeInfo) {
		info.Weight = info.LengthKm + s.bufferFactor(info.BufferOccupation)
	})
}

func (s *NoSmoothing) SelectPath(g *Graph, src, dst string) ([]string, error) {
	return shortestPath(g, src, dst)
}

// ExponentialSmoothing substitutes an EWMA of each port's occupation for
// the instantaneous sample before applying the NoSmoothing penalty. The
// EWMA state survives topology snapshots; a port starts at zero.
type ExponentialSmoothing struct {
	inner *NoSmoothing
	alpha float64
	ewma  map[portKey]float64
}

type portKey struct {
	sat  string
	port int
}

func NewExponentialSmoothing(params models.Parameters) *ExponentialSmoothing {
	return &ExponentialSmoothing{
		inner: NewNoSmoothing(params),
		alpha: params.Alpha,
		ewma:  make(map[portKey]float64),
	}
}

func (*ExponentialSmoothing) Name() string { return "exponential_smoothing" }

func (s *ExponentialSmoothing) ComputeWeights(g *Graph) {
	g.EachEdge(func(u, v string, info *EdgeInfo) {
		occ := info.BufferOccupation
		if info.HasPort {
			k := portKey{sat: u, port: info.OutPort}
			occ = s.alpha*info.BufferOccupation + (1-s.alpha)*s.ewma[k]
			s.ewma[k] = occ
		}
		info.Weight = info.LengthKm + s.inner.bufferFactor(occ)
	})
}

func (s *ExponentialSmoothing) SelectPath(g *Graph, src, dst string) ([]string, error) {
	return shortestPath(g, src, dst)
}

// Smoothed exposes the current EWMA for a port. Test hook.
func (s *ExponentialSmoothing) Smoothed(sat string, port int) float64 {
	return s.ewma[portKey{sat: sat, port: port}]
}
