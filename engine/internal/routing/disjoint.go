package routing

import (
	"math"
	"math/rand"

	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// KShortestNodeDisjoint spreads each flow over the node-disjoint paths
// between its uplink and downlink satellites, sampling one at random with
// probability decreasing in path weight. Weights come from the embedded
// ExponentialSmoothing step.
type KShortestNodeDisjoint struct {
	weights *ExponentialSmoothing
	rng     *rand.Rand

	version int // bumped per ComputeWeights; invalidates the cache
	cache   map[flowKey]cachedPaths
}

type flowKey struct{ src, dst string }

type cachedPaths struct {
	version int
	paths   [][]string
	weights []float64
}

func NewKShortestNodeDisjoint(params models.Parameters, rng *rand.Rand) *KShortestNodeDisjoint {
	if rng == nil {
		rng = rand.New(rand.NewSource(params.Seed))
	}
	return &KShortestNodeDisjoint{
		weights: NewExponentialSmoothing(params),
		rng:     rng,
		cache:   make(map[flowKey]cachedPaths),
	}
}

func (*KShortestNodeDisjoint) Name() string { return "k_shortest_node_disjoint" }

func (s *KShortestNodeDisjoint) ComputeWeights(g *Graph) {
	s.weights.ComputeWeights(g)
	s.version++
}

func (s *KShortestNodeDisjoint) SelectPath(g *Graph, src, dst string) ([]string, error) {
	up, err := servingSatellite(g, src)
	if err != nil {
		return nil, err
	}
	down, err := servingSatellite(g, dst)
	if err != nil {
		return nil, err
	}
	if up == down {
		return []string{src, up, dst}, nil
	}

	key := flowKey{src: src, dst: dst}
	entry, ok := s.cache[key]
	if !ok || entry.version != s.version {
		paths := nodeDisjointPaths(g, up, down)
		weights := make([]float64, len(paths))
		for i, p := range paths {
			weights[i] = pathWeight(g, p)
		}
		entry = cachedPaths{version: s.version, paths: paths, weights: weights}
		s.cache[key] = entry
	}
	if len(entry.paths) == 0 {
		return nil, ErrNoRoute
	}

	chosen := entry.paths[s.sample(entry.weights)]
	out := make([]string, 0, len(chosen)+2)
	out = append(out, src)
	out = append(out, chosen...)
	out = append(out, dst)
	return out, nil
}

// sample draws an index with probability proportional to 1 - W_i/ΣW, so
// heavier paths are picked less often. Infinite-weight paths only win when
// nothing finite exists.
func (s *KShortestNodeDisjoint) sample(weights []float64) int {
	if len(weights) == 1 {
		return 0
	}
	finite := make([]int, 0, len(weights))
	var total float64
	for i, w := range weights {
		if !math.IsInf(w, 1) {
			finite = append(finite, i)
			total += w
		}
	}
	if len(finite) == 0 {
		return s.rng.Intn(len(weights))
	}
	if len(finite) == 1 {
		return finite[0]
	}
	var norm float64
	probs := make([]float64, len(finite))
	for i, idx := range finite {
		probs[i] = 1 - weights[idx]/total
		norm += probs[i]
	}
	r := s.rng.Float64() * norm
	for i, p := range probs {
		r -= p
		if r <= 0 {
			return finite[i]
		}
	}
	return finite[len(finite)-1]
}

// servingSatellite resolves the unique satellite a ground station uplinks
// through.
func servingSatellite(g *Graph, gs string) (string, error) {
	for _, n := range g.Neighbors(gs) {
		if g.Kind(n) == models.KindLeoSatellite {
			return n, nil
		}
	}
	return "", ErrNoRoute
}

// nodeDisjointPaths finds the internally node-disjoint paths from s to t via
// unit-capacity max flow on the node-split graph: every interior node
// becomes an in/out pair joined by a capacity-1 arc, so no two augmenting
// paths may share it. Gonum carries no max-flow implementation, hence the
// explicit Edmonds-Karp here; adjacency is walked in snapshot insertion
// order to keep the result deterministic.
func nodeDisjointPaths(g *Graph, s, t string) [][]string {
	names := append([]string{}, g.Satellites()...)
	names = append(names, g.GroundStations()...)
	index := make(map[string]int, len(names))
	for i, n := range names {
		index[n] = i
	}
	// Vertex v maps to split nodes 2v (in) and 2v+1 (out); s and t use only
	// their out/in side respectively.
	nIn := func(v int) int { return 2 * v }
	nOut := func(v int) int { return 2*v + 1 }

	f := newFlowNet(2 * len(names))
	for _, name := range names {
		v := index[name]
		if name == s || name == t {
			continue
		}
		f.addEdge(nIn(v), nOut(v), 1)
	}
	for _, u := range names {
		if u == t {
			continue
		}
		for _, v := range g.Neighbors(u) {
			if v == s {
				continue
			}
			f.addEdge(nOut(index[u]), nIn(index[v]), 1)
		}
	}

	source, sink := nOut(index[s]), nIn(index[t])
	f.maxFlow(source, sink)

	// Decode: each unit of flow out of the source traces one path; interior
	// nodes carry at most one unit, so the walk never branches.
	var paths [][]string
	for _, ei := range f.adj[source] {
		e := &f.edges[ei]
		if e.flow <= 0 {
			continue
		}
		nodes := []string{s}
		cur := e.to
		e.flow = 0
		for cur != sink {
			v := cur / 2
			nodes = append(nodes, names[v])
			cur = nOut(v)
			advanced := false
			for _, nxt := range f.adj[cur] {
				ne := &f.edges[nxt]
				if ne.flow > 0 {
					ne.flow = 0
					cur = ne.to
					advanced = true
					break
				}
			}
			if !advanced {
				nodes = nil
				break
			}
		}
		if nodes != nil {
			paths = append(paths, append(nodes, t))
		}
	}
	return paths
}

// flowNet is a minimal residual network for unit-capacity Edmonds-Karp.
type flowNet struct {
	edges []flowEdge
	adj   [][]int
}

type flowEdge struct {
	to, cap, flow int
}

func newFlowNet(n int) *flowNet {
	return &flowNet{adj: make([][]int, n)}
}

func (f *flowNet) addEdge(u, v, c int) {
	f.adj[u] = append(f.adj[u], len(f.edges))
	f.edges = append(f.edges, flowEdge{to: v, cap: c})
	f.adj[v] = append(f.adj[v], len(f.edges))
	f.edges = append(f.edges, flowEdge{to: u})
}

func (f *flowNet) maxFlow(s, t int) int {
	total := 0
	for {
		parent := make([]int, len(f.adj))
		for i := range parent {
			parent[i] = -1
		}
		parent[s] = s
		queue := []int{s}
		via := make([]int, len(f.adj))
		found := false
		for len(queue) > 0 && !found {
			u := queue[0]
			queue = queue[1:]
			for _, ei := range f.adj[u] {
				e := f.edges[ei]
				if parent[e.to] == -1 && e.cap-e.flow > 0 {
					parent[e.to] = u
					via[e.to] = ei
					if e.to == t {
						found = true
						break
					}
					queue = append(queue, e.to)
				}
			}
		}
		if !found {
			return total
		}
		for v := t; v != s; v = parent[v] {
			f.edges[via[v]].flow++
			f.edges[via[v]^1].flow--
		}
		total++
	}
}
