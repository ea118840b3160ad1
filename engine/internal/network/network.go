// Package network assembles the entity graph for one topology snapshot and
// refreshes it in place when the constellation moves. Satellites, sinks,
// and generators are long-lived and owned by the Network; ports and wires
// are owned by their containing entity, so references form a DAG from
// generators to sinks.
package network

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/Fede-Berga/satellite-routing/engine/internal/netem"
	"github.com/Fede-Berga/satellite-routing/engine/internal/routing"
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/internal/topology"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// Network is the live entity graph for the current snapshot.
type Network struct {
	env      *sim.Environment
	params   models.Parameters
	strategy netem.ForwardingStrategy
	logger   *slog.Logger

	Topo       *topology.Topology
	Satellites map[string]*netem.LeoSatellite
	Sinks      map[string]*netem.PacketSink
	Generators map[string]map[string]*netem.PacketGenerator
	Routing    *routing.Context

	// portIndex pins the out-port index of each (satellite, neighbor) pair;
	// indices survive snapshots while the neighbor stays adjacent.
	portIndex map[string]map[string]int
	gsWires   map[string]*netem.Wire
}

// Build assembles a network from a decoded topology, carrying live state
// over from old when present. routingStrategy is the routing strategy for a
// fresh network; when old is given its routing context (and therefore the
// strategy's EWMA and caches) is reused and routingStrategy is ignored.
func Build(
	env *sim.Environment,
	topo *topology.Topology,
	tm topology.TrafficMatrix,
	old *Network,
	strategy netem.ForwardingStrategy,
	routingStrategy routing.Strategy,
	params models.Parameters,
	logger *slog.Logger,
) (*Network, error) {
	if logger == nil {
		logger = slog.Default()
	}
	gss := topo.GroundStations()
	if len(gss) < 2 {
		return nil, fmt.Errorf("topology has %d ground stations, need at least 2", len(gss))
	}

	n := &Network{
		env:        env,
		params:     params,
		strategy:   strategy,
		logger:     logger,
		Topo:       topo,
		Satellites: make(map[string]*netem.LeoSatellite),
		Sinks:      make(map[string]*netem.PacketSink),
		Generators: make(map[string]map[string]*netem.PacketGenerator),
		portIndex:  make(map[string]map[string]int),
		gsWires:    make(map[string]*netem.Wire),
	}

	n.carrySinks(old, gss)
	n.carrySatellites(old, topo.Satellites())
	n.wireSatellites(old)
	n.wireGroundStations()

	if old != nil {
		n.Routing = old.Routing
		n.Routing.SetSnapshotFunc(n.snapshot)
	} else {
		n.Routing = routing.NewContext(env, routingStrategy, params.RoutingUpdateFreq, n.snapshot)
	}
	n.Routing.ForceRefresh()

	n.buildGenerators(old, gss, tm)
	return n, nil
}

func (n *Network) carrySinks(old *Network, gss []string) {
	for _, gs := range gss {
		if old != nil {
			if sink, ok := old.Sinks[gs]; ok {
				n.Sinks[gs] = sink
				continue
			}
		}
		n.Sinks[gs] = netem.NewPacketSink(n.env)
	}
}

func (n *Network) carrySatellites(old *Network, sats []string) {
	for _, id := range sats {
		if old != nil {
			if sat, ok := old.Satellites[id]; ok {
				n.Satellites[id] = sat
				continue
			}
		}
		n.Satellites[id] = netem.NewLeoSatellite(n.env, id, n.strategy)
	}
}

// ingress resolves a node id to its put-endpoint: a satellite's mailbox or
// a ground station's sink.
func (n *Network) ingress(id string) netem.Receiver {
	if sat, ok := n.Satellites[id]; ok {
		return sat
	}
	return n.Sinks[id]
}

// assignPorts computes this snapshot's port index for every neighbor of
// sat: surviving neighbors keep their old index, new neighbors take the
// free slots in adjacency-enumeration order.
func (n *Network) assignPorts(sat string, adj []topology.Neighbor, old *Network) map[string]int {
	assigned := make(map[string]int, len(adj))
	occupied := make(map[int]bool, len(adj))
	if old != nil {
		for _, nb := range adj {
			if idx, ok := old.portIndex[sat][nb.ID]; ok {
				assigned[nb.ID] = idx
				occupied[idx] = true
			}
		}
	}
	next := 0
	for _, nb := range adj {
		if _, ok := assigned[nb.ID]; ok {
			continue
		}
		for occupied[next] {
			next++
		}
		assigned[nb.ID] = next
		occupied[next] = true
	}
	return assigned
}

func (n *Network) wireSatellites(old *Network) {
	for _, satID := range n.Topo.Satellites() {
		sat := n.Satellites[satID]
		adj := n.Topo.Adj[satID]
		assigned := n.assignPorts(satID, adj, old)
		n.portIndex[satID] = assigned

		current := make(map[int]string, len(adj))
		for _, nb := range adj {
			idx := assigned[nb.ID]
			wire := netem.NewWire(n.env, nb.Length)
			downstream := n.ingress(nb.ID)

			if port, ok := sat.OutPorts[idx]; ok {
				// Existing slot: a changed neighbor behind it pays the
				// reconfiguration latency on its next dispatch.
				if oldWire, ok := port.Downstream.(*netem.Wire); ok && oldWire.Downstream == downstream {
					sat.SetLinkSwitchDelay(idx, 0)
				} else {
					sat.SetLinkSwitchDelay(idx, n.params.LinkSwitchDelay)
				}
				port.Downstream = wire
			} else {
				port = netem.NewPort(n.env, n.params.SatellitePortRate, n.params.SatelliteQueueSize, n.params.LimitBytes)
				port.Downstream = wire
				sat.OutPorts[idx] = port
				sat.SetLinkSwitchDelay(idx, 0)
			}
			wire.Downstream = downstream
			current[idx] = nb.ID
		}
		// OutSatOrGS reflects exactly the current assignment so neighbor
		// identity checks never see departed satellites.
		sat.OutSatOrGS = current
	}
}

func (n *Network) wireGroundStations() {
	for _, gs := range n.Topo.GroundStations() {
		upstream, length, ok := n.upstreamSatellite(gs)
		if !ok {
			n.logger.Warn("ground station has no upstream satellite", "gs", gs)
			continue
		}
		wire := netem.NewWire(n.env, length)
		wire.Downstream = n.Satellites[upstream]
		n.gsWires[gs] = wire
	}
}

func (n *Network) upstreamSatellite(gs string) (string, float64, bool) {
	for _, nb := range n.Topo.Adj[gs] {
		if _, ok := n.Satellites[nb.ID]; ok {
			return nb.ID, nb.Length, true
		}
	}
	return "", 0, false
}

func (n *Network) buildGenerators(old *Network, gss []string, tm topology.TrafficMatrix) {
	for _, src := range gss {
		n.Generators[src] = make(map[string]*netem.PacketGenerator)
		wire, ok := n.gsWires[src]
		if !ok {
			continue // no upstream satellite; warned during wiring
		}
		for _, dst := range gss {
			if src == dst {
				continue
			}
			if old != nil {
				if gen, ok := old.Generators[src][dst]; ok {
					gen.Out = wire
					n.Generators[src][dst] = gen
					continue
				}
			}
			rate := tm.Rate(src, dst)
			if rate <= 0 {
				n.logger.Warn("traffic matrix has no offered load for pair", "src", src, "dst", dst)
				continue
			}
			interarrival := float64(n.params.PacketSize) / rate
			size := n.params.PacketSize
			gen := netem.NewPacketGenerator(n.env, netem.GeneratorConfig{
				Src:         src,
				Dst:         dst,
				ArrivalDist: func() float64 { return interarrival },
				SizeDist:    func() int64 { return size },
				Finish:      math.Inf(1),
				UpdateFreq:  n.params.RoutingUpdateFreq,
				ControlRTT:  n.params.LeoGeoGsTD,
			}, n.Routing)
			gen.Out = wire
			n.Generators[src][dst] = gen
			gen.Start()
		}
	}
}

// snapshot builds the annotated routing graph from live state: every edge
// carries its length, and satellite-origin edges also the port index and
// that port's queued bytes.
func (n *Network) snapshot() *routing.Graph {
	g := routing.NewGraph()
	for _, node := range n.Topo.Nodes {
		g.AddNode(node.ID, node.Kind)
	}
	for _, node := range n.Topo.Nodes {
		for _, nb := range n.Topo.Adj[node.ID] {
			info := routing.EdgeInfo{LengthKm: nb.Length}
			if sat, ok := n.Satellites[node.ID]; ok {
				idx := n.portIndex[node.ID][nb.ID]
				info.OutPort = idx
				info.HasPort = true
				if port, ok := sat.OutPorts[idx]; ok {
					info.BufferOccupation = float64(port.QueuedBytes())
				}
			}
			g.AddEdge(node.ID, nb.ID, info)
		}
	}
	return g
}

// Counters are the per-snapshot harvest values. All counts are cumulative
// since the start of the run.
type Counters struct {
	AvgBufferOccupation float64 // packets, averaged per port then per satellite
	TotalDrops          int64
	RoutingDrops        int64
	BufferDrops         int64
	PacketsSent         int64
	PacketsDelivered    int64
}

// Harvest reads the counters off the live entities.
func (n *Network) Harvest() Counters {
	var c Counters

	// Iterate in topology order so float accumulation is reproducible
	// run-to-run.
	sats := n.Topo.Satellites()
	var occ float64
	for _, id := range sats {
		sat := n.Satellites[id]
		if len(sat.OutPorts) == 0 {
			continue
		}
		var satOcc float64
		for _, idx := range sortedPorts(sat.OutPorts) {
			satOcc += float64(sat.OutPorts[idx].QueuedBytes() / n.params.PacketSize)
		}
		occ += satOcc / float64(len(sat.OutPorts))
	}
	if len(sats) > 0 {
		c.AvgBufferOccupation = occ / float64(len(sats))
	}

	for _, id := range sats {
		sat := n.Satellites[id]
		c.RoutingDrops += sat.RoutingIssuesDrops
		c.BufferDrops += sat.PortDrop()
	}
	c.TotalDrops = c.RoutingDrops + c.BufferDrops

	for _, gs := range n.Topo.GroundStations() {
		for _, gen := range n.Generators[gs] {
			c.PacketsSent += gen.PacketsSent
		}
		c.PacketsDelivered += n.Sinks[gs].TotalReceived()
	}
	return c
}
