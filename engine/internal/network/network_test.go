package network

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fede-Berga/satellite-routing/engine/internal/netem"
	"github.com/Fede-Berga/satellite-routing/engine/internal/routing"
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/internal/topology"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// lineTopology is GS_A — Sat_1 — Sat_2 — GS_B with 1000 km links.
const lineTopology = `{
  "networkx_obj": {
    "nodes": [
      {"id": "GS_A", "type": "GROUD_STATION"},
      {"id": "Sat_1", "type": "LEO_SATELLITE", "plane": 0, "position_in_plane": 0},
      {"id": "Sat_2", "type": "LEO_SATELLITE", "plane": 0, "position_in_plane": 1},
      {"id": "GS_B", "type": "GROUD_STATION"}
    ],
    "links": [
      {"source": "GS_A", "target": "Sat_1", "length": 1000},
      {"source": "Sat_1", "target": "Sat_2", "length": 1000},
      {"source": "Sat_2", "target": "GS_B", "length": 1000}
    ]
  }
}`

func decode(t *testing.T, body string) *topology.Topology {
	t.Helper()
	topo, err := topology.Decode([]byte(body))
	require.NoError(t, err)
	return topo
}

// lineParams tunes the stock parameters to the line scenario: 1000 B
// packets at 8 Mbps ports.
func lineParams() models.Parameters {
	p := models.DefaultParameters()
	p.PacketSize = 1000
	p.SatellitePortRate = 8_000_000
	p.SatelliteQueueSize = 1e9
	p.LinkSwitchDelay = 0.1
	return p
}

// oneWayMatrix offers load on A->B only; 1e6 B/s means one 1000 B packet
// per millisecond.
func oneWayMatrix() topology.TrafficMatrix {
	return topology.TrafficMatrix{"GS_A": {"GS_B": 1_000_000}}
}

func buildLine(t *testing.T, env *sim.Environment, old *Network, params models.Parameters) *Network {
	t.Helper()
	n, err := Build(env, decode(t, lineTopology), oneWayMatrix(), old,
		netem.PortForwarding, routing.NewBaseline(), params, nil)
	require.NoError(t, err)
	return n
}

func TestBuildWiresEntityGraph(t *testing.T) {
	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, lineParams())

	require.Len(t, n.Satellites, 2)
	require.Len(t, n.Sinks, 2)
	// B->A has no offered load, so only one generator exists.
	require.Len(t, n.Generators["GS_A"], 1)
	require.Empty(t, n.Generators["GS_B"])

	// Sat_1 adjacency is [GS_A, Sat_2] in link order.
	require.Equal(t, 0, n.portIndex["Sat_1"]["GS_A"])
	require.Equal(t, 1, n.portIndex["Sat_1"]["Sat_2"])

	sat1 := n.Satellites["Sat_1"]
	require.Equal(t, "Sat_2", sat1.OutSatOrGS[1])
	require.Equal(t, 0.0, sat1.PendingLinkSwitchDelay(0))
	require.Equal(t, 0.0, sat1.PendingLinkSwitchDelay(1))
}

func TestStaticLineDeliversNearlyEverything(t *testing.T) {
	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, lineParams())

	require.NoError(t, env.RunUntil(1))
	c := n.Harvest()

	// 999 or 1000 depending on how the accumulated float interarrivals
	// land against the horizon.
	assert.GreaterOrEqual(t, c.PacketsSent, int64(999))
	assert.LessOrEqual(t, c.PacketsSent, int64(1000))
	assert.Zero(t, c.TotalDrops)
	// Everything sent is either delivered or still in flight behind ~12 ms
	// of propagation and transmission latency.
	assert.Greater(t, c.PacketsDelivered, int64(980))
	assert.LessOrEqual(t, c.PacketsDelivered, c.PacketsSent)
}

func TestCongestionCollapseDropsOnBuffers(t *testing.T) {
	params := lineParams()
	params.SatellitePortRate = 8_000 // 1 s per packet
	params.SatelliteQueueSize = 3_000

	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, params)

	require.NoError(t, env.RunUntil(1))
	c := n.Harvest()

	assert.Positive(t, c.BufferDrops)
	assert.Zero(t, c.RoutingDrops)
	assert.Equal(t, c.BufferDrops, c.TotalDrops)
}

func TestRebuildWithSameTopologyKeepsStateAndClearsDelays(t *testing.T) {
	env := sim.NewEnvironment()
	params := lineParams()
	n1 := buildLine(t, env, nil, params)
	require.NoError(t, env.RunUntil(1))

	gen := n1.Generators["GS_A"]["GS_B"]
	sink := n1.Sinks["GS_B"]
	sat := n1.Satellites["Sat_1"]

	n2 := buildLine(t, env, n1, params)

	// Entities survive the refresh; only wires are replaced.
	assert.Same(t, gen, n2.Generators["GS_A"]["GS_B"])
	assert.Same(t, sink, n2.Sinks["GS_B"])
	assert.Same(t, sat, n2.Satellites["Sat_1"])

	for _, id := range []string{"Sat_1", "Sat_2"} {
		s := n2.Satellites[id]
		for idx := range s.OutPorts {
			assert.Equal(t, 0.0, s.PendingLinkSwitchDelay(idx), "sat %s port %d", id, idx)
		}
	}
}

// rewiredTopology swaps Sat_2 for Sat_3 behind Sat_1.
const rewiredTopology = `{
  "networkx_obj": {
    "nodes": [
      {"id": "GS_A", "type": "GROUD_STATION"},
      {"id": "Sat_1", "type": "LEO_SATELLITE", "plane": 0, "position_in_plane": 0},
      {"id": "Sat_3", "type": "LEO_SATELLITE", "plane": 1, "position_in_plane": 0},
      {"id": "GS_B", "type": "GROUD_STATION"}
    ],
    "links": [
      {"source": "GS_A", "target": "Sat_1", "length": 1000},
      {"source": "Sat_1", "target": "Sat_3", "length": 1000},
      {"source": "Sat_3", "target": "GS_B", "length": 1000}
    ]
  }
}`

func rebuildRewired(t *testing.T, env *sim.Environment, old *Network, strategy netem.ForwardingStrategy) *Network {
	t.Helper()
	params := lineParams()
	n, err := Build(env, decode(t, rewiredTopology), oneWayMatrix(), old,
		strategy, routing.NewBaseline(), params, nil)
	require.NoError(t, err)
	return n
}

func staleHeaderPacket() *models.Packet {
	return &models.Packet{ID: 1, Size: 1000, FlowID: models.FlowID("GS_A", "GS_B"),
		Header: []models.Hop{{Port: 1, NextHop: "Sat_2"}}}
}

func TestRewireArmsLinkSwitchDelayOnce(t *testing.T) {
	env := sim.NewEnvironment()
	params := lineParams()
	n1, err := Build(env, decode(t, lineTopology), oneWayMatrix(), nil,
		netem.PortForwarding, routing.NewBaseline(), params, nil)
	require.NoError(t, err)

	n2 := rebuildRewired(t, env, n1, netem.PortForwarding)
	sat1 := n2.Satellites["Sat_1"]

	// Port 0 still faces GS_A; port 1 now faces Sat_3.
	assert.Equal(t, 0.0, sat1.PendingLinkSwitchDelay(0))
	assert.Equal(t, params.LinkSwitchDelay, sat1.PendingLinkSwitchDelay(1))
	assert.Equal(t, "Sat_3", sat1.OutSatOrGS[1])
}

func TestStrategyDivergenceOnStaleHeader(t *testing.T) {
	t.Run("port forwarding chases the port", func(t *testing.T) {
		env := sim.NewEnvironment()
		n1, err := Build(env, decode(t, lineTopology), oneWayMatrix(), nil,
			netem.PortForwarding, routing.NewBaseline(), lineParams(), nil)
		require.NoError(t, err)
		n2 := rebuildRewired(t, env, n1, netem.PortForwarding)

		n2.Satellites["Sat_1"].Put(staleHeaderPacket())
		require.NoError(t, env.RunUntil(1))

		// The packet is forwarded to Sat_3, which finds an empty header and
		// counts the routing drop itself.
		assert.Equal(t, int64(0), n2.Satellites["Sat_1"].RoutingIssuesDrops)
		assert.Equal(t, int64(1), n2.Satellites["Sat_3"].RoutingIssuesDrops)
	})

	t.Run("early discarding drops at the first satellite", func(t *testing.T) {
		env := sim.NewEnvironment()
		n1, err := Build(env, decode(t, lineTopology), oneWayMatrix(), nil,
			netem.EarlyDiscarding, routing.NewBaseline(), lineParams(), nil)
		require.NoError(t, err)
		n2 := rebuildRewired(t, env, n1, netem.EarlyDiscarding)

		n2.Satellites["Sat_1"].Put(staleHeaderPacket())
		require.NoError(t, env.RunUntil(1))

		assert.Equal(t, int64(1), n2.Satellites["Sat_1"].RoutingIssuesDrops)
		assert.Equal(t, int64(0), n2.Satellites["Sat_3"].RoutingIssuesDrops)
	})
}

// forkTopology gives Sat_1 three neighbors so slot reassignment is visible.
func forkTopology(third string) string {
	return fmt.Sprintf(`{
  "networkx_obj": {
    "nodes": [
      {"id": "GS_A", "type": "GROUD_STATION"},
      {"id": "Sat_1", "type": "LEO_SATELLITE"},
      {"id": "%[1]s", "type": "LEO_SATELLITE"},
      {"id": "Sat_2", "type": "LEO_SATELLITE"},
      {"id": "GS_B", "type": "GROUD_STATION"}
    ],
    "links": [
      {"source": "GS_A", "target": "Sat_1", "length": 1000},
      {"source": "Sat_1", "target": "%[1]s", "length": 1000},
      {"source": "Sat_1", "target": "Sat_2", "length": 1000},
      {"source": "Sat_2", "target": "GS_B", "length": 1000},
      {"source": "%[1]s", "target": "GS_B", "length": 2500}
    ]
  }
}`, third)
}

func TestPortIndexStabilityAcrossReassignment(t *testing.T) {
	env := sim.NewEnvironment()
	params := lineParams()
	n1, err := Build(env, decode(t, forkTopology("Sat_X")), oneWayMatrix(), nil,
		netem.PortForwarding, routing.NewBaseline(), params, nil)
	require.NoError(t, err)

	require.Equal(t, 0, n1.portIndex["Sat_1"]["GS_A"])
	require.Equal(t, 1, n1.portIndex["Sat_1"]["Sat_X"])
	require.Equal(t, 2, n1.portIndex["Sat_1"]["Sat_2"])

	// Sat_X is replaced by Sat_Y; survivors keep their slots and the
	// newcomer takes the freed one.
	n2, err := Build(env, decode(t, forkTopology("Sat_Y")), oneWayMatrix(), n1,
		netem.PortForwarding, routing.NewBaseline(), params, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, n2.portIndex["Sat_1"]["GS_A"])
	assert.Equal(t, 2, n2.portIndex["Sat_1"]["Sat_2"])
	assert.Equal(t, 1, n2.portIndex["Sat_1"]["Sat_Y"])

	sat1 := n2.Satellites["Sat_1"]
	assert.Equal(t, 0.0, sat1.PendingLinkSwitchDelay(0))
	assert.Equal(t, params.LinkSwitchDelay, sat1.PendingLinkSwitchDelay(1))
	assert.Equal(t, 0.0, sat1.PendingLinkSwitchDelay(2))
}

func TestHeadersMatchLiveWiring(t *testing.T) {
	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, lineParams())

	hdr := n.Routing.Header("GS_A", "GS_B")
	require.Equal(t, []models.Hop{
		{Port: 1, NextHop: "GS_B"}, // Sat_2 -> GS_B sits at the head
		{Port: 1, NextHop: "Sat_2"},
	}, hdr)
}

func TestSinkTimestampsAreMonotonicPerFlow(t *testing.T) {
	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, lineParams())

	var last float64
	require.NoError(t, env.RunUntil(0.5))
	mid := n.Sinks["GS_B"].LastArrival(models.FlowID("GS_A", "GS_B"))
	require.NoError(t, env.RunUntil(1))
	last = n.Sinks["GS_B"].LastArrival(models.FlowID("GS_A", "GS_B"))
	assert.GreaterOrEqual(t, last, mid)
}

func TestDumpStatusRendersFlowsAndPorts(t *testing.T) {
	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, lineParams())
	require.NoError(t, env.RunUntil(1))

	var status bytes.Buffer
	n.DumpStatus(&status)
	out := status.String()
	assert.Contains(t, out, "GS_A sent")
	assert.Contains(t, out, "flow GS_A->GS_B: packets sent")
	assert.Contains(t, out, "GS_B received")
	assert.Contains(t, out, "flow GS_A->GS_B: packets received")
	assert.Contains(t, out, "Sat_1: packets received")
	assert.Contains(t, out, "port 1 -> Sat_2")

	var routes bytes.Buffer
	n.DumpRouting(&routes)
	assert.Contains(t, routes.String(), "Sat_1\n  port 0 -> GS_A\n  port 1 -> Sat_2")
}

func TestHarvestBufferOccupationAveragesPorts(t *testing.T) {
	params := lineParams()
	params.SatellitePortRate = 8_000 // everything queues
	params.SatelliteQueueSize = 1e9

	env := sim.NewEnvironment()
	n := buildLine(t, env, nil, params)
	require.NoError(t, env.RunUntil(1))

	c := n.Harvest()
	assert.Positive(t, c.AvgBufferOccupation)
}
