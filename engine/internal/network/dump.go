package network

import (
	"fmt"
	"io"
	"sort"
)

// DumpStatus renders per-flow send/receive counts and per-satellite port
// state. Debug aid; the CLI exposes it behind -dump.
func (n *Network) DumpStatus(w io.Writer) {
	for _, gs := range n.Topo.GroundStations() {
		fmt.Fprintf(w, "%s sent\n", gs)
		for _, dst := range sortedKeys(n.Generators[gs]) {
			gen := n.Generators[gs][dst]
			fmt.Fprintf(w, "  flow %s: packets sent %d\n", gen.FlowID, gen.PacketsSent)
		}
		fmt.Fprintf(w, "%s received\n", gs)
		sink := n.Sinks[gs]
		flows := sink.Flows()
		sort.Strings(flows)
		for _, flow := range flows {
			fmt.Fprintf(w, "  flow %s: packets received %d\n", flow, sink.Received(flow))
		}
	}

	for _, satID := range n.Topo.Satellites() {
		sat := n.Satellites[satID]
		if sat.PacketsReceived == 0 {
			continue
		}
		fmt.Fprintf(w, "%s: packets received %d, routing drops %d\n",
			satID, sat.PacketsReceived, sat.RoutingIssuesDrops)
		for _, idx := range sortedPorts(sat.OutPorts) {
			port := sat.OutPorts[idx]
			if port.PacketsReceived == 0 {
				continue
			}
			fmt.Fprintf(w, "  port %d -> %s: received %d, transmitted %d, dropped %d, queued %d B\n",
				idx, sat.OutSatOrGS[idx], port.PacketsReceived, port.PacketsTransmitted,
				port.PacketsDropped, port.QueuedBytes())
		}
	}
}

// DumpRouting renders the current port assignment per satellite.
func (n *Network) DumpRouting(w io.Writer) {
	for _, satID := range n.Topo.Satellites() {
		fmt.Fprintf(w, "%s\n", satID)
		for _, e := range sortedByPort(n.portIndex[satID]) {
			fmt.Fprintf(w, "  port %d -> %s\n", e.port, e.neighbor)
		}
	}
}

type portEntry struct {
	neighbor string
	port     int
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedPorts[V any](m map[int]V) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// sortedByPort flattens a neighbor->port map into port order.
func sortedByPort(m map[string]int) []portEntry {
	entries := make([]portEntry, 0, len(m))
	for nb, p := range m {
		entries = append(entries, portEntry{neighbor: nb, port: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].port < entries[j].port })
	return entries
}
