package netem

import (
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// PacketSink terminates flows at a ground station and counts arrivals per
// flow id. Sinks survive every topology snapshot.
type PacketSink struct {
	env *sim.Environment

	packetsReceived map[string]int64
	lastArrival     map[string]float64
}

func NewPacketSink(env *sim.Environment) *PacketSink {
	return &PacketSink{
		env:             env,
		packetsReceived: make(map[string]int64),
		lastArrival:     make(map[string]float64),
	}
}

func (s *PacketSink) Put(pkt *models.Packet) {
	s.packetsReceived[pkt.FlowID]++
	s.lastArrival[pkt.FlowID] = s.env.Now()
}

// Received returns the arrival count for one flow.
func (s *PacketSink) Received(flow string) int64 { return s.packetsReceived[flow] }

// TotalReceived sums arrivals over all flows.
func (s *PacketSink) TotalReceived() int64 {
	var n int64
	for _, c := range s.packetsReceived {
		n += c
	}
	return n
}

// Flows lists the flow ids seen so far.
func (s *PacketSink) Flows() []string {
	out := make([]string, 0, len(s.packetsReceived))
	for f := range s.packetsReceived {
		out = append(out, f)
	}
	return out
}

// LastArrival returns the simulated time of the most recent arrival on flow.
func (s *PacketSink) LastArrival(flow string) float64 { return s.lastArrival[flow] }
