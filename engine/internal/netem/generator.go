package netem

import (
	"math"

	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// RoutingProvider hands out source-routing headers and accepts refresh
// nudges from the data plane. The network's routing context implements it.
type RoutingProvider interface {
	// Header returns the reversed (port, next-hop) list for the pair, or an
	// empty header when no route exists.
	Header(src, dst string) []models.Hop
	// Refresh re-snapshots the topology unless one was taken recently.
	Refresh()
}

// GeneratorConfig parameterizes one (src, dst) packet generator.
type GeneratorConfig struct {
	Src, Dst     string
	ArrivalDist  func() float64 // inter-arrival seconds
	SizeDist     func() int64   // bytes
	InitialDelay float64
	Finish       float64 // horizon; +Inf runs forever
	UpdateFreq   float64 // seconds between routing re-queries
	ControlRTT   float64 // suspension wrapping a re-query (LEO↔GEO↔GS round trip)
}

// PacketGenerator emits packets for a single flow. It survives snapshots;
// only its Out handle is re-pointed when the serving satellite changes.
type PacketGenerator struct {
	env     *sim.Environment
	cfg     GeneratorConfig
	routing RoutingProvider

	Out    Receiver // upstream wire to the serving satellite
	FlowID string

	PacketsSent int64
	lastRefresh float64
	started     bool
}

func NewPacketGenerator(env *sim.Environment, cfg GeneratorConfig, routing RoutingProvider) *PacketGenerator {
	if cfg.Finish == 0 {
		cfg.Finish = math.Inf(1)
	}
	return &PacketGenerator{
		env:     env,
		cfg:     cfg,
		routing: routing,
		FlowID:  models.FlowID(cfg.Src, cfg.Dst),
	}
}

// Start arms the generator loop. Idempotent; the network builder calls it
// once on first construction.
func (g *PacketGenerator) Start() {
	if g.started {
		return
	}
	g.started = true
	g.lastRefresh = g.env.Now()
	g.env.Schedule(g.cfg.InitialDelay, g.tick)
}

func (g *PacketGenerator) tick() {
	if g.env.Now() >= g.cfg.Finish {
		return
	}
	g.env.Schedule(g.cfg.ArrivalDist(), g.emit)
}

func (g *PacketGenerator) emit() {
	g.PacketsSent++
	pkt := &models.Packet{
		Time:   g.env.Now(),
		Size:   g.cfg.SizeDist(),
		ID:     g.PacketsSent,
		Src:    g.cfg.Src,
		Dst:    g.cfg.Dst,
		FlowID: g.FlowID,
		Header: g.routing.Header(g.cfg.Src, g.cfg.Dst),
	}

	// Lazy control-plane refresh: at most once per UpdateFreq, and only
	// after the round trip to the coordinator has elapsed.
	if g.env.Now()-g.lastRefresh > g.cfg.UpdateFreq {
		g.lastRefresh = g.env.Now()
		g.env.Schedule(g.cfg.ControlRTT, g.routing.Refresh)
	}

	if g.Out != nil {
		g.Out.Put(pkt)
	}
	g.tick()
}
