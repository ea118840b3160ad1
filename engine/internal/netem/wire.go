package netem

import (
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// Wire is a one-shot propagation-delay element. The delay is constant per
// instance, so emission order is preserved.
type Wire struct {
	env        *sim.Environment
	Delay      float64 // seconds
	Downstream Receiver
}

// NewWire builds a wire with propagation delay lengthKm / c.
func NewWire(env *sim.Environment, lengthKm float64) *Wire {
	return &Wire{env: env, Delay: lengthKm / models.SpeedOfLightKmS}
}

// Put forwards pkt downstream after the propagation delay.
func (w *Wire) Put(pkt *models.Packet) {
	w.env.Schedule(w.Delay, func() {
		if w.Downstream != nil {
			w.Downstream.Put(pkt)
		}
	})
}
