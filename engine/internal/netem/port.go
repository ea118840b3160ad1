package netem

import (
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// Port is a bounded output queue serving one packet at a time at Rate bits
// per second. Overflow drops are counted, never propagated. The queued byte
// count excludes the packet currently in service, so it is exactly the
// buffer occupation the routing snapshot reads.
type Port struct {
	env *sim.Environment

	Rate       float64 // bits per second
	QLimit     float64 // bytes when LimitBytes, packets otherwise
	LimitBytes bool
	Downstream Receiver

	queue   []*models.Packet
	serving *models.Packet

	queuedBytes        int64
	PacketsReceived    int64
	PacketsDropped     int64
	PacketsTransmitted int64
}

// NewPort builds an idle port. Downstream is attached by the network builder.
func NewPort(env *sim.Environment, rate, qlimit float64, limitBytes bool) *Port {
	return &Port{env: env, Rate: rate, QLimit: qlimit, LimitBytes: limitBytes}
}

// QueuedBytes is the waiting-buffer occupation in bytes.
func (p *Port) QueuedBytes() int64 { return p.queuedBytes }

// QueuedPackets counts waiting packets plus the one in service.
func (p *Port) QueuedPackets() int {
	n := len(p.queue)
	if p.serving != nil {
		n++
	}
	return n
}

// Put accepts or drops pkt. Accepted packets are enqueued FIFO and the
// service loop is kicked if idle.
func (p *Port) Put(pkt *models.Packet) {
	p.PacketsReceived++
	if p.LimitBytes {
		if float64(p.queuedBytes+pkt.Size) > p.QLimit {
			p.PacketsDropped++
			return
		}
	} else if float64(len(p.queue)+1) > p.QLimit {
		p.PacketsDropped++
		return
	}
	p.queue = append(p.queue, pkt)
	p.queuedBytes += pkt.Size
	if p.serving == nil {
		p.serve()
	}
}

// serve pops the head and holds it for the transmission time before handing
// it downstream.
func (p *Port) serve() {
	pkt := p.queue[0]
	p.queue = p.queue[1:]
	p.queuedBytes -= pkt.Size
	p.serving = pkt

	ttx := 8 * float64(pkt.Size) / p.Rate
	p.env.Schedule(ttx, func() {
		p.serving = nil
		p.PacketsTransmitted++
		if p.Downstream != nil {
			p.Downstream.Put(pkt)
		}
		if len(p.queue) > 0 {
			p.serve()
		}
	})
}
