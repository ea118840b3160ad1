// Package netem holds the discrete-event network elements: generators emit
// packets into wires, wires delay them into satellites, satellites route
// them through finite ports back onto wires, and sinks count what arrives.
package netem

import "github.com/Fede-Berga/satellite-routing/engine/models"

// Receiver is the put-endpoint shared by every element that can accept a
// packet. Cross-element links (port→wire, wire→satellite, generator→wire)
// are plain Receiver handles; ownership stays with the containing entity so
// the reference graph is a DAG from source to sink.
type Receiver interface {
	Put(p *models.Packet)
}
