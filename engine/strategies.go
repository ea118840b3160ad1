package engine

import (
	"github.com/Fede-Berga/satellite-routing/engine/internal/netem"
	"github.com/Fede-Berga/satellite-routing/engine/internal/topology"
)

// Re-exported forwarding surface so embedders never import internal
// packages directly.
type ForwardingStrategy = netem.ForwardingStrategy

const (
	PortForwarding  = netem.PortForwarding
	EarlyDiscarding = netem.EarlyDiscarding
)

// ParseForwardingStrategy maps the CLI spelling to a strategy.
func ParseForwardingStrategy(s string) (ForwardingStrategy, bool) {
	return netem.ParseForwardingStrategy(s)
}

// Error sentinels surfaced by Run. The CLI maps them to exit codes.
var (
	ErrFetch             = topology.ErrFetch
	ErrMalformedTopology = topology.ErrMalformedTopology
)
