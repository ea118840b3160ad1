package models

// NodeKind discriminates the two node variants carried by the topology
// service. The GROUD_STATION spelling is the service's own; it is part of the
// wire format and must not be "fixed" here.
type NodeKind string

const (
	KindLeoSatellite  NodeKind = "LEO_SATELLITE"
	KindGroundStation NodeKind = "GROUD_STATION"
)

// FlowID derives the stable flow identifier for a (src, dst) ground-station
// pair. Sinks count per flow id.
func FlowID(src, dst string) string { return src + "->" + dst }
