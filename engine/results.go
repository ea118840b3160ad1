package engine

import (
	"encoding/json"
	"io"
	"sort"
)

// Series is one per-snapshot time series keyed by seconds since the window
// start.
type Series map[int]float64

// Results are the six per-strategy output series.
type Results struct {
	AvgBufferOccupation Series `json:"avg_buffer_occupation"`
	TotalDrops          Series `json:"number_of_packets_dropped"`
	RoutingDrops        Series `json:"number_of_packets_dropped_for_routing_issues"`
	BufferDrops         Series `json:"number_of_packets_dropped_for_buffer_issues"`
	PacketsSent         Series `json:"number_of_packets_sent"`
	PacketsDelivered    Series `json:"number_of_packets_delivered"`
}

func newResults() *Results {
	return &Results{
		AvgBufferOccupation: make(Series),
		TotalDrops:          make(Series),
		RoutingDrops:        make(Series),
		BufferDrops:         make(Series),
		PacketsSent:         make(Series),
		PacketsDelivered:    make(Series),
	}
}

// Keys returns the snapshot offsets in ascending order.
func (r *Results) Keys() []int {
	keys := make([]int, 0, len(r.PacketsSent))
	for k := range r.PacketsSent {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// WriteJSON renders the series, keyed by strategy name, to w.
func WriteJSON(w io.Writer, results map[string]*Results) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}
