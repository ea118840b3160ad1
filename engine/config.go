package engine

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Fede-Berga/satellite-routing/engine/internal/netem"
	"github.com/Fede-Berga/satellite-routing/engine/models"
)

// ErrConfig marks an invalid configuration. The CLI maps it to exit code 1.
var ErrConfig = errors.New("engine: invalid configuration")

// BuilderKind names a header-builder variant.
type BuilderKind string

const (
	BuilderBaseline             BuilderKind = "baseline"
	BuilderNoSmoothing          BuilderKind = "no_smoothing"
	BuilderExponentialSmoothing BuilderKind = "exponential_smoothing"
	BuilderKShortestDisjoint    BuilderKind = "k_shortest_node_disjoint"
)

// Config is the public configuration surface for the Engine facade.
type Config struct {
	// External services
	TopologyURL      string
	TrafficMatrixURL string
	Cities           []string

	// Simulated window: topology snapshots are fetched for wall-clock
	// instants in [Start, End] every SnapshotInterval.
	Start            time.Time
	End              time.Time
	SnapshotInterval time.Duration

	// Strategies to simulate; each runs in its own environment.
	Strategies []netem.ForwardingStrategy
	Builder    BuilderKind

	Params models.Parameters

	// Telemetry
	MetricsEnabled       bool
	MetricsBackend       string // "prometheus" (default), "otel", "noop"
	PrometheusListenAddr string

	Logger *slog.Logger

	// DumpWriter, when set, receives a textual dump of the final network
	// state (per-flow counters, port tables) after each strategy run.
	DumpWriter io.Writer

	// HTTPClient overrides the default client for both services. Tests use
	// it; nil selects a client with a sane timeout.
	HTTPClient *http.Client
}

// Defaults returns a Config with the stock parameter set. Service URLs and
// the time window must still be provided.
func Defaults() Config {
	return Config{
		SnapshotInterval: time.Second,
		Strategies:       []netem.ForwardingStrategy{netem.PortForwarding},
		Builder:          BuilderBaseline,
		Params:           models.DefaultParameters(),
		MetricsBackend:   "prometheus",
	}
}

// Validate rejects configurations the engine cannot run.
func (c Config) Validate() error {
	if c.TopologyURL == "" || c.TrafficMatrixURL == "" {
		return fmt.Errorf("%w: both service URLs are required", ErrConfig)
	}
	if len(c.Cities) == 0 {
		return fmt.Errorf("%w: empty cities list", ErrConfig)
	}
	if c.Start.IsZero() || c.End.IsZero() || c.End.Before(c.Start) {
		return fmt.Errorf("%w: invalid time window [%s, %s]", ErrConfig, c.Start, c.End)
	}
	if c.SnapshotInterval <= 0 {
		return fmt.Errorf("%w: snapshot interval must be positive", ErrConfig)
	}
	if len(c.Strategies) == 0 {
		return fmt.Errorf("%w: no forwarding strategy selected", ErrConfig)
	}
	switch c.Builder {
	case BuilderBaseline, BuilderNoSmoothing, BuilderExponentialSmoothing, BuilderKShortestDisjoint:
	default:
		return fmt.Errorf("%w: unknown header builder %q", ErrConfig, c.Builder)
	}
	return nil
}
