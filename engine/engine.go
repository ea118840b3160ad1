// Package engine composes the simulator behind a single facade: fetch the
// traffic matrix once, then repeatedly fetch the topology for the current
// wall-clock instant, rebuild the network in place, advance the
// discrete-event scheduler by one snapshot interval, and harvest counters.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/Fede-Berga/satellite-routing/engine/internal/netem"
	"github.com/Fede-Berga/satellite-routing/engine/internal/network"
	"github.com/Fede-Berga/satellite-routing/engine/internal/routing"
	"github.com/Fede-Berga/satellite-routing/engine/internal/sim"
	"github.com/Fede-Berga/satellite-routing/engine/internal/topology"
	"github.com/Fede-Berga/satellite-routing/engine/telemetry/events"
	"github.com/Fede-Berga/satellite-routing/engine/telemetry/logging"
	"github.com/Fede-Berga/satellite-routing/engine/telemetry/metrics"
)

// Engine runs snapshot-driven simulations of a LEO constellation.
type Engine struct {
	cfg    Config
	client *topology.Client
	logger *slog.Logger

	provider metrics.Provider
	bus      events.Bus

	mPacketsSent      metrics.Counter
	mPacketsDelivered metrics.Counter
	mRoutingDrops     metrics.Counter
	mBufferDrops      metrics.Counter
	gBufferOccupation metrics.Gauge
	hBuildSeconds     metrics.Histogram
}

// New validates cfg and assembles an engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client := topology.NewClient(cfg.TopologyURL, cfg.TrafficMatrixURL)
	if cfg.HTTPClient != nil {
		client.HTTPClient = cfg.HTTPClient
	}

	e := &Engine{
		cfg:      cfg,
		client:   client,
		logger:   logging.For(cfg.Logger, "engine"),
		provider: selectMetricsProvider(cfg),
	}
	e.bus = events.NewBus(e.provider)
	if e.provider != nil {
		e.initMetrics()
	}
	return e, nil
}

// selectMetricsProvider maps Config telemetry fields onto a backend.
func selectMetricsProvider(cfg Config) metrics.Provider {
	if !cfg.MetricsEnabled {
		return nil
	}
	switch strings.ToLower(cfg.MetricsBackend) {
	case "", "prom", "prometheus":
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	case "otel", "opentelemetry":
		return metrics.NewOTelProvider(metrics.OTelProviderOptions{})
	case "noop":
		return metrics.NewNoopProvider()
	default:
		return metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	}
}

func (e *Engine) initMetrics() {
	common := func(name, help string) metrics.CommonOpts {
		return metrics.CommonOpts{Namespace: "sns", Subsystem: "sim", Name: name, Help: help, Labels: []string{"strategy"}}
	}
	e.mPacketsSent = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: common("packets_sent_total", "Packets emitted by all generators")})
	e.mPacketsDelivered = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: common("packets_delivered_total", "Packets absorbed by all sinks")})
	e.mRoutingDrops = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: common("routing_drops_total", "Packets dropped for routing issues")})
	e.mBufferDrops = e.provider.NewCounter(metrics.CounterOpts{CommonOpts: common("buffer_drops_total", "Packets dropped on full port buffers")})
	e.gBufferOccupation = e.provider.NewGauge(metrics.GaugeOpts{CommonOpts: common("buffer_occupation_packets", "Average per-port buffer occupation")})
	e.hBuildSeconds = e.provider.NewHistogram(metrics.HistogramOpts{CommonOpts: common("snapshot_build_seconds", "Wall time spent rebuilding the network per snapshot")})
}

// MetricsHandler returns the /metrics handler when the prometheus backend
// is active, nil otherwise.
func (e *Engine) MetricsHandler() http.Handler {
	if hp, ok := e.provider.(interface{ MetricsHandler() http.Handler }); ok {
		return hp.MetricsHandler()
	}
	return nil
}

// Bus exposes the progress event bus.
func (e *Engine) Bus() events.Bus { return e.bus }

// newStrategy builds a fresh header-builder variant. Called once per run so
// EWMA state and path caches span snapshots but never runs.
func (e *Engine) newStrategy() routing.Strategy {
	switch e.cfg.Builder {
	case BuilderNoSmoothing:
		return routing.NewNoSmoothing(e.cfg.Params)
	case BuilderExponentialSmoothing:
		return routing.NewExponentialSmoothing(e.cfg.Params)
	case BuilderKShortestDisjoint:
		return routing.NewKShortestNodeDisjoint(e.cfg.Params, rand.New(rand.NewSource(e.cfg.Params.Seed)))
	default:
		return routing.NewBaseline()
	}
}

// RunAll simulates every configured forwarding strategy and returns the
// series keyed by strategy name.
func (e *Engine) RunAll(ctx context.Context) (map[string]*Results, error) {
	out := make(map[string]*Results, len(e.cfg.Strategies))
	for _, strategy := range e.cfg.Strategies {
		res, err := e.runStrategy(ctx, strategy)
		if err != nil {
			return nil, err
		}
		out[strategy.String()] = res
	}
	return out, nil
}

// Run simulates the first configured strategy.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	return e.runStrategy(ctx, e.cfg.Strategies[0])
}

func (e *Engine) runStrategy(ctx context.Context, strategy netem.ForwardingStrategy) (*Results, error) {
	logger := e.logger.With("strategy", strategy.String(), "builder", string(e.cfg.Builder))
	logger.Info("starting run",
		"start", e.cfg.Start.Format(time.RFC3339),
		"end", e.cfg.End.Format(time.RFC3339),
		"snapshot_interval", e.cfg.SnapshotInterval)

	tm, err := e.client.FetchTrafficMatrix(ctx, e.cfg.Params.TotalVolumeOfTraffic, e.cfg.Cities)
	if err != nil {
		return nil, fmt.Errorf("fetching traffic matrix: %w", err)
	}

	env := sim.NewEnvironment()
	routingStrategy := e.newStrategy()
	results := newResults()

	_ = e.bus.Publish(events.Event{Category: events.CategoryRun, Type: "run_started",
		Fields: map[string]interface{}{"strategy": strategy.String()}})

	var old *network.Network
	var prev network.Counters
	for now := e.cfg.Start; !now.After(e.cfg.End); now = now.Add(e.cfg.SnapshotInterval) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buildStart := time.Now()
		topo, err := e.client.FetchTopology(ctx, now, e.cfg.Cities)
		if err != nil {
			return nil, fmt.Errorf("snapshot at %s: %w", now.Format(time.RFC3339), err)
		}
		net, err := network.Build(env, topo, tm, old, strategy, routingStrategy, e.cfg.Params, logger)
		if err != nil {
			return nil, fmt.Errorf("building network at %s: %w", now.Format(time.RFC3339), err)
		}
		buildSeconds := time.Since(buildStart).Seconds()
		if e.hBuildSeconds != nil {
			e.hBuildSeconds.Observe(buildSeconds, strategy.String())
		}

		horizon := now.Sub(e.cfg.Start) + e.cfg.SnapshotInterval
		if err := env.RunUntil(horizon.Seconds()); err != nil {
			return nil, err
		}

		key := int(now.Sub(e.cfg.Start).Seconds())
		c := net.Harvest()
		results.AvgBufferOccupation[key] = c.AvgBufferOccupation
		results.TotalDrops[key] = float64(c.TotalDrops)
		results.RoutingDrops[key] = float64(c.RoutingDrops)
		results.BufferDrops[key] = float64(c.BufferDrops)
		results.PacketsSent[key] = float64(c.PacketsSent)
		results.PacketsDelivered[key] = float64(c.PacketsDelivered)

		e.observe(strategy, c, prev)
		prev = c

		logger.Info("snapshot complete",
			"t", now.Format(time.RFC3339),
			"build_seconds", buildSeconds,
			"sent", c.PacketsSent,
			"delivered", c.PacketsDelivered,
			"routing_drops", c.RoutingDrops,
			"buffer_drops", c.BufferDrops)
		_ = e.bus.Publish(events.Event{Category: events.CategorySnapshot, Type: "snapshot_complete",
			Fields: map[string]interface{}{
				"strategy": strategy.String(),
				"offset_s": key,
				"sent":     c.PacketsSent, "delivered": c.PacketsDelivered,
				"drops": c.TotalDrops,
			}})

		old = net
	}

	if e.cfg.DumpWriter != nil && old != nil {
		fmt.Fprintf(e.cfg.DumpWriter, "=== %s: network status ===\n", strategy)
		old.DumpStatus(e.cfg.DumpWriter)
		fmt.Fprintf(e.cfg.DumpWriter, "=== %s: port assignment ===\n", strategy)
		old.DumpRouting(e.cfg.DumpWriter)
	}

	_ = e.bus.Publish(events.Event{Category: events.CategoryRun, Type: "run_complete",
		Fields: map[string]interface{}{"strategy": strategy.String()}})
	return results, nil
}

// observe feeds the cumulative harvest into the metrics backend as deltas.
func (e *Engine) observe(strategy netem.ForwardingStrategy, c, prev network.Counters) {
	if e.provider == nil {
		return
	}
	label := strategy.String()
	e.mPacketsSent.Inc(float64(c.PacketsSent-prev.PacketsSent), label)
	e.mPacketsDelivered.Inc(float64(c.PacketsDelivered-prev.PacketsDelivered), label)
	e.mRoutingDrops.Inc(float64(c.RoutingDrops-prev.RoutingDrops), label)
	e.mBufferDrops.Inc(float64(c.BufferDrops-prev.BufferDrops), label)
	e.gBufferOccupation.Set(c.AvgBufferOccupation, label)
}
