// Command snsim runs the LEO satellite network simulator against a topology
// builder service and a traffic matrix service.
//
// Usage:
//
//	snsim [flags] <topology-url> <traffic-matrix-url> <start,end> <snapshot-duration>
//
// The time window is a comma-separated RFC3339-UTC pair. Exit codes: 0 on
// success, 2 on service fetch failure, 3 on malformed topology JSON, 1 on
// any other error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Fede-Berga/satellite-routing/engine"
	"github.com/Fede-Berga/satellite-routing/engine/telemetry/logging"
)

const (
	exitOK        = 0
	exitError     = 1
	exitFetch     = 2
	exitMalformed = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("snsim", flag.ContinueOnError)
	var (
		citiesList  string
		citiesFile  string
		strategies  string
		builder     string
		metricsAddr string
		jsonLogs    bool
		verbose     bool
		dump        bool
	)
	fs.StringVar(&citiesList, "cities", "", "Comma separated list of city names")
	fs.StringVar(&citiesFile, "cities-file", "", "Path to a YAML file listing city names")
	fs.StringVar(&strategies, "strategy", "port_forwarding", "Comma separated forwarding strategies: port_forwarding, early_discarding")
	fs.StringVar(&builder, "builder", string(engine.BuilderBaseline), "Header builder: baseline, no_smoothing, exponential_smoothing, k_shortest_node_disjoint")
	fs.StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :2112)")
	fs.BoolVar(&jsonLogs, "log-json", false, "Emit JSON logs")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")
	fs.BoolVar(&dump, "dump", false, "Dump final network status and port assignment to stderr after each run")
	if err := fs.Parse(args); err != nil {
		return exitError
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := logging.New(logging.Options{Level: level, JSON: jsonLogs, AddTime: true})

	cfg, err := buildConfig(fs.Args(), citiesList, citiesFile, strategies, builder, metricsAddr, logger)
	if err != nil {
		logger.Error("invalid invocation", "err", err)
		return exitError
	}
	if dump {
		cfg.DumpWriter = os.Stderr
	}

	eng, err := engine.New(cfg)
	if err != nil {
		logger.Error("configuration rejected", "err", err)
		return exitError
	}

	if metricsAddr != "" {
		if h := eng.MetricsHandler(); h != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", h)
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					logger.Warn("metrics listener stopped", "err", err)
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	results, err := eng.RunAll(ctx)
	if err != nil {
		logger.Error("run failed", "err", err)
		switch {
		case errors.Is(err, engine.ErrMalformedTopology):
			return exitMalformed
		case errors.Is(err, engine.ErrFetch):
			return exitFetch
		default:
			return exitError
		}
	}

	if err := engine.WriteJSON(os.Stdout, results); err != nil {
		logger.Error("writing results", "err", err)
		return exitError
	}
	return exitOK
}

func buildConfig(positional []string, citiesList, citiesFile, strategies, builder, metricsAddr string, logger *slog.Logger) (engine.Config, error) {
	cfg := engine.Defaults()
	cfg.Logger = logger

	if len(positional) != 4 {
		return cfg, fmt.Errorf("expected 4 positional arguments (topology-url traffic-matrix-url start,end snapshot-duration), got %d", len(positional))
	}
	cfg.TopologyURL = positional[0]
	cfg.TrafficMatrixURL = positional[1]

	start, end, err := parseWindow(positional[2])
	if err != nil {
		return cfg, err
	}
	cfg.Start, cfg.End = start, end

	interval, err := time.ParseDuration(positional[3])
	if err != nil {
		return cfg, fmt.Errorf("invalid snapshot duration %q: %w", positional[3], err)
	}
	cfg.SnapshotInterval = interval

	cfg.Cities, err = resolveCities(citiesList, citiesFile)
	if err != nil {
		return cfg, err
	}

	cfg.Strategies = cfg.Strategies[:0]
	for _, name := range strings.Split(strategies, ",") {
		s, ok := engine.ParseForwardingStrategy(strings.TrimSpace(name))
		if !ok {
			return cfg, fmt.Errorf("unknown forwarding strategy %q", name)
		}
		cfg.Strategies = append(cfg.Strategies, s)
	}
	cfg.Builder = engine.BuilderKind(builder)

	if metricsAddr != "" {
		cfg.MetricsEnabled = true
		cfg.PrometheusListenAddr = metricsAddr
	}
	return cfg, nil
}

func parseWindow(s string) (time.Time, time.Time, error) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("time window must be start,end in RFC3339, got %q", s)
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(parts[1]))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window end: %w", err)
	}
	return start.UTC(), end.UTC(), nil
}

// citiesDoc matches a {cities: [...]} mapping; resolveCities falls back to
// a bare YAML list when the mapping form yields no cities.
type citiesDoc struct {
	Cities []string `yaml:"cities"`
}

func resolveCities(citiesList, citiesFile string) ([]string, error) {
	if citiesList != "" {
		var out []string
		for _, c := range strings.Split(citiesList, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
		return out, nil
	}
	if citiesFile == "" {
		return nil, errors.New("one of -cities or -cities-file is required")
	}
	data, err := os.ReadFile(citiesFile)
	if err != nil {
		return nil, fmt.Errorf("reading cities file: %w", err)
	}
	var doc citiesDoc
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.Cities) > 0 {
		return doc.Cities, nil
	}
	var plain []string
	if err := yaml.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("parsing cities file: %w", err)
	}
	return plain, nil
}
