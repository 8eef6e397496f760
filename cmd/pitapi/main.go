package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spacetime/pit-api/internal/core/config"
	"github.com/spacetime/pit-api/internal/core/geojson"
	"github.com/spacetime/pit-api/internal/core/httpclient"
	"github.com/spacetime/pit-api/internal/core/observability"
	"github.com/spacetime/pit-api/internal/core/pit"
	"github.com/spacetime/pit-api/internal/core/search"
	"github.com/spacetime/pit-api/internal/core/server"
	"github.com/spacetime/pit-api/internal/core/urn"
	"github.com/spacetime/pit-api/internal/invalidation"
	"github.com/spacetime/pit-api/internal/invalidation/kafkaconsumer"
	"github.com/spacetime/pit-api/internal/logger"
	"github.com/spacetime/pit-api/internal/metrics"
	"github.com/spacetime/pit-api/internal/scenarios"
	_ "github.com/spacetime/pit-api/internal/scenarios/baseline"
	_ "github.com/spacetime/pit-api/internal/scenarios/cache"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// overriding scenario via flag
	scenarioFlag := flag.String("scenario", "", "scenario name ("+strings.Join(scenarios.Names(), "|")+")")
	flag.Parse()

	cfg := config.FromEnv()
	if *scenarioFlag != "" {
		cfg.Scenario = strings.TrimSpace(*scenarioFlag)
	}

	appLog := logger.New(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Scenario:  cfg.Scenario,
		Component: "pitapi",
	}, os.Stdout)

	observability.SetScenario(cfg.Scenario)
	prov := metrics.Init(metrics.Config{Enabled: cfg.MetricsEnabled, Version: Version})

	appLog.Info("starting pit api",
		"addr", cfg.Addr,
		"version", Version,
		"elasticsearch", cfg.ElasticURLs,
		"index", cfg.ElasticIndex,
		"scenario", cfg.Scenario,
		"id_policy", cfg.IDPolicy)

	es, err := search.NewElastic(appLog, httpclient.NewOutbound(cfg.SearchTimeout, 0), search.ElasticConfig{
		Addresses: cfg.ElasticURLs,
		Username:  cfg.ElasticUsername,
		Password:  cfg.ElasticPassword,
		Timeout:   cfg.SearchTimeout,
	})
	if err != nil {
		appLog.Error("failed to initialize search backend", "err", err)
		return 1
	}

	// selected scenario
	searcher, err := scenarios.New(cfg.Scenario, cfg, appLog, es)
	if err != nil {
		appLog.Error("scenario setup failed", "err", err)
		return 1
	}
	if c, ok := searcher.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	projector, err := newProjector(cfg)
	if err != nil {
		appLog.Error("projector setup failed", "err", err)
		return 1
	}
	svc, err := pit.New(appLog, searcher, projector, cfg.ElasticIndex)
	if err != nil {
		appLog.Error("service setup failed", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := server.Deps{Service: svc, Backend: es, Metrics: prov}
	if cfg.Invalidation.Enabled {
		consumer, err := startInvalidation(ctx, cfg, appLog, searcher)
		if err != nil {
			appLog.Error("invalidation setup failed", "err", err)
			return 1
		}
		if consumer != nil {
			defer consumer.Stop()
			deps.Consumer = consumer
		}
	}

	if err := server.Run(ctx, cfg, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func newProjector(cfg config.Config) (*geojson.Projector, error) {
	policy, err := geojson.ParsePolicy(cfg.IDPolicy)
	if err != nil {
		return nil, err
	}
	var exp geojson.Expander
	if policy == geojson.PolicyURN {
		e, err := urn.New(cfg.URNBaseURL)
		if err != nil {
			return nil, err
		}
		exp = e
	}
	return geojson.NewProjector(policy, exp)
}

// starts the consumer when the scenario has something to invalidate
func startInvalidation(ctx context.Context, cfg config.Config, log *slog.Logger, s search.Searcher) (*kafkaconsumer.Consumer, error) {
	inv, ok := s.(invalidation.Invalidator)
	if !ok {
		log.Warn("invalidation enabled but scenario keeps no cache; consumer not started", "scenario", cfg.Scenario)
		return nil, nil
	}
	c := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), log, inv)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}
