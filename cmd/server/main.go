package main

import (
	"context"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"

	"github.com/jaswinder6991/dao-agent-next/internal/dao"
	"github.com/jaswinder6991/dao-agent-next/internal/graceful"
	"github.com/jaswinder6991/dao-agent-next/internal/logging"
	"github.com/jaswinder6991/dao-agent-next/internal/metrics"
	"github.com/jaswinder6991/dao-agent-next/internal/neartx"
	"github.com/jaswinder6991/dao-agent-next/internal/nearrpc"
	"github.com/jaswinder6991/dao-agent-next/internal/pikespeak"
	"github.com/jaswinder6991/dao-agent-next/internal/refswap"
	"github.com/jaswinder6991/dao-agent-next/internal/server"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := newConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.NewLogger(cfg.LogFormat)

	metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceHTTP}, logger)
	defer func() {
		if metricsServer != nil {
			if err := metricsServer.Stop(ctx); err != nil {
				logger.Errorf("failed to stop metrics server: %v", err)
			}
		}
	}()

	rpc := nearrpc.NewClient(cfg.NearRPC)
	indexer := pikespeak.NewClient(cfg.Pikespeak, logger)
	builder := dao.NewBuilder(rpc, cfg.DAO)
	planner := refswap.NewPlanner(refswap.NewRouterClient(cfg.Swap), rpc, cfg.Swap)

	middlewares := append(server.DefaultMiddlewares(), metrics.HTTPMiddleware())

	srv := server.NewServer(
		cfg.Server,
		indexer,
		builder,
		planner,
		neartx.NewAssembler(rpc),
		middlewares,
		logger,
	)

	go func() {
		sig := <-graceful.MakeSigintChan()
		logger.Infof("received exit signal: %v", sig)
		cancel()
	}()

	err = srv.Start(ctx)
	if err != nil {
		logger.Fatalf("failed to start server: %v", err)
	}
}

type config struct {
	LogFormat logging.LogFormat `envconfig:"LOG_FORMAT" default:"text"`
	Server    server.Config
	NearRPC   nearrpc.Config
	Pikespeak pikespeak.Config
	DAO       dao.Config
	Swap      refswap.Config
	Metrics   metrics.Config
}

func newConfig() (config, error) {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return config{}, fmt.Errorf("failed to process env var: %w", err)
	}
	return cfg, nil
}
