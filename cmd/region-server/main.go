package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/mohammed-shakir/region-resolver/internal/app"
	"github.com/mohammed-shakir/region-resolver/internal/core/config"
	"github.com/mohammed-shakir/region-resolver/internal/core/observability"
	"github.com/mohammed-shakir/region-resolver/internal/core/server"
	"github.com/mohammed-shakir/region-resolver/internal/logger"
	"github.com/mohammed-shakir/region-resolver/internal/metrics"
	"github.com/mohammed-shakir/region-resolver/internal/viewevents"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	addrFlag := flag.String("addr", "", "listen address (overrides ADDR)")
	baseFlag := flag.String("base-url", "", "document store base url (overrides INDEX_BASE_URL)")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}
	if *baseFlag != "" {
		cfg.IndexBaseURL = strings.TrimRight(strings.TrimSpace(*baseFlag), "/")
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "region-resolver",
		Component: "server",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer(), cfg.Metrics.Enabled)
	go func() {
		if err := p.Serve(ctx, appLog); err != nil {
			appLog.Error("metrics server exited", "err", err)
		}
	}()

	appLog.Info("starting region resolver",
		"addr", cfg.Addr,
		"version", Version,
		"index_base_url", cfg.IndexBaseURL,
		"detailed", strings.Join(cfg.DetailedCountries, ","),
		"max_concurrent_fetches", cfg.MaxConcurrentFetches)

	a, err := app.Build(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("startup failed", "err", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLog.Warn("close", "err", err)
		}
	}()

	if cfg.Events.Enabled {
		pub, err := viewevents.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.QueueSize, appLog)
		if err != nil {
			appLog.Error("view events publisher", "err", err)
			return 1
		}
		viewevents.InitGlobal(pub)
		defer func() {
			if err := viewevents.CloseGlobal(); err != nil {
				appLog.Warn("close view events", "err", err)
			}
		}()
		appLog.Info("view events enabled", "topic", cfg.Events.Topic, "h3_res", cfg.Events.H3Res)
	}

	if err := server.Run(ctx, cfg, appLog, server.Deps{
		Resolver: a.Resolver,
		Metrics:  p.Handler(),
		Checks:   a.Checks,
	}); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}
