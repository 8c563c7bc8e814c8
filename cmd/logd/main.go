package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"asynclogd/internal/admin"
	"asynclogd/internal/commitlog"
	"asynclogd/internal/engine"
	"asynclogd/internal/frontend"
	"asynclogd/internal/retention"
	"asynclogd/pkg/banner"
	"asynclogd/pkg/config"
	"asynclogd/pkg/logger"
	"asynclogd/pkg/shutdown"
)

func main() {
	var (
		version   = "dev"
		commit    = "none"
		buildDate = "unknown"
	)
	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr += " @ " + buildDate
	}

	_ = godotenv.Load(".env") // Load .env if present (no error if missing)

	flags := config.ParseConfigFlags()
	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		log.Fatalf("failed to load config file: %v", err)
	}
	envCfg, envRes := config.ParseConfigEnvs()

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envRes)
	if err != nil {
		log.Fatalf("failed to build effective config: %v", err)
	}

	logger.Init()
	banner.Print(eff, verStr)

	cfg := eff.Config

	lg, err := commitlog.Open(cfg.Engine.LogDir, commitlog.Options{
		IndexMaxItems:   cfg.Engine.IndexMaxItems,
		SegmentMaxBytes: cfg.Engine.SegmentMaxBytes.Int64(),
	})
	if err != nil {
		shutdown.Abort("open commit log", err, cfg.Engine.LogDir)
		return
	}

	registry := prometheus.NewRegistry()
	metrics := engine.NewMetrics(registry)

	engineCfg := engine.Config{
		FlushInterval:       cfg.Engine.FlushInterval.Duration(),
		PoolCapacity:        cfg.Engine.PoolCapacity,
		PoolBufInitialBytes: int(cfg.Engine.PoolBufInitialBytes.Int64()),
	}
	host, asyncLog := engine.Start(engineCfg, lg, metrics)
	defer host.Close()

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	retentionCfg := retention.Config{
		Enabled:      cfg.Retention.Enabled,
		Cron:         cfg.Retention.Cron,
		KeepSegments: cfg.Retention.KeepSegments,
	}
	sched, err := retention.Start(ctx, retentionCfg, lg, cfg.Engine.LogDir)
	if err != nil {
		shutdown.Abort("start retention scheduler", err, cfg.Engine.LogDir)
		return
	}
	defer sched.Stop()

	frontendSrv := frontend.New(frontend.Config{
		Address:           cfg.Frontend.Address,
		MaxRequestsPerSec: cfg.Frontend.MaxRequestsPerSec,
		MaxRequestsBurst:  cfg.Frontend.MaxRequestsBurst,
	}, asyncLog)

	adminSrv := admin.New(admin.Config{
		Address: cfg.Admin.Address,
		DocsDir: cfg.Admin.DocsDir,
	}, host, registry)

	errCh := make(chan error, 2)
	go func() { errCh <- frontendSrv.ListenAndServe(ctx) }()
	go func() { errCh <- adminSrv.ListenAndServe(ctx) }()

	pending := 2
	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case err := <-errCh:
		pending--
		if err != nil {
			logger.Error("listener_failed", "error", err)
			cancel()
		}
	}

	// Drain the remaining listeners' shutdown before returning, so deferred
	// host/scheduler teardown happens after both have stopped accepting.
	for ; pending > 0; pending-- {
		<-errCh
	}
}
