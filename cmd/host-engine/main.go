package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/chiwei-platform/host-engine/internal/adapter/http"
	"github.com/chiwei-platform/host-engine/internal/adapter/logstream"
	"github.com/chiwei-platform/host-engine/internal/adapter/probe"
	"github.com/chiwei-platform/host-engine/internal/adapter/repository"
	"github.com/chiwei-platform/host-engine/internal/adapter/runtime"
	"github.com/chiwei-platform/host-engine/internal/adapter/source"
	"github.com/chiwei-platform/host-engine/internal/config"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/chiwei-platform/host-engine/internal/service"
)

func main() {
	cfg := config.Load()

	for _, dir := range []string{cfg.AppsRoot, cfg.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Error("failed to create data directory", "dir", dir, "error", err)
			os.Exit(1)
		}
	}

	// 存储层
	registry := repository.NewRegistry(cfg.RegistryPath)
	versions := repository.NewVersionStore(cfg.AppsRoot)

	// 审计库（可选，打不开时降级运行）
	var audit port.AuditLog
	if db, err := repository.OpenDB(cfg.AuditDBPath); err != nil {
		slog.Warn("audit db unavailable, running without event history", "error", err)
	} else {
		audit = repository.NewAuditRepo(db)
	}

	// 日志管道与进程监管器
	logs := logstream.NewStore(cfg.LogsDir, cfg.LogMaxSize, cfg.LogMaxFiles)
	supervisor := runtime.NewSupervisor(runtime.Config{
		StopGrace:     cfg.StopGrace,
		RestartMax:    cfg.AutoRestartMax,
		RestartWindow: cfg.AutoRestartWindow,
	}, logs)
	supervisor.SetRecorder(service.NewStatusService(registry, audit))

	// 观测面
	prober := probe.NewHealthProber(registry, supervisor, logs)
	sampler := probe.NewSampler(supervisor)

	// 服务层
	locks := service.NewAppLocks()
	allocator := runtime.NewAllocator(cfg.StartPort)
	appSvc := service.NewAppService(registry, supervisor, audit, versions, locks, cfg.AppsRoot)
	deploySvc := service.NewDeployService(
		registry, versions, audit, allocator,
		source.NewExtractor(), source.NewGitClient(), source.NewClassifier(), source.NewInstaller(),
		supervisor, logs, locks, cfg.AppsRoot,
	)
	versionSvc := service.NewVersionService(registry, versions, supervisor, audit, locks)
	webhookSvc := service.NewWebhookService(
		registry, versions, source.NewGitClient(), source.NewInstaller(),
		supervisor, audit, logs, locks,
	)
	logSvc := service.NewLogService(registry, logs)
	sysSvc := service.NewSystemService(registry, registry, cfg.AppsRoot)

	// 周期任务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go prober.Run(ctx)
	go sampler.Run(ctx)

	// HTTP 路由
	handler := httpadapter.NewRouter(
		httpadapter.NewAppHandler(appSvc, sampler),
		httpadapter.NewDeployHandler(deploySvc),
		httpadapter.NewVersionHandler(versionSvc),
		httpadapter.NewLogHandler(logSvc),
		httpadapter.NewWebhookHandler(webhookSvc, appSvc),
		httpadapter.NewHealthHandler(appSvc, prober, sysSvc),
		cfg.APIToken,
	)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: handler,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "data_root", cfg.DataRoot)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown：先停 HTTP，再带宽限期停掉所有子进程，最后落盘注册表
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	cancel()
	supervisor.StopAll(shutdownCtx)
	if err := registry.Flush(); err != nil {
		slog.Error("final registry write failed", "error", err)
	}
	slog.Info("shutdown complete")
}
