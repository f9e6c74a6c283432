// Package probe 实现平台的观测面：周期健康探测和资源采样。
// 两者都只观察，从不干预子进程。
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chiwei-platform/host-engine/internal/adapter/logstream"
	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/chiwei-platform/host-engine/internal/topic"
)

var _ port.Prober = (*HealthProber)(nil)

// HealthProber 每轮对所有已注册应用探测一次 GET /，
// 整轮结果合并为一次注册表落盘。
type HealthProber struct {
	repo     port.AppRepository
	runtime  port.Runtime
	logs     *logstream.Store
	interval time.Duration
	client   *http.Client
	events   *topic.Topic[domain.HealthEvent]
}

func NewHealthProber(repo port.AppRepository, rt port.Runtime, logs *logstream.Store) *HealthProber {
	return &HealthProber{
		repo:     repo,
		runtime:  rt,
		logs:     logs,
		interval: 60 * time.Second,
		client:   &http.Client{Timeout: 3 * time.Second},
		events:   topic.New[domain.HealthEvent](),
	}
}

// Events 暴露健康事件主题，key 为应用名。
func (p *HealthProber) Events() *topic.Topic[domain.HealthEvent] { return p.events }

// Run 周期执行探测直到 ctx 取消。
func (p *HealthProber) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *HealthProber) sweep(ctx context.Context) {
	apps, err := p.repo.FindAll(ctx)
	if err != nil {
		slog.Error("health sweep: list apps", "error", err)
		return
	}

	records := make(map[string]*domain.HealthRecord, len(apps))
	known := make(map[string]bool, len(apps))
	for _, app := range apps {
		known[app.Name] = true
		rec := p.ProbeApp(ctx, app)
		records[app.Name] = rec
		p.events.Publish(app.Name, domain.HealthEvent{App: app.Name, Record: rec})
	}

	// 整轮只落盘一次
	if err := p.repo.UpdateHealth(ctx, records); err != nil {
		slog.Error("health sweep: persist", "error", err)
	}

	// 顺带清理已删除应用遗留的日志文件
	p.logs.PurgeOrphans(known)
}

// ProbeApp 探测单个应用，也作为按需探测的入口。
func (p *HealthProber) ProbeApp(ctx context.Context, app *domain.App) *domain.HealthRecord {
	now := time.Now()
	if !p.runtime.IsRunning(app.Name) {
		return &domain.HealthRecord{Status: domain.HealthStopped, CheckedAt: now}
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/", app.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &domain.HealthRecord{Status: domain.HealthUnhealthy, CheckedAt: now}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		// 连接失败和超时都是正常信号，不是错误
		return &domain.HealthRecord{Status: domain.HealthUnhealthy, CheckedAt: now}
	}
	resp.Body.Close()

	if resp.StatusCode < 400 {
		return &domain.HealthRecord{
			Status:         domain.HealthHealthy,
			CheckedAt:      now,
			ResponseTimeMS: time.Since(start).Milliseconds(),
		}
	}
	return &domain.HealthRecord{Status: domain.HealthUnhealthy, CheckedAt: now}
}
