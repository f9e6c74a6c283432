package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/google/uuid"
)

// AppService 承载应用的日常运维操作：列表、启停、环境变量和删除。
type AppService struct {
	repo     port.AppRepository
	runtime  port.Runtime
	audit    port.AuditLog
	versions port.VersionStore
	locks    *AppLocks
	appsRoot string
}

func NewAppService(
	repo port.AppRepository,
	runtime port.Runtime,
	audit port.AuditLog,
	versions port.VersionStore,
	locks *AppLocks,
	appsRoot string,
) *AppService {
	return &AppService{
		repo:     repo,
		runtime:  runtime,
		audit:    audit,
		versions: versions,
		locks:    locks,
		appsRoot: appsRoot,
	}
}

// AppView 是读路径的应用视图：注册表记录加上最近的资源采样。
type AppView struct {
	*domain.App
	Resources *domain.ResourceSample `json:"resources,omitempty"`
}

// ListApps 读注册表并挂上缓存的资源采样。
func (s *AppService) ListApps(ctx context.Context, samples map[string]domain.ResourceSample) ([]*AppView, error) {
	apps, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]*AppView, 0, len(apps))
	for _, app := range apps {
		view := &AppView{App: app}
		if sample, ok := samples[app.Name]; ok {
			sample := sample
			view.Resources = &sample
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *AppService) GetApp(ctx context.Context, name string) (*domain.App, error) {
	return s.repo.FindByName(ctx, name)
}

func (s *AppService) StartApp(ctx context.Context, name string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	app, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	return s.runtime.Start(ctx, app)
}

func (s *AppService) StopApp(ctx context.Context, name string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	if _, err := s.repo.FindByName(ctx, name); err != nil {
		return err
	}
	return s.runtime.Stop(ctx, name)
}

func (s *AppService) RestartApp(ctx context.Context, name string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	app, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	return s.runtime.Restart(ctx, app)
}

// DeleteApp 停掉进程、删工作目录、摘注册表。遗留日志由下一轮探测清扫。
func (s *AppService) DeleteApp(ctx context.Context, name string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	if _, err := s.repo.FindByName(ctx, name); err != nil {
		return err
	}
	if err := s.runtime.Stop(ctx, name); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return err
	}
	if err := os.RemoveAll(filepath.Join(s.appsRoot, name)); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.recordEvent(ctx, name, domain.EventDeleted, "app deleted")
	return nil
}

func (s *AppService) GetEnv(ctx context.Context, name string) (map[string]string, error) {
	app, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if app.Envs == nil {
		return map[string]string{}, nil
	}
	return app.Envs, nil
}

// SetEnv 更新配置环境。按约定不自动重启，由操作者决定生效时机。
func (s *AppService) SetEnv(ctx context.Context, name string, envs map[string]string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	app, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	app.Envs = envs
	return s.repo.Update(ctx, app)
}

// SetWebhookSecret 配置或清除应用的 webhook 密钥。空串为清除。
func (s *AppService) SetWebhookSecret(ctx context.Context, name, secret string) error {
	unlock := s.locks.lock(name)
	defer unlock()

	app, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	if secret == "" {
		app.WebhookSecret = nil
	} else {
		app.WebhookSecret = []byte(secret)
	}
	return s.repo.Update(ctx, app)
}

// SetAutoRestart 开关崩溃自动重启。
func (s *AppService) SetAutoRestart(ctx context.Context, name string, enabled bool) error {
	unlock := s.locks.lock(name)
	defer unlock()

	app, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return err
	}
	app.AutoRestart = enabled
	return s.repo.Update(ctx, app)
}

// ListEvents 返回应用的审计事件。
func (s *AppService) ListEvents(ctx context.Context, name string, limit int) ([]*domain.Event, error) {
	if _, err := s.repo.FindByName(ctx, name); err != nil {
		return nil, err
	}
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.FindByApp(ctx, name, limit)
}

func (s *AppService) recordEvent(ctx context.Context, name string, et domain.EventType, msg string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &domain.Event{
		ID:        uuid.New().String(),
		AppName:   name,
		Type:      et,
		Message:   msg,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("audit record failed", "app", name, "type", et, "error", err)
	}
}
