package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/google/uuid"
)

// VersionService 暴露版本历史与回滚。
type VersionService struct {
	repo     port.AppRepository
	versions port.VersionStore
	runtime  port.Runtime
	audit    port.AuditLog
	locks    *AppLocks
}

func NewVersionService(
	repo port.AppRepository,
	versions port.VersionStore,
	runtime port.Runtime,
	audit port.AuditLog,
	locks *AppLocks,
) *VersionService {
	return &VersionService{
		repo:     repo,
		versions: versions,
		runtime:  runtime,
		audit:    audit,
		locks:    locks,
	}
}

func (s *VersionService) ListVersions(ctx context.Context, appName string) ([]*domain.Version, error) {
	if _, err := s.repo.FindByName(ctx, appName); err != nil {
		return nil, err
	}
	return s.versions.List(ctx, appName)
}

// Rollback 把应用切回指定版本：停进程、替换工作目录、推进
// currentVersion、再拉起。回滚到当前版本是显式 no-op。
func (s *VersionService) Rollback(ctx context.Context, appName, versionID string) (*domain.App, error) {
	unlock := s.locks.lock(appName)
	defer unlock()

	app, err := s.repo.FindByName(ctx, appName)
	if err != nil {
		return nil, err
	}
	if app.CurrentVersion == versionID {
		return nil, domain.ErrAlreadyAtVersion
	}
	if _, err := s.versions.Find(ctx, appName, versionID); err != nil {
		return nil, err
	}

	if err := s.runtime.Stop(ctx, appName); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return nil, err
	}
	if err := s.versions.Restore(ctx, app, versionID); err != nil {
		return nil, err
	}

	app.CurrentVersion = versionID
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}
	if err := s.runtime.Start(ctx, app); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, appName, versionID)
	slog.Info("app rolled back", "app", appName, "version", versionID)
	return app, nil
}

func (s *VersionService) recordEvent(ctx context.Context, name, version string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &domain.Event{
		ID:        uuid.New().String(),
		AppName:   name,
		Type:      domain.EventRolledBack,
		Version:   version,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("audit record failed", "app", name, "type", domain.EventRolledBack, "error", err)
	}
}
