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

var _ port.StatusRecorder = (*StatusService)(nil)

// StatusService 接收 supervisor 的状态变迁：落盘到注册表并记审计事件。
// 审计失败只记日志，不影响状态流转。
type StatusService struct {
	repo  port.AppRepository
	audit port.AuditLog
}

func NewStatusService(repo port.AppRepository, audit port.AuditLog) *StatusService {
	return &StatusService{repo: repo, audit: audit}
}

var statusEventTypes = map[domain.AppStatus]domain.EventType{
	domain.StatusRunning: domain.EventStarted,
	domain.StatusStopped: domain.EventStopped,
	domain.StatusCrashed: domain.EventCrashed,
}

func (s *StatusService) RecordStatus(name string, status domain.AppStatus) {
	ctx := context.Background()
	if err := s.repo.UpdateStatus(ctx, name, status); err != nil {
		// 应用可能刚被删除，遗留的状态事件直接丢弃
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("persist status", "app", name, "status", status, "error", err)
		}
		return
	}
	if et, ok := statusEventTypes[status]; ok {
		s.recordEvent(ctx, name, et, "")
	}
}

func (s *StatusService) recordEvent(ctx context.Context, name string, et domain.EventType, msg string) {
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
