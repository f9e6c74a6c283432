package service

import (
	"context"

	"github.com/chiwei-platform/host-engine/internal/adapter/logstream"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/chiwei-platform/host-engine/internal/topic"
)

// LogService 提供日志读路径：近期日志和实时订阅。
type LogService struct {
	repo port.AppRepository
	logs *logstream.Store
}

func NewLogService(repo port.AppRepository, logs *logstream.Store) *LogService {
	return &LogService{repo: repo, logs: logs}
}

// Recent 返回主日志文件末尾最多 n 行。
func (s *LogService) Recent(ctx context.Context, appName string, n int) ([]string, error) {
	if _, err := s.repo.FindByName(ctx, appName); err != nil {
		return nil, err
	}
	return s.logs.Tail(appName, n)
}

// Subscribe 注册实时日志订阅。订阅独立于进程生命周期。
func (s *LogService) Subscribe(ctx context.Context, appName string, buffer int) (*topic.Subscriber[logstream.Line], error) {
	if _, err := s.repo.FindByName(ctx, appName); err != nil {
		return nil, err
	}
	return s.logs.Subscribe(appName, buffer), nil
}
