package service

import (
	"context"
	"os"
	"time"

	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/dustin/go-humanize"
)

// registryChecker 是注册表可达性探针，平台健康检查用。
type registryChecker interface {
	Reachable() bool
}

// SystemService 汇报平台自身的健康状况。
type SystemService struct {
	repo      port.AppRepository
	checker   registryChecker
	appsRoot  string
	startedAt time.Time
}

func NewSystemService(repo port.AppRepository, checker registryChecker, appsRoot string) *SystemService {
	return &SystemService{
		repo:      repo,
		checker:   checker,
		appsRoot:  appsRoot,
		startedAt: time.Now(),
	}
}

type PlatformHealth struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	RegistryOK    bool   `json:"registry_ok"`
	AppsRootOK    bool   `json:"apps_root_ok"`
	AppCount      int    `json:"app_count"`
	DiskUsed      string `json:"disk_used,omitempty"` // 尽力而为
}

func (s *SystemService) Health(ctx context.Context) *PlatformHealth {
	h := &PlatformHealth{
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		RegistryOK:    s.checker == nil || s.checker.Reachable(),
	}
	if _, err := os.Stat(s.appsRoot); err == nil {
		h.AppsRootOK = true
	}
	if apps, err := s.repo.FindAll(ctx); err == nil {
		h.AppCount = len(apps)
	}
	if size := treeSize(s.appsRoot); size > 0 {
		h.DiskUsed = humanize.Bytes(uint64(size))
	}
	return h
}
