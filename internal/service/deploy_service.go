package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chiwei-platform/host-engine/internal/adapter/logstream"
	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/google/uuid"
)

// DeployService 实现部署流水线：
// materialize → classify → install → allocate → snapshot → register → start。
// 任何一步失败都按清理栈回滚本次操作造成的文件系统和注册表变更。
type DeployService struct {
	repo       port.AppRepository
	versions   port.VersionStore
	audit      port.AuditLog
	alloc      port.PortAllocator
	extractor  port.Extractor
	git        port.GitClient
	classifier port.Classifier
	installer  port.Installer
	runtime    port.Runtime
	logs       *logstream.Store
	locks      *AppLocks
	appsRoot   string
}

func NewDeployService(
	repo port.AppRepository,
	versions port.VersionStore,
	audit port.AuditLog,
	alloc port.PortAllocator,
	extractor port.Extractor,
	git port.GitClient,
	classifier port.Classifier,
	installer port.Installer,
	runtime port.Runtime,
	logs *logstream.Store,
	locks *AppLocks,
	appsRoot string,
) *DeployService {
	return &DeployService{
		repo:       repo,
		versions:   versions,
		audit:      audit,
		alloc:      alloc,
		extractor:  extractor,
		git:        git,
		classifier: classifier,
		installer:  installer,
		runtime:    runtime,
		logs:       logs,
		locks:      locks,
		appsRoot:   appsRoot,
	}
}

type DeployRequest struct {
	Name      string `json:"name"`
	Archive   []byte `json:"-"`
	GitRepo   string `json:"git_repo,omitempty"`
	GitBranch string `json:"git_branch,omitempty"`
}

// cleanupStack 失败时逆序执行已压入的清理动作，成功路径上整个栈直接丢弃。
type cleanupStack []func()

func (c *cleanupStack) push(fn func()) { *c = append(*c, fn) }

func (c cleanupStack) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

func (s *DeployService) Deploy(ctx context.Context, req DeployRequest) (*domain.App, error) {
	name := domain.NormalizeAppName(req.Name)
	if err := domain.ValidateAppName(name); err != nil {
		return nil, err
	}

	fromGit := len(req.Archive) == 0
	branch := req.GitBranch
	if fromGit {
		if err := domain.ValidateGitRepo(req.GitRepo); err != nil {
			return nil, err
		}
		if err := domain.ValidateGitRef(branch); err != nil {
			return nil, err
		}
		if branch == "" {
			branch = "main"
		}
	}

	unlock := s.locks.lock(name)
	defer unlock()

	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, domain.ErrAppExists
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if err := os.MkdirAll(s.appsRoot, 0o755); err != nil {
		return nil, err
	}
	appDir := filepath.Join(s.appsRoot, name)
	if err := os.Mkdir(appDir, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, domain.ErrAppExists
		}
		return nil, err
	}

	var cleanup cleanupStack
	cleanup.push(func() { os.RemoveAll(appDir) })
	fail := func(err error) (*domain.App, error) {
		cleanup.run()
		return nil, err
	}

	// 部署期间的克隆/安装输出也进入应用日志
	stream, err := s.logs.OpenStream(name)
	if err != nil {
		return fail(err)
	}
	defer stream.Close("")

	var commit string
	method := domain.MethodArchive
	if fromGit {
		method = domain.MethodGit
		stream.WriteLine(logstream.OriginSystem, fmt.Sprintf("cloning %s (branch %s)", req.GitRepo, branch))
		commit, err = s.git.Clone(ctx, req.GitRepo, branch, appDir, stream.Writer(logstream.OriginSystem))
		if err != nil {
			return fail(err)
		}
	} else {
		if err := s.extractor.Extract(req.Archive, appDir); err != nil {
			return fail(err)
		}
	}

	spec, err := s.classifier.Classify(appDir)
	if err != nil {
		return fail(err)
	}

	if spec.Kind == domain.KindNode {
		stream.WriteLine(logstream.OriginSystem, "installing dependencies")
		if err := s.installer.Install(ctx, spec.Root, stream.Writer(logstream.OriginSystem)); err != nil {
			return fail(err)
		}
	}

	used, err := s.repo.UsedPorts(ctx)
	if err != nil {
		return fail(err)
	}
	assigned, err := s.alloc.Allocate(used)
	if err != nil {
		return fail(err)
	}

	now := time.Now()
	app := &domain.App{
		Name:         name,
		Kind:         spec.Kind,
		WorkDir:      spec.Root,
		Port:         assigned,
		StartCommand: spec.Start,
		Envs:         map[string]string{},
		AutoRestart:  true,
		GitRepo:      req.GitRepo,
		GitBranch:    branch,
		Status:       domain.StatusStopped,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	ver, err := s.versions.Snapshot(ctx, app, method, commit)
	if err != nil {
		return fail(err)
	}
	app.CurrentVersion = ver.ID

	if err := s.repo.Save(ctx, app); err != nil {
		return fail(err)
	}
	cleanup.push(func() {
		if err := s.repo.Delete(context.Background(), name); err != nil {
			slog.Error("deploy rollback: remove registry entry", "app", name, "error", err)
		}
	})

	// 释放部署期日志句柄，supervisor 会重新打开
	stream.Close("")

	if err := s.runtime.Start(ctx, app); err != nil {
		return fail(err)
	}

	s.recordEvent(ctx, name, domain.EventDeployed, ver.ID,
		fmt.Sprintf("deployed via %s on port %d", method, assigned))
	slog.Info("app deployed", "app", name, "kind", spec.Kind, "port", assigned, "version", ver.ID)
	return app, nil
}

func (s *DeployService) recordEvent(ctx context.Context, name string, et domain.EventType, version, msg string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &domain.Event{
		ID:        uuid.New().String(),
		AppName:   name,
		Type:      et,
		Message:   msg,
		Version:   version,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("audit record failed", "app", name, "type", et, "error", err)
	}
}
