// Package repository 承载平台的三类持久化：
// apps.json 注册表（单一 JSON 文档 + 原子写）、版本快照目录和 sqlite 审计事件库。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
)

var _ port.AppRepository = (*Registry)(nil)

// Registry 以单个 JSON 文档为唯一事实来源。
// 写操作全部经由写锁串行化并通过临时文件 + rename 原子落盘；
// 读操作每次重新解析文件内容，不维护可能发散的长期缓存。
type Registry struct {
	path string
	mu   sync.RWMutex
}

func NewRegistry(path string) *Registry {
	return &Registry{path: path}
}

// document 是 apps.json 的持久化结构。未知字段在读取时丢弃。
type document struct {
	Apps map[string]*appRecord `json:"apps"`
}

// appRecord 是 App 的持久化形态。与 domain.App 的唯一差别是
// webhook 密钥在这里落盘（base64），而领域对象的读路径不携带它。
type appRecord struct {
	Name           string               `json:"name"`
	Kind           domain.AppKind       `json:"kind"`
	WorkDir        string               `json:"work_dir"`
	Port           int                  `json:"port"`
	CurrentVersion string               `json:"current_version"`
	StartCommand   []string             `json:"start_command,omitempty"`
	Envs           map[string]string    `json:"envs,omitempty"`
	AutoRestart    bool                 `json:"auto_restart"`
	GitRepo        string               `json:"git_repo,omitempty"`
	GitBranch      string               `json:"git_branch,omitempty"`
	WebhookSecret  []byte               `json:"webhook_secret,omitempty"`
	Status         domain.AppStatus     `json:"status"`
	Health         *domain.HealthRecord `json:"health,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
}

func recordToApp(r *appRecord) *domain.App {
	return &domain.App{
		Name:           r.Name,
		Kind:           r.Kind,
		WorkDir:        r.WorkDir,
		Port:           r.Port,
		CurrentVersion: r.CurrentVersion,
		StartCommand:   r.StartCommand,
		Envs:           r.Envs,
		AutoRestart:    r.AutoRestart,
		GitRepo:        r.GitRepo,
		GitBranch:      r.GitBranch,
		WebhookSecret:  r.WebhookSecret,
		Status:         r.Status,
		Health:         r.Health,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func appToRecord(a *domain.App) *appRecord {
	return &appRecord{
		Name:           a.Name,
		Kind:           a.Kind,
		WorkDir:        a.WorkDir,
		Port:           a.Port,
		CurrentVersion: a.CurrentVersion,
		StartCommand:   a.StartCommand,
		Envs:           a.Envs,
		AutoRestart:    a.AutoRestart,
		GitRepo:        a.GitRepo,
		GitBranch:      a.GitBranch,
		WebhookSecret:  a.WebhookSecret,
		Status:         a.Status,
		Health:         a.Health,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

// load 读取并解析当前文档。文件不存在视为空注册表。
func (r *Registry) load() (*document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &document{Apps: map[string]*appRecord{}}, nil
		}
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", r.path, err)
	}
	if doc.Apps == nil {
		doc.Apps = map[string]*appRecord{}
	}
	return &doc, nil
}

// store 序列化到同目录的临时文件再 rename 覆盖目标。
func (r *Registry) store(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".apps-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, r.path)
}

// mutate 在写锁内执行 读取-修改-写回。
func (r *Registry) mutate(fn func(doc *document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return r.store(doc)
}

func (r *Registry) Save(_ context.Context, app *domain.App) error {
	return r.mutate(func(doc *document) error {
		if _, ok := doc.Apps[app.Name]; ok {
			return domain.ErrAppExists
		}
		doc.Apps[app.Name] = appToRecord(app)
		return nil
	})
}

func (r *Registry) FindByName(_ context.Context, name string) (*domain.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Apps[name]
	if !ok {
		return nil, domain.ErrAppNotFound
	}
	return recordToApp(rec), nil
}

func (r *Registry) FindAll(_ context.Context) ([]*domain.App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	apps := make([]*domain.App, 0, len(doc.Apps))
	for _, rec := range doc.Apps {
		apps = append(apps, recordToApp(rec))
	}
	return apps, nil
}

func (r *Registry) Update(_ context.Context, app *domain.App) error {
	return r.mutate(func(doc *document) error {
		if _, ok := doc.Apps[app.Name]; !ok {
			return domain.ErrAppNotFound
		}
		app.UpdatedAt = time.Now()
		doc.Apps[app.Name] = appToRecord(app)
		return nil
	})
}

func (r *Registry) Delete(_ context.Context, name string) error {
	return r.mutate(func(doc *document) error {
		if _, ok := doc.Apps[name]; !ok {
			return domain.ErrAppNotFound
		}
		delete(doc.Apps, name)
		return nil
	})
}

func (r *Registry) UpdateStatus(_ context.Context, name string, status domain.AppStatus) error {
	return r.mutate(func(doc *document) error {
		rec, ok := doc.Apps[name]
		if !ok {
			return domain.ErrAppNotFound
		}
		rec.Status = status
		rec.UpdatedAt = time.Now()
		return nil
	})
}

func (r *Registry) UpdateHealth(_ context.Context, records map[string]*domain.HealthRecord) error {
	return r.mutate(func(doc *document) error {
		for name, h := range records {
			if rec, ok := doc.Apps[name]; ok {
				rec.Health = h
			}
		}
		return nil
	})
}

func (r *Registry) UsedPorts(_ context.Context) (map[int]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	used := make(map[int]bool, len(doc.Apps))
	for _, rec := range doc.Apps {
		used[rec.Port] = true
	}
	return used, nil
}

// Flush 重写一次当前文档，平台关停时做最后一次落盘。
func (r *Registry) Flush() error {
	return r.mutate(func(*document) error { return nil })
}

// Reachable 报告注册表文件是否可读（或尚未创建），平台健康检查用。
func (r *Registry) Reachable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, err := r.load()
	return err == nil
}
