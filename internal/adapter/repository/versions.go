package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
)

var _ port.VersionStore = (*VersionStore)(nil)

// snapshotSkip 快照时跳过的目录：仓库元数据、依赖缓存和版本子树自身。
var snapshotSkip = map[string]bool{
	".git":         true,
	"node_modules": true,
	"versions":     true,
}

// VersionStore 把版本快照保存在 <apps>/<name>/versions/<id>/ 下，
// 元数据写在快照目录旁边的 <id>.json，保证快照本身与工作目录字节等价。
type VersionStore struct {
	appsRoot string
	mu       sync.Mutex // 保证版本号单调
	lastID   string
}

func NewVersionStore(appsRoot string) *VersionStore {
	return &VersionStore{appsRoot: appsRoot}
}

func (v *VersionStore) versionsDir(appName string) string {
	return filepath.Join(v.appsRoot, appName, "versions")
}

// newID 生成单调递增且可排序的版本号。
func (v *VersionStore) newID() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	id := fmt.Sprintf("v%d", time.Now().UnixMilli())
	for id <= v.lastID {
		time.Sleep(time.Millisecond)
		id = fmt.Sprintf("v%d", time.Now().UnixMilli())
	}
	v.lastID = id
	return id
}

func (v *VersionStore) Snapshot(_ context.Context, app *domain.App, method domain.DeployMethod, commit string) (*domain.Version, error) {
	id := v.newID()
	dir := filepath.Join(v.versionsDir(app.Name), id)
	if err := copyTree(app.WorkDir, dir, snapshotSkip); err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("snapshot %s: %w", app.Name, err)
	}

	ver := &domain.Version{
		ID:        id,
		AppName:   app.Name,
		Method:    method,
		GitRepo:   app.GitRepo,
		GitBranch: app.GitBranch,
		Commit:    commit,
		Dir:       dir,
		SizeBytes: dirSize(dir),
		CreatedAt: time.Now(),
	}
	if err := v.writeMeta(ver); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return ver, nil
}

func (v *VersionStore) writeMeta(ver *domain.Version) error {
	data, err := json.MarshalIndent(ver, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(v.versionsDir(ver.AppName), ver.ID+".json"), data, 0o644)
}

func (v *VersionStore) List(_ context.Context, appName string) ([]*domain.Version, error) {
	entries, err := os.ReadDir(v.versionsDir(appName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var versions []*domain.Version
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(v.versionsDir(appName), e.Name()))
		if err != nil {
			continue
		}
		var ver domain.Version
		if err := json.Unmarshal(data, &ver); err != nil {
			continue
		}
		versions = append(versions, &ver)
	}
	// 版本号本身可排序
	sort.Slice(versions, func(i, j int) bool { return versions[i].ID < versions[j].ID })
	return versions, nil
}

func (v *VersionStore) Find(ctx context.Context, appName, versionID string) (*domain.Version, error) {
	versions, err := v.List(ctx, appName)
	if err != nil {
		return nil, err
	}
	for _, ver := range versions {
		if ver.ID == versionID {
			return ver, nil
		}
	}
	return nil, domain.ErrVersionNotFound
}

// Restore 用快照替换工作目录内容。versions/ 子树原地保留。
func (v *VersionStore) Restore(ctx context.Context, app *domain.App, versionID string) error {
	ver, err := v.Find(ctx, app.Name, versionID)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(app.WorkDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == "versions" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(app.WorkDir, e.Name())); err != nil {
			return err
		}
	}
	return copyTree(ver.Dir, app.WorkDir, nil)
}

func (v *VersionStore) Purge(_ context.Context, appName string) error {
	return os.RemoveAll(v.versionsDir(appName))
}
