package port

import (
	"context"

	"github.com/chiwei-platform/host-engine/internal/domain"
)

type AppRepository interface {
	Save(ctx context.Context, app *domain.App) error
	FindByName(ctx context.Context, name string) (*domain.App, error)
	FindAll(ctx context.Context) ([]*domain.App, error)
	Update(ctx context.Context, app *domain.App) error
	Delete(ctx context.Context, name string) error
	// UpdateStatus 只改状态字段，避免覆盖并发的其它修改。
	UpdateStatus(ctx context.Context, name string, status domain.AppStatus) error
	// UpdateHealth 一次落盘整个探测批次的结果。
	UpdateHealth(ctx context.Context, records map[string]*domain.HealthRecord) error
	// UsedPorts 返回当前已分配端口的集合。
	UsedPorts(ctx context.Context) (map[int]bool, error)
}

type VersionStore interface {
	// Snapshot 把应用当前工作目录复制为一个新的不可变版本。
	Snapshot(ctx context.Context, app *domain.App, method domain.DeployMethod, commit string) (*domain.Version, error)
	List(ctx context.Context, appName string) ([]*domain.Version, error)
	Find(ctx context.Context, appName, versionID string) (*domain.Version, error)
	// Restore 用指定版本的快照替换应用工作目录。
	Restore(ctx context.Context, app *domain.App, versionID string) error
	// Purge 删除应用的全部版本快照。
	Purge(ctx context.Context, appName string) error
}

type AuditLog interface {
	Record(ctx context.Context, event *domain.Event) error
	FindByApp(ctx context.Context, appName string, limit int) ([]*domain.Event, error)
}
