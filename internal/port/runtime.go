package port

import (
	"context"
	"io"

	"github.com/chiwei-platform/host-engine/internal/domain"
)

// Runtime 是进程监管器的抽象：拉起、停止并看护应用子进程。
type Runtime interface {
	Start(ctx context.Context, app *domain.App) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, app *domain.App) error
	IsRunning(name string) bool
	// Processes 返回当前存活子进程的 name → pid 映射。
	// 静态应用由引擎进程内部托管，不出现在结果里。
	Processes() map[string]int
	// StopAll 平台关停时带宽限期地停掉所有子进程。
	StopAll(ctx context.Context)
}

// StatusRecorder 接收 supervisor 发布的状态变迁。
type StatusRecorder interface {
	RecordStatus(name string, status domain.AppStatus)
}

// PortAllocator 在配置下限之上分配空闲 TCP 端口。
type PortAllocator interface {
	Allocate(used map[int]bool) (int, error)
}

// Extractor 把归档字节安全地解包到目标目录。
type Extractor interface {
	Extract(data []byte, dest string) error
}

// GitClient 负责仓库克隆与拉取，返回 short commit id。
type GitClient interface {
	Clone(ctx context.Context, repo, branch, dest string, logw io.Writer) (string, error)
	Pull(ctx context.Context, dir, branch string, logw io.Writer) (string, error)
}

// Classifier 判定项目类型并推导启动命令。
type Classifier interface {
	Classify(root string) (*domain.ProjectSpec, error)
}

// Installer 执行生产依赖安装。
type Installer interface {
	Install(ctx context.Context, dir string, logw io.Writer) error
}

// Prober 按需探测单个应用的健康状况。
type Prober interface {
	ProbeApp(ctx context.Context, app *domain.App) *domain.HealthRecord
}
