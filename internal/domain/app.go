package domain

import "time"

// AppKind 标识应用的运行形态。
type AppKind string

const (
	KindNode   AppKind = "node"
	KindStatic AppKind = "static"
)

// AppStatus 是 supervisor 发布的应用运行状态。
type AppStatus string

const (
	StatusStopped  AppStatus = "stopped"
	StatusRunning  AppStatus = "running"
	StatusStopping AppStatus = "stopping"
	StatusCrashed  AppStatus = "crashed"
)

// App 代表一个被托管的应用，是 host-engine 的核心管理单元。
// 每个 App 独占一个本地端口和一个工作目录，由 supervisor 负责其全生命周期。
type App struct {
	Name           string            `json:"name"`
	Kind           AppKind           `json:"kind"`
	WorkDir        string            `json:"work_dir"`
	Port           int               `json:"port"`
	CurrentVersion string            `json:"current_version"`
	StartCommand   []string          `json:"start_command,omitempty"` // classifier 在部署时确定的启动命令
	Envs           map[string]string `json:"envs,omitempty"`
	AutoRestart    bool              `json:"auto_restart"`
	GitRepo        string            `json:"git_repo,omitempty"`
	GitBranch      string            `json:"git_branch,omitempty"`
	Status         AppStatus         `json:"status"`
	Health         *HealthRecord     `json:"health,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	// WebhookSecret 只在注册表内部持久化，任何读路径都不返回。
	WebhookSecret []byte `json:"-"`
}

// HasWebhook 报告应用是否配置了 webhook 密钥。
func (a *App) HasWebhook() bool {
	return len(a.WebhookSecret) > 0
}

// ProjectSpec 是 classifier 对解压后目录的判定结果。
type ProjectSpec struct {
	Kind  AppKind
	Root  string   // 真实项目根（可能比解压目录更深一层）
	Start []string // 启动命令，static 类型为空
}
