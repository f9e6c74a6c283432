package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
)

var _ port.Classifier = (*Classifier)(nil)

type Classifier struct{}

func NewClassifier() *Classifier { return &Classifier{} }

// junkNames 打包工具带进来的垃圾条目，下钻时忽略。
var junkNames = map[string]bool{
	"__MACOSX":  true,
	".DS_Store": true,
}

// nodeStartRegex 匹配 "node <file>" 形状的 start 脚本。
// 其它形状不猜测，统一回落到包管理器的 start 命令。
var nodeStartRegex = regexp.MustCompile(`^node\s+(\S+)$`)

type packageManifest struct {
	Scripts map[string]string `json:"scripts"`
}

// Classify 判定解压目录的项目类型并推导启动命令。
func (c *Classifier) Classify(root string) (*domain.ProjectSpec, error) {
	realRoot, err := descend(root)
	if err != nil {
		return nil, err
	}

	manifestPath := filepath.Join(realRoot, "package.json")
	if data, err := os.ReadFile(manifestPath); err == nil {
		start, err := deriveStart(realRoot, data)
		if err != nil {
			return nil, err
		}
		return &domain.ProjectSpec{Kind: domain.KindNode, Root: realRoot, Start: start}, nil
	}

	if _, err := os.Stat(filepath.Join(realRoot, "index.html")); err == nil {
		return &domain.ProjectSpec{Kind: domain.KindStatic, Root: realRoot}, nil
	}

	return nil, domain.ErrUnclassifiable
}

// descend 下钻到真实项目根：目录只含一个子目录（忽略打包垃圾）时继续向下。
func descend(root string) (string, error) {
	current := root
	for {
		entries, err := os.ReadDir(current)
		if err != nil {
			return "", err
		}
		var dirs []string
		hasFile := false
		for _, e := range entries {
			name := e.Name()
			if junkNames[name] || strings.HasPrefix(name, "._") {
				continue
			}
			if e.IsDir() {
				dirs = append(dirs, name)
			} else {
				hasFile = true
			}
		}
		if hasFile || len(dirs) != 1 {
			return current, nil
		}
		current = filepath.Join(current, dirs[0])
	}
}

func deriveStart(root string, manifest []byte) ([]string, error) {
	var pkg packageManifest
	if err := json.Unmarshal(manifest, &pkg); err != nil {
		return nil, fmt.Errorf("%w: invalid package.json: %v", domain.ErrUnclassifiable, err)
	}
	if start := strings.TrimSpace(pkg.Scripts["start"]); start != "" {
		if m := nodeStartRegex.FindStringSubmatch(start); m != nil {
			return []string{"node", m[1]}, nil
		}
	}
	// 非 "node <file>" 形状交给包管理器执行
	return []string{packageManager(root), "start"}, nil
}

// packageManager 根据 lockfile 判定项目使用的包管理器。
func packageManager(root string) string {
	if _, err := os.Stat(filepath.Join(root, "pnpm-lock.yaml")); err == nil {
		return "pnpm"
	}
	if _, err := os.Stat(filepath.Join(root, "yarn.lock")); err == nil {
		return "yarn"
	}
	return "npm"
}
