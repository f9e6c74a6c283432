// Package logstream 实现每应用日志管道：追加写入、按大小轮转、
// 以及面向订阅者的实时扇出。慢订阅者丢弃而不是阻塞。
package logstream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chiwei-platform/host-engine/internal/topic"
)

// Line 是一条带来源标记的日志行。
type Line struct {
	App    string    `json:"app"`
	Origin string    `json:"origin"` // stdout / stderr / system
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

const (
	OriginStdout = "stdout"
	OriginStderr = "stderr"
	OriginSystem = "system"
)

// Store 管理日志目录下所有应用的日志文件与订阅主题。
type Store struct {
	dir      string
	maxSize  int64
	maxFiles int
	hub      *topic.Topic[Line]
}

func NewStore(dir string, maxSize int64, maxFiles int) *Store {
	return &Store{
		dir:      dir,
		maxSize:  maxSize,
		maxFiles: maxFiles,
		hub:      topic.New[Line](),
	}
}

func (s *Store) path(app string) string {
	return filepath.Join(s.dir, app+".log")
}

// Subscribe 注册一个该应用日志行的实时订阅者。
// 订阅与进程生命周期无关，应用未运行时也可以挂着。
func (s *Store) Subscribe(app string, buffer int) *topic.Subscriber[Line] {
	return s.hub.Subscribe(app, buffer)
}

// Tail 返回主日志文件末尾最多 n 行。
func (s *Store) Tail(app string, n int) ([]string, error) {
	if n <= 0 {
		n = 100
	}
	f, err := os.Open(s.path(app))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, nil
	}
	// 只读末尾一段，足够覆盖 n 行的常见情形
	const maxTailBytes = 256 << 10
	offset := int64(0)
	if info.Size() > maxTailBytes {
		offset = info.Size() - maxTailBytes
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(buf), "\n"), "\n")
	if offset > 0 && len(lines) > 0 {
		lines = lines[1:] // 丢掉可能被截断的首行
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// PurgeOrphans 删除不属于任何已注册应用的日志文件。
func (s *Store) PurgeOrphans(known map[string]bool) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		base, ok := strings.CutSuffix(name, ".log")
		if !ok {
			// 轮转文件形如 <app>.log.3
			if i := strings.Index(name, ".log."); i > 0 {
				base = name[:i]
			} else {
				continue
			}
		}
		if !known[base] {
			os.Remove(filepath.Join(s.dir, name))
		}
	}
}

// rotate 执行一次轮转：编号 N 的文件删除，k 重命名为 k+1，主文件变为 .1。
func (s *Store) rotate(app string) error {
	base := s.path(app)
	os.Remove(fmt.Sprintf("%s.%d", base, s.maxFiles))
	for k := s.maxFiles - 1; k >= 1; k-- {
		from := fmt.Sprintf("%s.%d", base, k)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, fmt.Sprintf("%s.%d", base, k+1)); err != nil {
				return err
			}
		}
	}
	return os.Rename(base, base+".1")
}
