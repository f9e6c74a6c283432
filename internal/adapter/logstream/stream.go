package logstream

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Stream 是单个应用的追加写句柄。supervisor 在应用运行期间独占持有，
// 部署流水线在安装阶段也会短暂打开一个用于记录安装输出。
type Stream struct {
	app   string
	store *Store

	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenStream 打开应用的主日志文件。打开前如果文件已达上限则先轮转。
func (s *Store) OpenStream(app string) (*Stream, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	path := s.path(app)
	if info, err := os.Stat(path); err == nil && info.Size() >= s.maxSize {
		if err := s.rotate(app); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Stream{app: app, store: s, f: f, size: info.Size()}, nil
}

// WriteLine 追加一行并同步投递给所有订阅者。
func (st *Stream) WriteLine(origin, text string) {
	now := time.Now()
	tagged := fmt.Sprintf("%s [%s] %s\n", now.Format(time.RFC3339), origin, text)

	st.mu.Lock()
	if st.f != nil {
		if st.size >= st.store.maxSize {
			// 写入途中越过阈值也轮转，保证跨界行序不乱
			st.f.Close()
			if err := st.store.rotate(st.app); err == nil {
				if f, err := os.OpenFile(st.store.path(st.app), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
					st.f = f
					st.size = 0
				} else {
					st.f = nil
				}
			} else {
				st.f = nil
			}
		}
		if st.f != nil {
			if n, err := st.f.WriteString(tagged); err == nil {
				st.size += int64(n)
			}
		}
	}
	st.mu.Unlock()

	st.store.hub.Publish(st.app, Line{App: st.app, Origin: origin, Text: text, At: now})
}

// Close 写入一条合成的收尾行并关闭文件。
func (st *Stream) Close(finalLine string) {
	if finalLine != "" {
		st.WriteLine(OriginSystem, finalLine)
	}
	st.mu.Lock()
	if st.f != nil {
		st.f.Close()
		st.f = nil
	}
	st.mu.Unlock()
}

// Writer 返回一个按行切分的 io.Writer，安装和克隆输出经它进入日志管道。
func (st *Stream) Writer(origin string) io.Writer {
	return &lineWriter{stream: st, origin: origin}
}

type lineWriter struct {
	stream *Stream
	origin string
	buf    bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// 剩下的半行放回缓冲
			w.buf.WriteString(line)
			break
		}
		if line = trimNewline(line); line != "" {
			w.stream.WriteLine(w.origin, line)
		}
	}
	return len(p), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
