// Package source 负责把应用代码materialize到工作目录：
// 归档解包、git 克隆/拉取、项目分类和依赖安装。
package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/klauspost/compress/gzip"
)

var _ port.Extractor = (*Extractor)(nil)

// Extractor 支持 zip 和 tar.gz 两种归档，按魔数识别。
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

// Extract 把归档解包到 dest。任何条目解析后越出 dest 都拒绝整个归档；
// 调用方负责在失败时清理 dest。
func (e *Extractor) Extract(data []byte, dest string) error {
	switch {
	case len(data) >= 4 && bytes.HasPrefix(data, []byte("PK\x03\x04")):
		if err := extractZip(data, dest); err != nil {
			return err
		}
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		if err := extractTarGz(data, dest); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unrecognized archive format", domain.ErrExtract)
	}
	// 归档里带进来的依赖缓存删掉，安装从干净状态开始
	removeNodeModules(dest)
	return nil
}

// safeJoin 解析归档条目路径，越界返回 ErrUnsafeArchive。
func safeJoin(dest, name string) (string, error) {
	resolved := filepath.Join(dest, name)
	if resolved != dest && !strings.HasPrefix(resolved, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsafeArchive, name)
	}
	return resolved, nil
}

func extractZip(data []byte, dest string) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		mode := f.Mode()
		switch {
		case mode&os.ModeSymlink != 0 || mode&os.ModeDevice != 0 || mode&os.ModeNamedPipe != 0:
			return fmt.Errorf("%w: special entry %q", domain.ErrUnsafeArchive, f.Name)
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrExtract, err)
			}
		default:
			if err := writeEntry(target, mode.Perm(), func() (io.ReadCloser, error) { return f.Open() }); err != nil {
				return err
			}
		}
	}
	return nil
}

func extractTarGz(data []byte, dest string) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrExtract, err)
		}
		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: %v", domain.ErrExtract, err)
			}
		case tar.TypeReg:
			perm := os.FileMode(hdr.Mode).Perm()
			if err := writeEntry(target, perm, func() (io.ReadCloser, error) {
				return io.NopCloser(tr), nil
			}); err != nil {
				return err
			}
		case tar.TypeXGlobalHeader:
			// pax 全局头，跳过
		default:
			return fmt.Errorf("%w: special entry %q", domain.ErrUnsafeArchive, hdr.Name)
		}
	}
}

func writeEntry(target string, perm os.FileMode, open func() (io.ReadCloser, error)) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	src, err := open()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	defer src.Close()

	if perm == 0 {
		perm = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrExtract, err)
	}
	return nil
}

func removeNodeModules(root string) {
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == "node_modules" {
			os.RemoveAll(path)
			return filepath.SkipDir
		}
		return nil
	})
}
