package service

import (
	"io/fs"
	"path/filepath"
)

// treeSize 统计目录占用字节数。失败的子树直接跳过，结果只供展示。
func treeSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}
