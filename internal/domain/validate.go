package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// appNameRegex 匹配合法的应用名：只含小写字母、数字和连字符。
var appNameRegex = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidateAppName 校验名称是否可安全用作目录名和日志文件名。
func ValidateAppName(name string) error {
	if name == "" || len(name) > 63 || !appNameRegex.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

var nonNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// NormalizeAppName 把任意请求名归一化为合法应用名：
// 小写化，非 [a-z0-9-] 的连续字符折叠为单个连字符，去掉首尾连字符。
func NormalizeAppName(requested string) string {
	name := strings.ToLower(requested)
	name = nonNameChars.ReplaceAllString(name, "-")
	return strings.Trim(name, "-")
}

// ValidateGitRepo 校验 Git 仓库地址，只允许 https:// 或 git:// 协议，防止 SSRF。
func ValidateGitRepo(repo string) error {
	if repo == "" {
		return fmt.Errorf("%w: git_repo is required", ErrInvalidInput)
	}
	if !strings.HasPrefix(repo, "https://") && !strings.HasPrefix(repo, "git://") {
		return fmt.Errorf("%w: git_repo must use https:// or git:// protocol", ErrInvalidInput)
	}
	return nil
}

// gitRefRegex 白名单：字母、数字、-、_、.、/
var gitRefRegex = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// ValidateGitRef 校验 Git 引用（branch/tag），使用字符白名单。
func ValidateGitRef(ref string) error {
	if ref == "" {
		return nil // 空值由调用方设默认值
	}
	if !gitRefRegex.MatchString(ref) {
		return fmt.Errorf("%w: git_ref %q contains invalid characters", ErrInvalidInput, ref)
	}
	return nil
}
