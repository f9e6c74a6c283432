package source

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
)

var _ port.GitClient = (*GitClient)(nil)

// GitClient 通过 git 命令行执行克隆与拉取。
// 克隆和拉取继承部署请求的生命周期，没有独立超时。
type GitClient struct{}

func NewGitClient() *GitClient { return &GitClient{} }

// Clone 浅克隆指定分支到 dest，返回 short commit id。
func (g *GitClient) Clone(ctx context.Context, repo, branch, dest string, logw io.Writer) (string, error) {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, repo, dest)
	if err := runGit(ctx, "", logw, args...); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrClone, err)
	}
	return g.headCommit(ctx, dest)
}

// Pull 在已有工作目录上拉取指定分支的最新提交。
func (g *GitClient) Pull(ctx context.Context, dir, branch string, logw io.Writer) (string, error) {
	if branch == "" {
		branch = "main"
	}
	if err := runGit(ctx, dir, logw, "fetch", "origin", branch); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrClone, err)
	}
	if err := runGit(ctx, dir, logw, "reset", "--hard", "origin/"+branch); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrClone, err)
	}
	return g.headCommit(ctx, dir)
}

func (g *GitClient) headCommit(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--short", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: rev-parse: %v", domain.ErrClone, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func runGit(ctx context.Context, dir string, logw io.Writer, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	if logw != nil {
		cmd.Stdout = logw
		cmd.Stderr = logw
	}
	return cmd.Run()
}
