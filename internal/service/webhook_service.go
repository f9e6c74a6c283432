package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chiwei-platform/host-engine/internal/adapter/logstream"
	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/chiwei-platform/host-engine/internal/port"
	"github.com/google/uuid"
)

const signaturePrefix = "sha256="

// WebhookService 处理推送回调触发的重新部署。
// 请求体对引擎不透明，验签通过后只用它触发拉取。
type WebhookService struct {
	repo      port.AppRepository
	versions  port.VersionStore
	git       port.GitClient
	installer port.Installer
	runtime   port.Runtime
	audit     port.AuditLog
	logs      *logstream.Store
	locks     *AppLocks
}

func NewWebhookService(
	repo port.AppRepository,
	versions port.VersionStore,
	git port.GitClient,
	installer port.Installer,
	runtime port.Runtime,
	audit port.AuditLog,
	logs *logstream.Store,
	locks *AppLocks,
) *WebhookService {
	return &WebhookService{
		repo:      repo,
		versions:  versions,
		git:       git,
		installer: installer,
		runtime:   runtime,
		audit:     audit,
		logs:      logs,
		locks:     locks,
	}
}

// VerifySignature 用常数时间比较校验 X-Hub-Signature-256 头。
func VerifySignature(secret, body []byte, header string) error {
	hexDigest, ok := strings.CutPrefix(header, signaturePrefix)
	if !ok {
		return domain.ErrWebhookSignature
	}
	provided, err := hex.DecodeString(hexDigest)
	if err != nil {
		return domain.ErrWebhookSignature
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), provided) {
		return domain.ErrWebhookSignature
	}
	return nil
}

// HandleWebhook 验签并执行重新部署：
// stop → pull → install → snapshot → advance → start。
func (s *WebhookService) HandleWebhook(ctx context.Context, appName string, body []byte, signature string) (*domain.App, error) {
	app, err := s.repo.FindByName(ctx, appName)
	if err != nil {
		return nil, err
	}
	if !app.HasWebhook() {
		return nil, domain.ErrWebhookNoSecret
	}
	if err := VerifySignature(app.WebhookSecret, body, signature); err != nil {
		return nil, err
	}
	if app.GitRepo == "" {
		return nil, fmt.Errorf("%w: app %s has no git source", domain.ErrConflict, appName)
	}

	unlock := s.locks.lock(appName)
	defer unlock()

	// 验签后重读，避免竞争窗口里的旧记录
	app, err = s.repo.FindByName(ctx, appName)
	if err != nil {
		return nil, err
	}

	if err := s.runtime.Stop(ctx, appName); err != nil && !errors.Is(err, domain.ErrNotRunning) {
		return nil, err
	}

	stream, err := s.logs.OpenStream(appName)
	if err != nil {
		return nil, err
	}
	defer stream.Close("")

	stream.WriteLine(logstream.OriginSystem, fmt.Sprintf("webhook: pulling branch %s", app.GitBranch))
	commit, err := s.git.Pull(ctx, app.WorkDir, app.GitBranch, stream.Writer(logstream.OriginSystem))
	if err != nil {
		return nil, err
	}

	if app.Kind == domain.KindNode {
		stream.WriteLine(logstream.OriginSystem, "webhook: installing dependencies")
		if err := s.installer.Install(ctx, app.WorkDir, stream.Writer(logstream.OriginSystem)); err != nil {
			return nil, err
		}
	}

	ver, err := s.versions.Snapshot(ctx, app, domain.MethodWebhook, commit)
	if err != nil {
		return nil, err
	}
	app.CurrentVersion = ver.ID
	if err := s.repo.Update(ctx, app); err != nil {
		return nil, err
	}

	stream.Close("")
	if err := s.runtime.Start(ctx, app); err != nil {
		return nil, err
	}

	s.recordEvent(ctx, appName, ver.ID, commit)
	slog.Info("webhook redeploy complete", "app", appName, "version", ver.ID, "commit", commit)
	return app, nil
}

func (s *WebhookService) recordEvent(ctx context.Context, name, version, commit string) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, &domain.Event{
		ID:        uuid.New().String(),
		AppName:   name,
		Type:      domain.EventRedeployed,
		Message:   "webhook redeploy at " + commit,
		Version:   version,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("audit record failed", "app", name, "type", domain.EventRedeployed, "error", err)
	}
}
