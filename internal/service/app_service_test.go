package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chiwei-platform/host-engine/internal/domain"
)

func appFixture(t *testing.T) (*AppService, *stubAppRepo, *stubRuntime, string) {
	t.Helper()
	appsRoot := t.TempDir()
	workDir := filepath.Join(appsRoot, "api")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatal(err)
	}
	app := &domain.App{
		Name:    "api",
		Kind:    domain.KindNode,
		WorkDir: workDir,
		Port:    5200,
		Envs:    map[string]string{"MODE": "prod"},
		Status:  domain.StatusRunning,
	}
	repo := newStubAppRepo(app)
	rt := newStubRuntime()
	rt.running["api"] = true
	svc := NewAppService(repo, rt, &stubAudit{}, newStubVersionStore(), NewAppLocks(), appsRoot)
	return svc, repo, rt, appsRoot
}

func TestDeleteApp(t *testing.T) {
	svc, repo, rt, appsRoot := appFixture(t)
	ctx := context.Background()

	if err := svc.DeleteApp(ctx, "api"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if rt.IsRunning("api") {
		t.Error("process should be stopped")
	}
	if _, err := os.Stat(filepath.Join(appsRoot, "api")); err == nil {
		t.Error("working directory should be removed")
	}
	if _, err := repo.FindByName(ctx, "api"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("registry entry should be removed")
	}
}

func TestDeleteStoppedApp(t *testing.T) {
	svc, _, rt, _ := appFixture(t)
	delete(rt.running, "api")

	if err := svc.DeleteApp(context.Background(), "api"); err != nil {
		t.Fatalf("delete of stopped app: %v", err)
	}
}

func TestSetEnvDoesNotRestart(t *testing.T) {
	svc, repo, rt, _ := appFixture(t)
	ctx := context.Background()

	if err := svc.SetEnv(ctx, "api", map[string]string{"MODE": "debug"}); err != nil {
		t.Fatalf("set env: %v", err)
	}
	app, _ := repo.FindByName(ctx, "api")
	if app.Envs["MODE"] != "debug" {
		t.Errorf("envs = %v", app.Envs)
	}
	if len(rt.stops) != 0 || len(rt.starts) != 0 {
		t.Error("env change must not restart the app")
	}
}

func TestWebhookSecretLifecycle(t *testing.T) {
	svc, repo, _, _ := appFixture(t)
	ctx := context.Background()

	if err := svc.SetWebhookSecret(ctx, "api", "s3cret"); err != nil {
		t.Fatal(err)
	}
	app, _ := repo.FindByName(ctx, "api")
	if !app.HasWebhook() {
		t.Error("secret should be configured")
	}

	if err := svc.SetWebhookSecret(ctx, "api", ""); err != nil {
		t.Fatal(err)
	}
	app, _ = repo.FindByName(ctx, "api")
	if app.HasWebhook() {
		t.Error("empty secret should clear configuration")
	}
}

func TestListAttachesResources(t *testing.T) {
	svc, _, _, _ := appFixture(t)
	views, err := svc.ListApps(context.Background(), map[string]domain.ResourceSample{
		"api": {CPUPercent: 12.5, MemoryMB: 64},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("views = %d", len(views))
	}
	if views[0].Resources == nil || views[0].Resources.MemoryMB != 64 {
		t.Errorf("resources = %+v", views[0].Resources)
	}
}

func TestStartStopMissingApp(t *testing.T) {
	svc, _, _, _ := appFixture(t)
	if err := svc.StartApp(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("start: expected ErrNotFound, got %v", err)
	}
	if err := svc.StopApp(context.Background(), "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("stop: expected ErrNotFound, got %v", err)
	}
}
