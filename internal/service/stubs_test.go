package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/chiwei-platform/host-engine/internal/domain"
)

// --- shared stubs for service tests ---

type stubAppRepo struct {
	mu   sync.Mutex
	apps map[string]*domain.App
}

func newStubAppRepo(apps ...*domain.App) *stubAppRepo {
	r := &stubAppRepo{apps: map[string]*domain.App{}}
	for _, a := range apps {
		r.apps[a.Name] = a
	}
	return r
}

func (r *stubAppRepo) Save(_ context.Context, app *domain.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.Name]; ok {
		return domain.ErrAppExists
	}
	r.apps[app.Name] = app
	return nil
}

func (r *stubAppRepo) FindByName(_ context.Context, name string) (*domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[name]
	if !ok {
		return nil, domain.ErrAppNotFound
	}
	copied := *app
	return &copied, nil
}

func (r *stubAppRepo) FindAll(_ context.Context) ([]*domain.App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.App, 0, len(r.apps))
	for _, a := range r.apps {
		copied := *a
		out = append(out, &copied)
	}
	return out, nil
}

func (r *stubAppRepo) Update(_ context.Context, app *domain.App) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[app.Name]; !ok {
		return domain.ErrAppNotFound
	}
	copied := *app
	r.apps[app.Name] = &copied
	return nil
}

func (r *stubAppRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.apps[name]; !ok {
		return domain.ErrAppNotFound
	}
	delete(r.apps, name)
	return nil
}

func (r *stubAppRepo) UpdateStatus(_ context.Context, name string, status domain.AppStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[name]
	if !ok {
		return domain.ErrAppNotFound
	}
	app.Status = status
	return nil
}

func (r *stubAppRepo) UpdateHealth(_ context.Context, records map[string]*domain.HealthRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, h := range records {
		if app, ok := r.apps[name]; ok {
			app.Health = h
		}
	}
	return nil
}

func (r *stubAppRepo) UsedPorts(_ context.Context) (map[int]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	used := map[int]bool{}
	for _, a := range r.apps {
		used[a.Port] = true
	}
	return used, nil
}

type stubRuntime struct {
	mu      sync.Mutex
	running map[string]bool
	starts  []string
	stops   []string
	startErr error
}

func newStubRuntime() *stubRuntime {
	return &stubRuntime{running: map[string]bool{}}
}

func (s *stubRuntime) Start(_ context.Context, app *domain.App) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	if s.running[app.Name] {
		return domain.ErrAlreadyRunning
	}
	s.running[app.Name] = true
	s.starts = append(s.starts, app.Name)
	return nil
}

func (s *stubRuntime) Stop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running[name] {
		return domain.ErrNotRunning
	}
	delete(s.running, name)
	s.stops = append(s.stops, name)
	return nil
}

func (s *stubRuntime) Restart(ctx context.Context, app *domain.App) error {
	s.Stop(ctx, app.Name)
	return s.Start(ctx, app)
}

func (s *stubRuntime) IsRunning(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[name]
}

func (s *stubRuntime) Processes() map[string]int { return nil }

func (s *stubRuntime) StopAll(context.Context) {}

type stubVersionStore struct {
	mu        sync.Mutex
	versions  map[string][]*domain.Version
	seq       int
	restored  []string
	snapErr   error
}

func newStubVersionStore() *stubVersionStore {
	return &stubVersionStore{versions: map[string][]*domain.Version{}}
}

func (s *stubVersionStore) Snapshot(_ context.Context, app *domain.App, method domain.DeployMethod, commit string) (*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapErr != nil {
		return nil, s.snapErr
	}
	s.seq++
	ver := &domain.Version{
		ID:      fmt.Sprintf("snap%d", s.seq),
		AppName: app.Name,
		Method:  method,
		Commit:  commit,
	}
	s.versions[app.Name] = append(s.versions[app.Name], ver)
	return ver, nil
}

func (s *stubVersionStore) List(_ context.Context, appName string) ([]*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[appName], nil
}

func (s *stubVersionStore) Find(_ context.Context, appName, versionID string) (*domain.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.versions[appName] {
		if v.ID == versionID {
			return v, nil
		}
	}
	return nil, domain.ErrVersionNotFound
}

func (s *stubVersionStore) Restore(_ context.Context, app *domain.App, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restored = append(s.restored, app.Name+":"+versionID)
	return nil
}

func (s *stubVersionStore) Purge(_ context.Context, appName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.versions, appName)
	return nil
}

type stubAudit struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (a *stubAudit) Record(_ context.Context, e *domain.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *stubAudit) FindByApp(_ context.Context, appName string, _ int) ([]*domain.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.Event
	for _, e := range a.events {
		if e.AppName == appName {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubGit struct {
	commit  string
	pullErr error
	pulls   []string
}

func (g *stubGit) Clone(_ context.Context, _, _, _ string, _ io.Writer) (string, error) {
	return g.commit, nil
}

func (g *stubGit) Pull(_ context.Context, dir, branch string, _ io.Writer) (string, error) {
	if g.pullErr != nil {
		return "", g.pullErr
	}
	g.pulls = append(g.pulls, dir+"@"+branch)
	return g.commit, nil
}

type stubInstaller struct {
	installs []string
	err      error
}

func (i *stubInstaller) Install(_ context.Context, dir string, _ io.Writer) error {
	if i.err != nil {
		return i.err
	}
	i.installs = append(i.installs, dir)
	return nil
}

type stubExtractor struct {
	err   error
	files map[string]string
}

func (e *stubExtractor) Extract(_ []byte, dest string) error {
	if e.err != nil {
		return e.err
	}
	for name, content := range e.files {
		path := filepath.Join(dest, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

type stubClassifier struct {
	spec *domain.ProjectSpec
	err  error
}

func (c *stubClassifier) Classify(root string) (*domain.ProjectSpec, error) {
	if c.err != nil {
		return nil, c.err
	}
	spec := *c.spec
	if spec.Root == "" {
		spec.Root = root
	}
	return &spec, nil
}

type stubAllocator struct {
	next int
}

func (a *stubAllocator) Allocate(used map[int]bool) (int, error) {
	if a.next == 0 {
		a.next = 5200
	}
	for used[a.next] {
		a.next++
	}
	p := a.next
	a.next++
	return p, nil
}
