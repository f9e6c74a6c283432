package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/chiwei-platform/host-engine/internal/adapter/logstream"
	"github.com/chiwei-platform/host-engine/internal/domain"
)

// staticServer 在引擎进程内托管 static 应用：
// 同样占用分配到的端口、走同样的状态生命周期，只是没有 OS 子进程。
type staticServer struct {
	srv *http.Server
	ln  net.Listener
}

func (s *Supervisor) startStatic(c *child) error {
	app := c.app
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", app.Port))
	if err != nil {
		s.remove(app.Name)
		c.stream.Close("")
		return fmt.Errorf("bind port %d for %s: %w", app.Port, app.Name, err)
	}

	srv := &http.Server{Handler: http.FileServer(http.Dir(app.WorkDir))}
	c.static = &staticServer{srv: srv, ln: ln}

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("static server error", "app", app.Name, "error", err)
		}
	}()

	slog.Info("static app serving", "app", app.Name, "port", app.Port)
	c.stream.WriteLine(logstream.OriginSystem,
		fmt.Sprintf("static server listening on port %d", app.Port))
	s.publish(app.Name, domain.StatusRunning)
	return nil
}

func (s *Supervisor) stopStatic(c *child) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopGrace)
	defer cancel()
	c.static.srv.Shutdown(ctx)

	name := c.app.Name
	s.remove(name)
	c.stream.Close("static server stopped")
	close(c.done)
	s.publish(name, domain.StatusStopped)
	return nil
}
