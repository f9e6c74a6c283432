package logstream

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T, maxSize int64) *Store {
	t.Helper()
	return NewStore(t.TempDir(), maxSize, 3)
}

func TestWriteAndTail(t *testing.T) {
	s := newTestStore(t, 1<<20)
	st, err := s.OpenStream("web")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	st.WriteLine(OriginStdout, "first")
	st.WriteLine(OriginStderr, "second")
	st.Close("process exited (code 0)")

	lines, err := s.Tail("web", 10)
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "[stdout] first") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "[stderr] second") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "[system] process exited") {
		t.Errorf("line 2 = %q", lines[2])
	}
}

func TestSubscriberReceivesLines(t *testing.T) {
	s := newTestStore(t, 1<<20)
	sub := s.Subscribe("web", 8)
	defer sub.Cancel()

	st, err := s.OpenStream("web")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	st.WriteLine(OriginStdout, "live")
	st.Close("")

	line := <-sub.C
	if line.Origin != OriginStdout || line.Text != "live" {
		t.Errorf("got %+v", line)
	}
}

func TestRotationAtThreshold(t *testing.T) {
	s := newTestStore(t, 200)
	st, err := s.OpenStream("web")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	for i := 0; i < 30; i++ {
		st.WriteLine(OriginStdout, strings.Repeat("x", 40))
	}
	st.Close("")

	if _, err := os.Stat(filepath.Join(s.dir, "web.log.1")); err != nil {
		t.Fatalf("expected rotated file web.log.1: %v", err)
	}
	// 轮转上限 3：不允许出现 .4
	if _, err := os.Stat(filepath.Join(s.dir, "web.log.4")); err == nil {
		t.Error("web.log.4 should never exist with max_files=3")
	}
	// 单调性：.2 不比 .1 新
	info1, err1 := os.Stat(filepath.Join(s.dir, "web.log.1"))
	info2, err2 := os.Stat(filepath.Join(s.dir, "web.log.2"))
	if err1 == nil && err2 == nil && info2.ModTime().After(info1.ModTime()) {
		t.Error("rotated file order violated: .2 newer than .1")
	}
}

func TestRotateOnOpenWhenFull(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 10, 3)
	path := filepath.Join(dir, "web.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("a", 64)), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := s.OpenStream("web")
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	st.Close("")

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected pre-open rotation to create web.log.1: %v", err)
	}
}

func TestPurgeOrphans(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir, 1<<20, 3)
	for _, name := range []string{"keep.log", "gone.log", "gone.log.2"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s.PurgeOrphans(map[string]bool{"keep": true})

	if _, err := os.Stat(filepath.Join(dir, "keep.log")); err != nil {
		t.Error("keep.log should survive")
	}
	for _, name := range []string{"gone.log", "gone.log.2"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Errorf("%s should be purged", name)
		}
	}
}
