package source

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chiwei-platform/host-engine/internal/domain"
	"github.com/klauspost/compress/gzip"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries []tar.Header, contents map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for i := range entries {
		hdr := entries[i]
		body := contents[hdr.Name]
		if hdr.Typeflag == tar.TypeReg {
			hdr.Size = int64(len(body))
		}
		if err := tw.WriteHeader(&hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(body)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestExtractZip(t *testing.T) {
	e := NewExtractor()
	dest := t.TempDir()
	data := buildZip(t, map[string]string{
		"index.html":     "<html></html>",
		"assets/app.css": "body{}",
	})

	if err := e.Extract(data, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "index.html"))
	if err != nil || string(got) != "<html></html>" {
		t.Errorf("index.html = %q, %v", got, err)
	}
	if _, err := os.Stat(filepath.Join(dest, "assets", "app.css")); err != nil {
		t.Errorf("nested file missing: %v", err)
	}
}

func TestExtractZipSlip(t *testing.T) {
	e := NewExtractor()
	dest := t.TempDir()
	data := buildZip(t, map[string]string{
		"../../../../etc/evil": "pwned",
	})

	err := e.Extract(data, dest)
	if !errors.Is(err, domain.ErrUnsafeArchive) {
		t.Fatalf("expected ErrUnsafeArchive, got %v", err)
	}
}

func TestExtractTarGz(t *testing.T) {
	e := NewExtractor()
	dest := t.TempDir()
	data := buildTarGz(t, []tar.Header{
		{Name: "app/", Typeflag: tar.TypeDir, Mode: 0o755},
		{Name: "app/server.js", Typeflag: tar.TypeReg, Mode: 0o644},
	}, map[string]string{
		"app/server.js": "console.log('hi')",
	})

	if err := e.Extract(data, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "app", "server.js")); err != nil {
		t.Errorf("server.js missing: %v", err)
	}
}

func TestExtractTarGzRejectsSymlink(t *testing.T) {
	e := NewExtractor()
	dest := t.TempDir()
	data := buildTarGz(t, []tar.Header{
		{Name: "link", Typeflag: tar.TypeSymlink, Linkname: "/etc/passwd", Mode: 0o777},
	}, nil)

	err := e.Extract(data, dest)
	if !errors.Is(err, domain.ErrUnsafeArchive) {
		t.Fatalf("expected ErrUnsafeArchive, got %v", err)
	}
}

func TestExtractRejectsUnknownFormat(t *testing.T) {
	e := NewExtractor()
	err := e.Extract([]byte("just some text"), t.TempDir())
	if !errors.Is(err, domain.ErrExtract) {
		t.Fatalf("expected ErrExtract, got %v", err)
	}
}

func TestExtractRemovesNodeModules(t *testing.T) {
	e := NewExtractor()
	dest := t.TempDir()
	data := buildZip(t, map[string]string{
		"package.json":               "{}",
		"node_modules/left/index.js": "stale",
	})

	if err := e.Extract(data, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "node_modules")); err == nil {
		t.Error("node_modules should be removed after extraction")
	}
}
