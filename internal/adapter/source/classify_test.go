package source

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/chiwei-platform/host-engine/internal/domain"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestClassifyStatic(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"index.html": "<html></html>"})

	spec, err := NewClassifier().Classify(root)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if spec.Kind != domain.KindStatic {
		t.Errorf("kind = %q, want static", spec.Kind)
	}
	if spec.Root != root {
		t.Errorf("root = %q, want %q", spec.Root, root)
	}
}

func TestClassifyNodeStartScript(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"package.json": `{"scripts":{"start":"node server.js"}}`,
		"server.js":    "require('http')",
	})

	spec, err := NewClassifier().Classify(root)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if spec.Kind != domain.KindNode {
		t.Errorf("kind = %q, want node", spec.Kind)
	}
	if want := []string{"node", "server.js"}; !reflect.DeepEqual(spec.Start, want) {
		t.Errorf("start = %v, want %v", spec.Start, want)
	}
}

func TestClassifyNodeFallsBackToPackageManager(t *testing.T) {
	tests := []struct {
		name     string
		lockfile string
		want     []string
	}{
		{"npm default", "", []string{"npm", "start"}},
		{"yarn", "yarn.lock", []string{"yarn", "start"}},
		{"pnpm", "pnpm-lock.yaml", []string{"pnpm", "start"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			files := map[string]string{
				"package.json": `{"scripts":{"start":"node --experimental-modules ./bin/www"}}`,
			}
			if tt.lockfile != "" {
				files[tt.lockfile] = ""
			}
			writeFiles(t, root, files)

			spec, err := NewClassifier().Classify(root)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if !reflect.DeepEqual(spec.Start, tt.want) {
				t.Errorf("start = %v, want %v", spec.Start, tt.want)
			}
		})
	}
}

func TestClassifyDescendsSingleDirectory(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"my-project-main/index.html": "<html></html>",
		"__MACOSX/junk":              "",
	})
	// 打包垃圾目录不阻止下钻
	os.RemoveAll(filepath.Join(root, "__MACOSX", "junk"))

	spec, err := NewClassifier().Classify(root)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	want := filepath.Join(root, "my-project-main")
	if spec.Root != want {
		t.Errorf("root = %q, want %q", spec.Root, want)
	}
}

func TestClassifyUnclassifiable(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"README.md": "# hi"})

	_, err := NewClassifier().Classify(root)
	if !errors.Is(err, domain.ErrUnclassifiable) {
		t.Fatalf("expected ErrUnclassifiable, got %v", err)
	}
}
