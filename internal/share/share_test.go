package share

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{".env", ".env", true},
		{".env", ".env.local", false},
		{".env.*", ".env.local", true},
		{".env.*", ".env", false},
		{".claude/**", ".claude/settings.json", true},
		{".claude/**", ".claude/agents/reviewer.md", true},
		{".claude/**", "src/main.go", false},
		{"**/settings.json", "deep/nested/settings.json", true},
		{"**/settings.json", "settings.json", true},
		{"**/settings.json", "other-settings.yaml", false},
		{"docs/*.md", "docs/readme.md", true},
		{"docs/*.md", "docs/readme.txt", false},
		{"**", "anything/at/all", true},
	}

	for _, tt := range tests {
		if got := Match(tt.pattern, tt.path); got != tt.want {
			t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.path, got, tt.want)
		}
	}
}

func TestShare(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()

	write(t, source, ".env", "SECRET=1")
	write(t, source, ".env.local", "LOCAL=1")
	write(t, source, "config/app.yaml", "name: app")
	write(t, source, ".git/config", "[core]")
	write(t, source, "main.go", "package main")

	svc := NewService(zaptest.NewLogger(t))

	err := svc.Share(source, target, []string{".env", ".env.*"}, []string{"config/**"})
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	for _, link := range []string{".env", ".env.local"} {
		info, lstatErr := os.Lstat(filepath.Join(target, link))
		if lstatErr != nil {
			t.Fatalf("expected %s in target: %v", link, lstatErr)
		}
		if info.Mode()&os.ModeSymlink == 0 {
			t.Errorf("expected %s to be a symlink", link)
		}
	}

	copied, err := os.ReadFile(filepath.Join(target, "config/app.yaml"))
	if err != nil {
		t.Fatalf("expected copied file: %v", err)
	}
	if string(copied) != "name: app" {
		t.Errorf("copied content = %q", copied)
	}

	if info, err := os.Lstat(filepath.Join(target, "config/app.yaml")); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			t.Error("copy pattern produced a symlink")
		}
	}

	for _, absent := range []string{".git/config", "main.go"} {
		if _, err := os.Lstat(filepath.Join(target, absent)); err == nil {
			t.Errorf("unexpected %s in target", absent)
		}
	}
}

func TestShareSymlinkWinsOverCopy(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()

	write(t, source, ".env", "SECRET=1")

	svc := NewService(zaptest.NewLogger(t))

	if err := svc.Share(source, target, []string{".env"}, []string{".env"}); err != nil {
		t.Fatalf("Share: %v", err)
	}

	info, err := os.Lstat(filepath.Join(target, ".env"))
	if err != nil {
		t.Fatalf("expected .env in target: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("expected symlink when both pattern lists match")
	}
}

func TestShareNeverOverwrites(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()

	write(t, source, ".env", "SOURCE")
	write(t, target, ".env", "EXISTING")

	svc := NewService(zaptest.NewLogger(t))

	if err := svc.Share(source, target, []string{".env"}, nil); err != nil {
		t.Fatalf("Share: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(target, ".env"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(content) != "EXISTING" {
		t.Errorf("existing target was overwritten: %q", content)
	}
}

func TestShareIdempotent(t *testing.T) {
	source := t.TempDir()
	target := t.TempDir()

	write(t, source, ".env", "SECRET=1")
	write(t, source, "config/app.yaml", "name: app")

	svc := NewService(zaptest.NewLogger(t))

	for range 2 {
		if err := svc.Share(source, target, []string{".env"}, []string{"config/**"}); err != nil {
			t.Fatalf("Share: %v", err)
		}
	}
}

func TestShareMissingSource(t *testing.T) {
	svc := NewService(zaptest.NewLogger(t))

	err := svc.Share(filepath.Join(t.TempDir(), "missing"), t.TempDir(), []string{"**"}, nil)
	if err != nil {
		t.Fatalf("Share with missing source: %v", err)
	}
}

func write(t *testing.T, root, rel, content string) {
	t.Helper()

	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
