package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataLayout(t *testing.T) {
	root := "/work/space"

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"data dir", DataDir(root), filepath.Join(root, ".diaghost")},
		{"logs dir", LogsDir(root), filepath.Join(root, ".diaghost", "logs")},
		{"config", ConfigPath(root), filepath.Join(root, ".diaghost", "config.json")},
		{"database", DatabasePath(root), filepath.Join(root, ".diaghost", "diaghost.db")},
		{"log file", LogPath(root, "server"), filepath.Join(root, ".diaghost", "logs", "server.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestEnsureLogsDir(t *testing.T) {
	root := t.TempDir()

	dir, err := EnsureLogsDir(root)
	if err != nil {
		t.Fatalf("EnsureLogsDir failed: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("logs dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("%s is not a directory", dir)
	}
}

func TestCanonicalizePath(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "pkg", "main.go")
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(file, []byte("package main\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := CanonicalizePath(file, root)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}
	if got != "pkg/main.go" {
		t.Errorf("CanonicalizePath = %q, want %q", got, "pkg/main.go")
	}

	if !IsWithinRoot(file, root) {
		t.Errorf("expected %s to be within %s", file, root)
	}
	if IsWithinRoot(filepath.Dir(root), root) {
		t.Errorf("expected parent of root to be outside root")
	}
}

func TestIsDataDir(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{".diaghost", true},
		{".diaghost/logs/server.log", true},
		{".diaghostx/file", false},
		{"src/.diaghost", false},
	}
	for _, tt := range tests {
		if got := IsDataDir(tt.path); got != tt.want {
			t.Errorf("IsDataDir(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
