package slogutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"":      0,
		"ten":   0,
		"10TB":  0,
		"512":   512,
		"512b":  512,
		"4KB":   4 << 10,
		"4kb":   4 << 10,
		"10MB":  10 << 20,
		"2GB":   2 << 30,
		"0.5MB": 512 << 10,
	}

	for in, want := range tests {
		if got := ParseSize(in); got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func readSize(t *testing.T, path string) int64 {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat %s: %v", path, err)
	}
	return info.Size()
}

func TestRotatingFile_KeepsMaxBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compute.log")

	rf, err := OpenRotatingFile(path, 50, 2)
	if err != nil {
		t.Fatalf("OpenRotatingFile() error = %v", err)
	}

	line := []byte(strings.Repeat("x", 29) + "\n")
	for i := 0; i < 5; i++ {
		if _, err := rf.Write(line); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}
	if err := rf.Close(); err != nil {
		t.Fatal(err)
	}

	// Every write after the first overflows 50 bytes, so each file holds one line.
	for _, p := range []string{path, path + ".1", path + ".2"} {
		if got := readSize(t, p); got != int64(len(line)) {
			t.Errorf("%s size = %d, want %d", filepath.Base(p), got, len(line))
		}
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("compute.log.3 should not exist with maxBackups=2")
	}
}

func TestRotatingFile_OversizedFirstWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")

	rf, err := OpenRotatingFile(path, 10, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer rf.Close()

	if _, err := rf.Write([]byte("a line longer than the limit\n")); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("an empty file must not be rotated")
	}
}

func TestNewFileLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()

	t.Run("rotating", func(t *testing.T) {
		path := filepath.Join(dir, "rotating.log")
		logger, closer, err := NewFileLoggerWithRotation(path, slog.LevelDebug, "1MB", 3)
		if err != nil {
			t.Fatalf("NewFileLoggerWithRotation() error = %v", err)
		}
		if _, ok := closer.(*RotatingFile); !ok {
			t.Errorf("closer = %T, want *RotatingFile", closer)
		}
		logger.Debug("Cache miss", "project", "core")
		closer.Close()

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "[debug] Cache miss | project=core") {
			t.Errorf("log content = %q", data)
		}
	})

	t.Run("plain file without max size", func(t *testing.T) {
		_, closer, err := NewFileLoggerWithRotation(filepath.Join(dir, "plain.log"), slog.LevelInfo, "", 3)
		if err != nil {
			t.Fatalf("NewFileLoggerWithRotation() error = %v", err)
		}
		defer closer.Close()
		if _, ok := closer.(*os.File); !ok {
			t.Errorf("closer = %T, want *os.File", closer)
		}
	})
}
