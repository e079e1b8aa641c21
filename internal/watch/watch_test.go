package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/cadview/internal/testutil/testlog"
)

func TestSourceDeliversInitialAndRewrites(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.txt")
	if err := os.WriteFile(path, []byte("first"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make(chan string, 8)
	src := NewSource(path)
	src.SetSettle(10 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(_ context.Context, data []byte) { got <- string(data) })
	}()

	expect := func(want string) {
		t.Helper()
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("expected %q, got %q", want, v)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
	expect("first")

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	tmp := filepath.Join(dir, "scene.tmp")
	if err := os.WriteFile(tmp, []byte("second"), 0o644); err != nil {
		t.Fatalf("write tmp: %v", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}
	expect("second")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}

func TestSourceMissingDirectoryFails(t *testing.T) {
	testlog.Start(t)
	src := NewSource(filepath.Join(t.TempDir(), "missing", "scene.txt"))
	if err := src.Run(context.Background(), func(context.Context, []byte) {}); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
