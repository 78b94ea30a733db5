package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8080")
	if p, err := Port("TEST_PORT", "1"); err != nil || p != "8080" {
		t.Fatalf("expected 8080, got %q err=%v", p, err)
	}
	t.Setenv("TEST_PORT", "99999")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatalf("expected error for out of range port")
	}
}

func TestTypedGetters(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_DUR", "1500ms")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_FLOAT", "0.25")
	t.Setenv("TEST_LIST", " a, ,b ,c")

	if n, err := Int("TEST_INT", 1); err != nil || n != 42 {
		t.Fatalf("Int: got %d err=%v", n, err)
	}
	if d, err := Duration("TEST_DUR", time.Second); err != nil || d != 1500*time.Millisecond {
		t.Fatalf("Duration: got %s err=%v", d, err)
	}
	if b, err := Bool("TEST_BOOL", false); err != nil || !b {
		t.Fatalf("Bool: got %v err=%v", b, err)
	}
	if f, err := Float("TEST_FLOAT", 1); err != nil || f != 0.25 {
		t.Fatalf("Float: got %v err=%v", f, err)
	}
	if got := List("TEST_LIST"); len(got) != 3 || got[1] != "b" {
		t.Fatalf("List: got %#v", got)
	}
	if n, err := Int("TEST_INT_MISSING", 7); err != nil || n != 7 {
		t.Fatalf("Int fallback: got %d err=%v", n, err)
	}

	t.Setenv("TEST_INT", "x")
	if _, err := Int("TEST_INT", 1); err == nil {
		t.Fatalf("expected error for non-integer")
	}
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DOTENV_A=from-file\nDOTENV_B=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DOTENV_A", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("DOTENV_B") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("DOTENV_A"); got != "from-env" {
		t.Fatalf("expected env to win, got %q", got)
	}
	if got := os.Getenv("DOTENV_B"); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
}
