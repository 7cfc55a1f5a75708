package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 5 * time.Second},
		{"250ms", 250 * time.Millisecond},
		{"3", 3 * time.Second},
		{"junk", 5 * time.Second},
	}

	for _, tt := range tests {
		t.Setenv("CONVEYOR_TEST_DURATION", tt.value)
		if got := Duration("CONVEYOR_TEST_DURATION", 5*time.Second); got != tt.want {
			t.Errorf("Duration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestIntAndAddr(t *testing.T) {
	t.Setenv("CONVEYOR_TEST_PORT", "9191")
	if got := Int("CONVEYOR_TEST_PORT", 1); got != 9191 {
		t.Errorf("Int = %d, want 9191", got)
	}
	if got := Addr("CONVEYOR_TEST_PORT", 8080); got != ":9191" {
		t.Errorf("Addr = %q, want :9191", got)
	}

	t.Setenv("CONVEYOR_TEST_PORT", "x")
	if got := Addr("CONVEYOR_TEST_PORT", 8080); got != ":8080" {
		t.Errorf("Addr with invalid value = %q, want :8080", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("CONVEYOR_TEST_DOTENV=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONVEYOR_TEST_DOTENV", "")
	os.Unsetenv("CONVEYOR_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := String("CONVEYOR_TEST_DOTENV", "def"); got != "from-file" {
		t.Errorf("String = %q, want from-file", got)
	}
}
